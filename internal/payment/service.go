package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gopay-checkout/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AckSuccess is the notification body GoPay receives when reconciling worked.
const AckSuccess = "SUCCESS"

// NotifyURLIssuer mints the session-scoped notification URL handed to GoPay.
type NotifyURLIssuer interface {
	NotifyURL(ctx context.Context, sessionID uuid.UUID) (string, error)
}

// Recorder receives outcome counts. A nil Recorder is allowed.
type Recorder interface {
	CaptureOutcome(outcome string)
	NotifyOutcome(outcome string)
	GatewayCall(op string, d time.Duration, err error)
}

type Service interface {
	CreateSession(ctx context.Context, order Order, customer any, locale string) (*Record, error)
	Capture(ctx context.Context, sessionID uuid.UUID, token CaptureToken) (CaptureResult, error)
	Notify(ctx context.Context, sessionID uuid.UUID) string
	Status(ctx context.Context, sessionID uuid.UUID) LifecycleStatus
}

type Config struct {
	Credentials    Credentials
	FallbackLocale string
	// Locker guards the create branch. Nil means an in-process lock, which
	// is enough for a single instance.
	Locker SessionLocker
}

type service struct {
	repo       Repository
	gateway    Gateway
	notifyURLs NotifyURLIssuer
	metrics    Recorder

	creds          Credentials
	fallbackLocale string
	snapshots      *SnapshotBuilder
	locks          SessionLocker
}

func NewService(
	cfg Config,
	repo Repository,
	gateway Gateway,
	notifyURLs NotifyURLIssuer,
	metrics Recorder,
) Service {
	snapshots := NewSnapshotBuilder(cfg.FallbackLocale)
	locks := cfg.Locker
	if locks == nil {
		locks = newSessionLocks()
	}
	return &service{
		repo:           repo,
		gateway:        gateway,
		notifyURLs:     notifyURLs,
		metrics:        metrics,
		creds:          cfg.Credentials,
		fallbackLocale: snapshots.fallbackLocale,
		snapshots:      snapshots,
		locks:          locks,
	}
}

func (s *service) CreateSession(ctx context.Context, order Order, customer any, locale string) (*Record, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateSession"),
		zap.String("order_number", order.Number),
	)

	if locale == "" {
		locale = order.LocaleCode
	}

	snap, err := s.snapshots.Build(order, customer, locale)
	if err != nil {
		log.Warn("order rejected", zap.Error(err))
		return nil, err
	}

	rec := NewRecord(snap)
	if err := s.repo.CreateRecord(ctx, rec); err != nil {
		log.Error("failed to store payment record", zap.Error(err))
		return nil, fmt.Errorf("store payment record: %w", err)
	}

	log.Info("payment session created", zap.String("session_id", rec.SessionID.String()))
	return rec, nil
}

func (s *service) Status(ctx context.Context, sessionID uuid.UUID) LifecycleStatus {
	rec, err := s.repo.GetRecord(ctx, sessionID)
	if err != nil {
		logger.FromCtx(ctx).Warn("status read failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err),
		)
		return LifecycleUnknown
	}
	return Project(*rec)
}

func (s *service) authorize(ctx context.Context, locale string) (Client, error) {
	if locale == "" {
		locale = s.fallbackLocale
	}

	start := time.Now()
	client, err := s.gateway.Authorize(ctx, s.creds, locale)
	s.gatewayCall("authorize", start, err)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, err
		}
		return nil, &AuthError{Err: err}
	}
	return client, nil
}

func asGatewayError(err error) error {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return err
	}
	return &GatewayError{Err: err}
}

func (s *service) captureOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.CaptureOutcome(outcome)
	}
}

func (s *service) notifyOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.NotifyOutcome(outcome)
	}
}

func (s *service) gatewayCall(op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.GatewayCall(op, time.Since(start), err)
	}
}
