package payment

import (
	"context"
	"fmt"
	"time"

	"gopay-checkout/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *service) Capture(ctx context.Context, sessionID uuid.UUID, token CaptureToken) (CaptureResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Capture"),
		zap.String("session_id", sessionID.String()),
	)

	result, err := s.capture(ctx, log, sessionID, token)
	switch {
	case err != nil:
		s.captureOutcome("error")
		log.Error("capture failed", zap.Error(err))
	case result.IsRedirect():
		s.captureOutcome("redirect")
	default:
		s.captureOutcome("refreshed")
	}
	return result, err
}

func (s *service) capture(ctx context.Context, log *zap.Logger, sessionID uuid.UUID, token CaptureToken) (CaptureResult, error) {
	rec, err := s.repo.GetRecord(ctx, sessionID)
	if err != nil {
		return Continue(), err
	}

	client, err := s.authorize(ctx, rec.Locale)
	if err != nil {
		return Continue(), err
	}

	if rec.ExternalPaymentID != nil {
		if _, err := s.refresh(ctx, log, client, rec); err != nil {
			return Continue(), err
		}
		return Continue(), nil
	}

	return s.create(ctx, log, client, sessionID, token)
}

// create runs the first contact with GoPay. It holds the session lock so
// concurrent captures of a new session issue a single create call.
func (s *service) create(
	ctx context.Context,
	log *zap.Logger,
	client Client,
	sessionID uuid.UUID,
	token CaptureToken,
) (CaptureResult, error) {

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return Continue(), fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	rec, err := s.repo.GetRecord(ctx, sessionID)
	if err != nil {
		return Continue(), err
	}
	if rec.ExternalPaymentID != nil {
		log.Info("payment created concurrently, refreshing instead")
		if _, err := s.refresh(ctx, log, client, rec); err != nil {
			return Continue(), err
		}
		return Continue(), nil
	}

	notifyURL, err := s.notifyURLs.NotifyURL(ctx, sessionID)
	if err != nil {
		return Continue(), fmt.Errorf("issue notify url: %w", err)
	}

	payload, err := buildPayload(rec, s.creds.GoID, token.ReturnURL, notifyURL)
	if err != nil {
		return Continue(), err
	}

	start := time.Now()
	resp, err := client.Create(ctx, payload)
	s.gatewayCall("create", start, err)
	if err != nil {
		return Continue(), asGatewayError(err)
	}

	if len(resp.JSON.Errors) > 0 || resp.JSON.State != string(StatusCreated) {
		log.Warn("gopay refused payment",
			zap.String("state", resp.JSON.State),
			zap.ByteString("response", resp.Raw),
		)
		return Continue(), &GatewayError{Raw: resp.Raw}
	}

	log = log.With(
		zap.Int64("payment_id", resp.JSON.ID),
		zap.String("order_number", resp.JSON.OrderNumber),
	)

	applied, err := s.repo.MarkCreated(ctx, sessionID, resp.JSON.OrderNumber, resp.JSON.ID)
	if err != nil {
		log.Error("remote payment created but not stored", zap.Error(err))
		return Continue(), fmt.Errorf("store created payment: %w", err)
	}
	if !applied {
		log.Error("remote payment created but session already has one")
		return Continue(), &PreconditionError{Op: "capture", Err: ErrAlreadyCreated}
	}

	log.Info("payment created, redirecting payer")
	return Redirect(resp.JSON.GwURL), nil
}

// refresh retrieves the remote state of an existing payment and stores the
// reconciled status.
func (s *service) refresh(ctx context.Context, log *zap.Logger, client Client, rec *Record) (Status, error) {
	paymentID := *rec.ExternalPaymentID

	start := time.Now()
	resp, err := client.Retrieve(ctx, paymentID)
	s.gatewayCall("retrieve", start, err)
	if err != nil {
		return "", asGatewayError(err)
	}
	if len(resp.JSON.Errors) > 0 || resp.JSON.State == "" {
		return "", &GatewayError{Raw: resp.Raw}
	}

	next := Reconcile(rec.GoPayStatus, resp.JSON.State)
	log = log.With(
		zap.Int64("payment_id", paymentID),
		zap.String("observed_state", resp.JSON.State),
		zap.String("status", string(next)),
	)

	if rec.GoPayStatus != nil && rec.GoPayStatus.Terminal() {
		log.Debug("status already terminal")
		return next, nil
	}

	applied, err := s.repo.UpdateStatus(ctx, rec.SessionID, next)
	if err != nil {
		return "", fmt.Errorf("store payment status: %w", err)
	}
	if !applied {
		// Another delivery stored a terminal status first.
		log.Info("status update skipped")
		return next, nil
	}

	rec.GoPayStatus = &next
	log.Info("payment status reconciled")
	return next, nil
}
