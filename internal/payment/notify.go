package payment

import (
	"context"
	"fmt"

	"gopay-checkout/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *service) Notify(ctx context.Context, sessionID uuid.UUID) (ack string) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Notify"),
		zap.String("session_id", sessionID.String()),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("notify panicked", zap.Any("panic", r))
			s.notifyOutcome("error")
			ack = fmt.Sprint(r)
		}
	}()

	if err := s.notify(ctx, log, sessionID); err != nil {
		log.Warn("notification not reconciled", zap.Error(err))
		s.notifyOutcome("error")
		return err.Error()
	}

	s.notifyOutcome("success")
	return AckSuccess
}

func (s *service) notify(ctx context.Context, log *zap.Logger, sessionID uuid.UUID) error {
	rec, err := s.repo.GetRecord(ctx, sessionID)
	if err != nil {
		return err
	}

	client, err := s.authorize(ctx, rec.Locale)
	if err != nil {
		return err
	}

	if rec.ExternalPaymentID == nil {
		return &PreconditionError{Op: "notify", Err: errMissingPaymentID}
	}

	_, err = s.refresh(ctx, log, client, rec)
	return err
}
