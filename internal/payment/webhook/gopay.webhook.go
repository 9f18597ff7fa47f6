package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"gopay-checkout/internal/auth"
	"gopay-checkout/internal/logger"
	"gopay-checkout/internal/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ackMissingToken = "missing notify token"
	ackTokenRetired = "notify token retired"
)

// NotifyTokenVerifier checks notify tokens and retires them once their
// session is settled.
type NotifyTokenVerifier interface {
	Verify(ctx context.Context, raw string) (auth.NotifyGrant, error)
	Retire(ctx context.Context, tokenID uuid.UUID) error
}

// NotificationLog keeps an audit trail of gateway deliveries.
type NotificationLog interface {
	SaveNotification(ctx context.Context, sessionID uuid.UUID, paymentID string, payload json.RawMessage) (int64, error)
	MarkNotificationProcessed(ctx context.Context, notificationID int64, ack string) error
}

// deliveryPayload is what gets stored per delivery. The token is left out.
type deliveryPayload struct {
	Method    string `json:"method"`
	PaymentID string `json:"id"`
	RemoteIP  string `json:"remote_ip"`
}

type Handler struct {
	PaymentSvc payment.Service
	Tokens     NotifyTokenVerifier
	Log        NotificationLog
}

func NewWebhookHandler(paymentSvc payment.Service, tokens NotifyTokenVerifier, log NotificationLog) *Handler {
	return &Handler{
		PaymentSvc: paymentSvc,
		Tokens:     tokens,
		Log:        log,
	}
}

// NotifyHandler handles GoPay status change notifications. GoPay only needs
// a 200, so every outcome is reported through the response body.
func (h *Handler) NotifyHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID := r.URL.Query().Get("id")

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "webhook"),
		zap.String("provider", "GOPAY"),
		zap.String("payment_id", paymentID),
	)

	// Step 1️⃣ – Token
	raw := auth.ExtractNotifyToken(r)
	if raw == "" {
		log.Warn("notification without token")
		writeAck(w, ackMissingToken)
		return
	}

	grant, err := h.Tokens.Verify(ctx, raw)
	if errors.Is(err, auth.ErrNotifyTokenRetired) {
		log.Info("notification for settled session", zap.String("session_id", grant.SessionID.String()))
		writeAck(w, ackTokenRetired)
		return
	}
	if err != nil {
		log.Warn("notify token rejected", zap.Error(err))
		writeAck(w, err.Error())
		return
	}
	sessionID := grant.SessionID
	log = log.With(zap.String("session_id", sessionID.String()))

	// Step 2️⃣ – Audit trail
	payload, _ := json.Marshal(deliveryPayload{
		Method:    r.Method,
		PaymentID: paymentID,
		RemoteIP:  r.RemoteAddr,
	})
	notificationID, err := h.Log.SaveNotification(ctx, sessionID, paymentID, payload)
	if err != nil {
		log.Error("failed to save notification", zap.Error(err))
	}

	// Step 3️⃣ – Reconcile
	ack := h.PaymentSvc.Notify(ctx, sessionID)

	// Step 4️⃣ – Close the trail
	if notificationID != 0 {
		if err := h.Log.MarkNotificationProcessed(ctx, notificationID, ack); err != nil {
			log.Error("failed to mark notification processed", zap.Error(err))
		}
	}

	// Step 5️⃣ – Retire the token once nothing can change anymore. Failed
	// or intermediate deliveries keep it valid for GoPay's next attempt.
	if ack == payment.AckSuccess && settled(h.PaymentSvc.Status(ctx, sessionID)) {
		if err := h.Tokens.Retire(ctx, grant.TokenID); err != nil {
			log.Error("failed to retire notify token", zap.Error(err))
		}
	}

	log.Info("notification handled", zap.String("ack", ack))
	writeAck(w, ack)
}

func settled(status payment.LifecycleStatus) bool {
	return status == payment.LifecycleCaptured || status == payment.LifecycleCanceled
}

func writeAck(w http.ResponseWriter, ack string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ack)
}
