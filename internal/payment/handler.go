package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"gopay-checkout/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler exposes the checkout endpoints used by the shop frontend.
type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /checkout/sessions", h.CreateSession)
	mux.HandleFunc("POST /checkout/sessions/{id}/capture", h.Capture)
	mux.HandleFunc("GET /checkout/sessions/{id}/status", h.Status)
}

type createSessionRequest struct {
	Order    Order     `json:"order"`
	Customer *Customer `json:"customer"`
	Locale   string    `json:"locale,omitempty"`
}

type sessionResponse struct {
	SessionID uuid.UUID       `json:"session_id"`
	Status    LifecycleStatus `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
		return
	}

	rec, err := h.svc.CreateSession(r.Context(), req.Order, req.Customer, req.Locale)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: rec.SessionID,
		Status:    Project(*rec),
	})
}

func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFrom(w, r)
	if !ok {
		return
	}

	token := CaptureToken{ReturnURL: r.URL.Query().Get("return_url")}
	result, err := h.svc.Capture(r.Context(), sessionID, token)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if result.IsRedirect() {
		http.Redirect(w, r, result.URL, http.StatusSeeOther)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: sessionID,
		Status:    h.svc.Status(r.Context(), sessionID),
	})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFrom(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: sessionID,
		Status:    h.svc.Status(r.Context(), sessionID),
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		logger.FromCtx(r.Context()).Error("checkout request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", code),
			zap.Error(err),
		)
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

// StatusCode maps a checkout error to the HTTP status returned for it.
func StatusCode(err error) int {
	var (
		validationErr   *ValidationError
		preconditionErr *PreconditionError
		authErr         *AuthError
		gatewayErr      *GatewayError
	)

	switch {
	case errors.Is(err, ErrRecordNotFound):
		return http.StatusNotFound
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &preconditionErr):
		return http.StatusConflict
	case errors.As(err, &authErr), errors.As(err, &gatewayErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func sessionIDFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid session id"})
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
