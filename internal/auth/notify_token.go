package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	notifyIssuer   = "gopay-checkout"
	notifyAudience = "gopay-notify"
)

var (
	ErrInvalidNotifyToken = errors.New("invalid notify token")
	ErrNotifyTokenRetired = errors.New("notify token retired")
)

type NotifyClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenStore remembers issued token ids. A token stays usable until it
// expires or is retired.
type TokenStore interface {
	SaveNotifyToken(ctx context.Context, jti, sessionID uuid.UUID, expiresAt time.Time) error
	NotifyTokenActive(ctx context.Context, jti uuid.UUID) (bool, error)
	RetireNotifyToken(ctx context.Context, jti uuid.UUID) error
}

// NotifyGrant is what a verified notify token authorizes.
type NotifyGrant struct {
	SessionID uuid.UUID
	TokenID   uuid.UUID
}

// NotifyTokens mints and verifies notification tokens scoped to a payment
// session. GoPay may deliver several notifications per payment, so a token
// is only retired once its session can no longer change.
type NotifyTokens struct {
	secret    []byte
	ttl       time.Duration
	notifyURL string
	store     TokenStore
	now       func() time.Time
}

func NewNotifyTokens(secret string, ttl time.Duration, notifyURL string, store TokenStore) (*NotifyTokens, error) {
	if secret == "" {
		return nil, errors.New("NOTIFY_TOKEN_SECRET is not set")
	}
	if _, err := url.Parse(notifyURL); err != nil {
		return nil, fmt.Errorf("invalid notify url: %w", err)
	}
	return &NotifyTokens{
		secret:    []byte(secret),
		ttl:       ttl,
		notifyURL: notifyURL,
		store:     store,
		now:       time.Now,
	}, nil
}

// Issue returns a signed token for the session and records its id.
func (n *NotifyTokens) Issue(ctx context.Context, sessionID uuid.UUID) (string, error) {
	jti := uuid.New()
	now := n.now()
	expiresAt := now.Add(n.ttl)

	claims := NotifyClaims{
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Issuer:    notifyIssuer,
			Audience:  jwt.ClaimStrings{notifyAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(n.secret)
	if err != nil {
		return "", err
	}

	if err := n.store.SaveNotifyToken(ctx, jti, sessionID, expiresAt); err != nil {
		return "", fmt.Errorf("save notify token: %w", err)
	}
	return signed, nil
}

// NotifyURL issues a token and embeds it in the notification endpoint.
func (n *NotifyTokens) NotifyURL(ctx context.Context, sessionID uuid.UUID) (string, error) {
	token, err := n.Issue(ctx, sessionID)
	if err != nil {
		return "", err
	}

	sep := "?"
	if strings.Contains(n.notifyURL, "?") {
		sep = "&"
	}
	return n.notifyURL + sep + NotifyTokenParam + "=" + url.QueryEscape(token), nil
}

// Parse verifies the token signature and claims without consuming it.
func (n *NotifyTokens) Parse(raw string) (*NotifyClaims, error) {
	token, err := jwt.ParseWithClaims(
		raw,
		&NotifyClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return n.secret, nil
		},
		jwt.WithIssuer(notifyIssuer),
		jwt.WithAudience(notifyAudience),
		jwt.WithTimeFunc(n.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotifyToken, err)
	}

	claims, ok := token.Claims.(*NotifyClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidNotifyToken
	}
	return claims, nil
}

// Verify checks the token and that it is still active. It does not use the
// token up; call Retire for that.
func (n *NotifyTokens) Verify(ctx context.Context, raw string) (NotifyGrant, error) {
	claims, err := n.Parse(raw)
	if err != nil {
		return NotifyGrant{}, err
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return NotifyGrant{}, fmt.Errorf("%w: bad session id", ErrInvalidNotifyToken)
	}
	jti, err := uuid.Parse(claims.ID)
	if err != nil {
		return NotifyGrant{}, fmt.Errorf("%w: bad token id", ErrInvalidNotifyToken)
	}
	grant := NotifyGrant{SessionID: sessionID, TokenID: jti}

	active, err := n.store.NotifyTokenActive(ctx, jti)
	if err != nil {
		return NotifyGrant{}, fmt.Errorf("lookup notify token: %w", err)
	}
	if !active {
		return grant, ErrNotifyTokenRetired
	}
	return grant, nil
}

// Retire stops the token from being accepted again. Retiring twice is a
// no-op.
func (n *NotifyTokens) Retire(ctx context.Context, tokenID uuid.UUID) error {
	if err := n.store.RetireNotifyToken(ctx, tokenID); err != nil {
		return fmt.Errorf("retire notify token: %w", err)
	}
	return nil
}
