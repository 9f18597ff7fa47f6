package payment

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound = errors.New("payment record not found")
	ErrAlreadyCreated = errors.New("payment already created for session")
)

// ValidationError means the order or customer handed in cannot be paid for.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// AuthError wraps a failed gateway authorization.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "gopay authorization failed: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

// PreconditionError is returned when an operation runs at the wrong point of
// the payment lifecycle.
type PreconditionError struct {
	Op  string
	Err error
}

func (e *PreconditionError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// GatewayError is a gateway call that failed or answered with an unexpected
// state. Raw keeps the response body for diagnostics.
type GatewayError struct {
	Raw []byte
	Err error
}

func (e *GatewayError) Error() string {
	if len(e.Raw) > 0 {
		return "GoPay error: " + string(e.Raw)
	}
	if e.Err != nil {
		return "GoPay error: " + e.Err.Error()
	}
	return "GoPay error"
}

func (e *GatewayError) Unwrap() error { return e.Err }

var errMissingPaymentID = errors.New("external payment id is not set")
