// internal/payment/gateway.go
package payment

import (
	"context"
)

const (
	SandboxURL    = "https://gw.sandbox.gopay.com/api"
	ProductionURL = "https://gate.gopay.cz/api"
)

// Credentials identify the merchant account on GoPay.
type Credentials struct {
	GoID           string
	ClientID       string
	ClientSecret   string
	ProductionMode bool
}

// BaseURL returns the GoPay endpoint selected by ProductionMode.
func (c Credentials) BaseURL() string {
	if c.ProductionMode {
		return ProductionURL
	}
	return SandboxURL
}

// Gateway authorizes against GoPay. Each call yields a fresh Client; nothing
// is cached between calls.
type Gateway interface {
	Authorize(ctx context.Context, creds Credentials, locale string) (Client, error)
}

// Client performs calls on behalf of an authorized merchant.
type Client interface {
	Create(ctx context.Context, payload *CreatePayload) (*Response, error)
	Retrieve(ctx context.Context, paymentID int64) (*Response, error)
}

type Response struct {
	JSON ResponseBody
	Raw  []byte
}

func (r *Response) String() string {
	return string(r.Raw)
}

type ResponseBody struct {
	ID          int64      `json:"id"`
	OrderNumber string     `json:"order_number"`
	State       string     `json:"state"`
	GwURL       string     `json:"gw_url"`
	Errors      []APIError `json:"errors,omitempty"`
}

type APIError struct {
	Scope     string `json:"scope,omitempty"`
	Field     string `json:"field,omitempty"`
	ErrorCode int    `json:"error_code"`
	ErrorName string `json:"error_name,omitempty"`
	Message   string `json:"message,omitempty"`
}

// CreatePayload is the body of POST /payments/payment.
type CreatePayload struct {
	Target      Target      `json:"target"`
	Currency    string      `json:"currency"`
	Amount      int64       `json:"amount"`
	OrderNumber string      `json:"order_number"`
	Lang        string      `json:"lang"`
	Payer       Payer       `json:"payer"`
	Items       []OrderItem `json:"items"`
	Callback    Callback    `json:"callback"`
}

type Target struct {
	Type string `json:"type"`
	GoID string `json:"goid"`
}

type Payer struct {
	Contact PayerContactInfo `json:"contact"`
}

type PayerContactInfo struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type OrderItem struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	ProductURL string `json:"product_url"`
	Count      int    `json:"count"`
	Amount     int64  `json:"amount"`
}

type Callback struct {
	ReturnURL       string `json:"return_url"`
	NotificationURL string `json:"notification_url"`
}
