package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the last known GoPay state of a payment.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusPaid      Status = "PAID"
	StatusCanceled  Status = "CANCELED"
	StatusTimeouted Status = "TIMEOUTED"
)

// Terminal reports whether s can no longer change.
func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusCanceled, StatusTimeouted:
		return true
	}
	return false
}

// LifecycleStatus is the canonical status consumed by the checkout flow.
type LifecycleStatus string

const (
	LifecycleNew      LifecycleStatus = "NEW"
	LifecycleCaptured LifecycleStatus = "CAPTURED"
	LifecycleCanceled LifecycleStatus = "CANCELED"
	LifecycleUnknown  LifecycleStatus = "UNKNOWN"
)

// Record is the reconciliation state attached to a checkout session.
type Record struct {
	SessionID uuid.UUID

	// Written once, by the first successful create.
	OrderID           *string
	ExternalPaymentID *int64

	GoPayStatus *Status

	// Snapshot of the order at creation time.
	Locale       string
	CurrencyCode string
	TotalAmount  decimal.Decimal
	ExtOrderID   string
	Items        []LineItem
	Contact      Contact

	CreatedAt time.Time
	UpdatedAt time.Time
}

type LineItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitTotal decimal.Decimal `json:"unit_total"`
}

type Contact struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// NewRecord creates an empty record for a new session from a snapshot.
func NewRecord(s *Snapshot) *Record {
	return &Record{
		SessionID:    uuid.New(),
		Locale:       s.Locale,
		CurrencyCode: s.CurrencyCode,
		TotalAmount:  s.TotalAmount,
		ExtOrderID:   s.ExtOrderID,
		Items:        s.Items,
		Contact:      s.Contact,
	}
}

// CaptureToken carries what the checkout framework hands to capture.
type CaptureToken struct {
	// ReturnURL is where the payer lands after the gateway page.
	ReturnURL string
}

type ResultKind int

const (
	ResultContinue ResultKind = iota
	ResultRedirect
)

// CaptureResult tells the caller whether to redirect the payer.
type CaptureResult struct {
	Kind ResultKind
	URL  string
}

func Redirect(url string) CaptureResult {
	return CaptureResult{Kind: ResultRedirect, URL: url}
}

func Continue() CaptureResult {
	return CaptureResult{Kind: ResultContinue}
}

func (r CaptureResult) IsRedirect() bool {
	return r.Kind == ResultRedirect
}
