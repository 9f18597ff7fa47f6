package payment

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultLocale is used when neither the order nor the configuration names
// a language. GoPay falls back to Czech as well.
const DefaultLocale = "cs"

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// Order is the part of the shop order needed to pay for it.
type Order struct {
	Number       string          `json:"number"`
	Total        decimal.Decimal `json:"total"`
	CurrencyCode string          `json:"currency_code"`
	LocaleCode   string          `json:"locale_code,omitempty"`
	Lines        []OrderLine     `json:"lines"`
}

type OrderLine struct {
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
}

// PayerContact is what GoPay needs to know about the payer.
type PayerContact interface {
	GetEmail() string
	GetFirstName() string
	GetLastName() string
}

type Customer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (c *Customer) GetEmail() string     { return c.Email }
func (c *Customer) GetFirstName() string { return c.FirstName }
func (c *Customer) GetLastName() string  { return c.LastName }

// Snapshot is the immutable order data a remote payment is created from.
type Snapshot struct {
	Locale       string
	CurrencyCode string
	TotalAmount  decimal.Decimal
	ExtOrderID   string
	Items        []LineItem
	Contact      Contact
}

type SnapshotBuilder struct {
	fallbackLocale string
}

func NewSnapshotBuilder(fallbackLocale string) *SnapshotBuilder {
	if fallbackLocale == "" {
		fallbackLocale = DefaultLocale
	}
	return &SnapshotBuilder{fallbackLocale: fallbackLocale}
}

// Build extracts a Snapshot from the order. customer must implement
// PayerContact.
func (b *SnapshotBuilder) Build(order Order, customer any, locale string) (*Snapshot, error) {
	payer, ok := customer.(PayerContact)
	if c, isCustomer := customer.(*Customer); isCustomer && c == nil {
		ok = false
	}
	if !ok {
		return nil, &ValidationError{
			Field:   "customer",
			Message: fmt.Sprintf("%T does not provide payer contact", customer),
		}
	}

	if order.Number == "" {
		return nil, &ValidationError{Field: "number", Message: "order number is empty"}
	}
	if len(order.CurrencyCode) != 3 {
		return nil, &ValidationError{Field: "currency_code", Message: "expected ISO 4217 code"}
	}
	if !order.Total.IsPositive() {
		return nil, &ValidationError{Field: "total", Message: "must be greater than zero"}
	}
	if _, err := ToMinorUnits(order.Total); err != nil {
		return nil, &ValidationError{Field: "total", Message: err.Error()}
	}
	if len(order.Lines) == 0 {
		return nil, &ValidationError{Field: "lines", Message: "order has no lines"}
	}

	items := make([]LineItem, 0, len(order.Lines))
	for i, line := range order.Lines {
		if line.Quantity <= 0 {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("lines[%d].quantity", i),
				Message: "must be greater than zero",
			}
		}
		if _, err := ToMinorUnits(line.Total); err != nil {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("lines[%d].total", i),
				Message: err.Error(),
			}
		}
		items = append(items, LineItem{
			Name:      line.ProductName,
			Quantity:  line.Quantity,
			UnitTotal: line.Total,
		})
	}

	return &Snapshot{
		Locale:       NormalizeLocale(locale, b.fallbackLocale),
		CurrencyCode: strings.ToUpper(order.CurrencyCode),
		TotalAmount:  order.Total,
		ExtOrderID:   order.Number,
		Items:        items,
		Contact: Contact{
			Email:     payer.GetEmail(),
			FirstName: payer.GetFirstName(),
			LastName:  payer.GetLastName(),
		},
	}, nil
}

// NormalizeLocale reduces a locale such as en_US or cs-CZ to its primary
// subtag.
func NormalizeLocale(locale, fallback string) string {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, "_-"); i >= 0 {
		locale = locale[:i]
	}
	if locale == "" {
		return fallback
	}
	return strings.ToLower(locale)
}

// ToMinorUnits converts an amount to the integer cents GoPay expects.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	minor := amount.Mul(hundred)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than two decimal places", amount)
	}
	if minor.Abs().GreaterThan(maxMinor) {
		return 0, fmt.Errorf("amount %s is out of range", amount)
	}
	return minor.IntPart(), nil
}

// buildPayload turns a record snapshot into the GoPay create body.
func buildPayload(rec *Record, goID, returnURL, notificationURL string) (*CreatePayload, error) {
	amount, err := ToMinorUnits(rec.TotalAmount)
	if err != nil {
		return nil, &ValidationError{Field: "total", Message: err.Error()}
	}

	items := make([]OrderItem, 0, len(rec.Items))
	for _, it := range rec.Items {
		lineAmount, err := ToMinorUnits(it.UnitTotal)
		if err != nil {
			return nil, &ValidationError{Field: "lines", Message: err.Error()}
		}
		items = append(items, OrderItem{
			Type:       "ITEM",
			Name:       it.Name,
			ProductURL: "",
			Count:      it.Quantity,
			Amount:     lineAmount,
		})
	}

	return &CreatePayload{
		Target:      Target{Type: "ACCOUNT", GoID: goID},
		Currency:    rec.CurrencyCode,
		Amount:      amount,
		OrderNumber: rec.ExtOrderID,
		Lang:        rec.Locale,
		Payer: Payer{Contact: PayerContactInfo{
			Email:     rec.Contact.Email,
			FirstName: rec.Contact.FirstName,
			LastName:  rec.Contact.LastName,
		}},
		Items: items,
		Callback: Callback{
			ReturnURL:       returnURL,
			NotificationURL: notificationURL,
		},
	}, nil
}
