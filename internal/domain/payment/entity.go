package payment

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents payment status
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Kind tells how the customer reaches the payment page
type Kind string

const (
	KindLink    Kind = "link"    // signed payment page URL built locally
	KindInvoice Kind = "invoice" // invoice link created through the invoice API
)

// Event types written to payment_events
const (
	EventInitiated        = "robokassa.init"
	EventInvoiceCreated   = "robokassa.invoice.created"
	EventResultSucceeded  = "robokassa.result.succeeded"
	EventSuccessRedirect  = "robokassa.success.redirect"
	EventFailRedirect     = "robokassa.fail.redirect"
	EventInvoiceCancelled = "robokassa.invoice.cancelled"
)

// PaymentIDField is the Shp_ field that ties a callback back to the stored payment
const PaymentIDField = "Shp_payment_id"

// JSONRawMessage handles NULL json fields from DB
type JSONRawMessage []byte

func (j *JSONRawMessage) Scan(src any) error {
	if src == nil {
		*j = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return fmt.Errorf("unsupported type: %T", src)
	}
	return nil
}

func (j JSONRawMessage) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// Payment is one RoboKassa invoice tracked by the gateway
type Payment struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	InvID              int64           `db:"inv_id" json:"inv_id"`
	Kind               Kind            `db:"kind" json:"kind"`
	Amount             decimal.Decimal `db:"amount" json:"amount"`
	Currency           string          `db:"currency" json:"currency"`
	Description        string          `db:"description" json:"description"`
	Email              sql.NullString  `db:"email" json:"email,omitempty"`
	Status             Status          `db:"status" json:"status"`
	IsTest             bool            `db:"is_test" json:"is_test"`
	PaymentURL         string          `db:"payment_url" json:"payment_url"`
	ExternalID         sql.NullString  `db:"external_id" json:"external_id,omitempty"`
	RawInitPayload     JSONRawMessage  `db:"raw_init_payload" json:"raw_init_payload,omitempty"`
	RawCallbackPayload JSONRawMessage  `db:"raw_callback_payload" json:"raw_callback_payload,omitempty"`
	CreatedBy          uuid.NullUUID   `db:"created_by" json:"created_by,omitempty"`
	PaidAt             sql.NullTime    `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// IsPaid checks if payment is completed
func (p *Payment) IsPaid() bool {
	return p.Status == StatusPaid
}

// Event is an audit record of a gateway interaction
type Event struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	PaymentID uuid.UUID      `db:"payment_id" json:"payment_id"`
	Type      string         `db:"event_type" json:"event_type"`
	Payload   JSONRawMessage `db:"payload" json:"payload,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
