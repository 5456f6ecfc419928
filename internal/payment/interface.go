package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"storepay/internal/models"
)

// CreateRequest carries what a gateway needs to build a payment link.
type CreateRequest struct {
	PaymentID     string
	ReferenceCode string
	Amount        decimal.Decimal
	Description   string
	UserID        string
	ReturnURL     string
	NotifyURL     string
}

// PaymentResult contains the result of a payment creation.
type PaymentResult struct {
	// RequestID is the id the gateway knows the attempt by (wallet A requestId,
	// wallet B apptransid).
	RequestID string `json:"request_id"`
	PayURL    string `json:"pay_url"`
}

// PaymentState is a gateway's view of a transaction.
type PaymentState int

const (
	StatePending PaymentState = iota
	StateSucceeded
	StateFailed
)

func (s PaymentState) String() string {
	switch s {
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "pending"
	}
}

// StatusResult is the answer of a transaction status query.
type StatusResult struct {
	State   PaymentState
	Amount  int64
	Message string
	Raw     []byte
}

// Gateway defines the interface for wallet gateway implementations.
type Gateway interface {
	// Name returns the gateway identifier.
	Name() string

	// CreatePayment signs a payment request and returns the URL the buyer is
	// redirected to. It makes no network call.
	CreatePayment(ctx context.Context, req CreateRequest) (*PaymentResult, error)

	// QueryStatus asks the gateway for the state of an earlier payment.
	QueryStatus(ctx context.Context, p *models.Payment) (*StatusResult, error)
}

type clock func() time.Time
