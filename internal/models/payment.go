package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentMethod selects the rail a payment attempt is handed to.
type PaymentMethod string

const (
	PaymentMethodCOD     PaymentMethod = "COD"
	PaymentMethodBank    PaymentMethod = "BANK"
	PaymentMethodWalletA PaymentMethod = "WALLET_A"
	PaymentMethodWalletB PaymentMethod = "WALLET_B"
)

// ParsePaymentMethod normalises user input. ok is false for unknown methods.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case PaymentMethodCOD, PaymentMethodBank, PaymentMethodWalletA, PaymentMethodWalletB:
		return m, true
	}
	return "", false
}

// IsWallet reports whether the method settles through a gateway callback.
func (m PaymentMethod) IsWallet() bool {
	return m == PaymentMethodWalletA || m == PaymentMethodWalletB
}

// Payment maps to the `payments` table. One row per initiation attempt.
type Payment struct {
	ID               string          `gorm:"column:id;primaryKey;size:36" json:"id"`
	OrderID          string          `gorm:"column:order_id;size:36;not null;index" json:"order_id"`
	ReferenceCode    string          `gorm:"column:reference_code;size:16;not null;uniqueIndex" json:"reference_code"`
	Method           PaymentMethod   `gorm:"column:method;size:20;not null" json:"method"`
	Amount           decimal.Decimal `gorm:"column:amount;type:decimal(15,2);not null" json:"amount"`
	Status           PaymentStatus   `gorm:"column:status;size:20;not null;index" json:"status"`
	GatewayRequestID string          `gorm:"column:gateway_request_id;size:64;index" json:"gateway_request_id,omitempty"`
	FailureReason    string          `gorm:"column:failure_reason;size:255" json:"failure_reason,omitempty"`
	CompletedAt      *time.Time      `gorm:"column:completed_at" json:"completed_at,omitempty"`
	GatewayResponse  datatypes.JSON  `gorm:"column:gateway_response" json:"gateway_response,omitempty"`
	CreatedAt        time.Time       `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// BeforeCreate assigns a uuid when the caller has not already chosen one.
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = PaymentStatusPending
	}
	return nil
}

// IsTerminal reports whether the payment can no longer transition.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusFailed
}
