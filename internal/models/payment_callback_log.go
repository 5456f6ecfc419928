package models

import "time"

// CallbackOutcome records what the reconciler did with an inbound callback.
type CallbackOutcome string

const (
	CallbackOutcomeApplied          CallbackOutcome = "applied"
	CallbackOutcomeReplayed         CallbackOutcome = "replayed"
	CallbackOutcomeRejected         CallbackOutcome = "rejected"
	CallbackOutcomeUnknownReference CallbackOutcome = "unknown_reference"
	CallbackOutcomeError            CallbackOutcome = "error"
)

// PaymentCallbackLog maps to the `payment_callback_logs` table: one row per
// inbound gateway callback, accepted or not. Payload is sized past the 64K
// callback body limit (MEDIUMTEXT on MySQL, TEXT elsewhere).
type PaymentCallbackLog struct {
	ID            uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Gateway       string          `gorm:"column:gateway;size:32;not null;index" json:"gateway"`
	ReferenceCode string          `gorm:"column:reference_code;size:64;index" json:"reference_code"`
	Outcome       CallbackOutcome `gorm:"column:outcome;size:32;not null" json:"outcome"`
	BodySHA256    string          `gorm:"column:body_sha256;size:64" json:"body_sha256"`
	Payload       string          `gorm:"column:payload;size:1048576" json:"payload"`
	CreatedAt     time.Time       `gorm:"column:created_at;index" json:"created_at"`
}

func (PaymentCallbackLog) TableName() string {
	return "payment_callback_logs"
}
