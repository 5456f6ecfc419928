package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
)

// PaymentStatus is shared by orders and payment attempts.
// Payment rows only ever use PENDING, COMPLETED and FAILED.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// Order maps to the `orders` table. The storefront owns the row; the payment
// core reads it and only ever writes status, payment_status and paid_at.
type Order struct {
	ID            string          `gorm:"column:id;primaryKey;size:36" json:"id"`
	OrderNumber   string          `gorm:"column:order_number;size:32;uniqueIndex" json:"order_number"`
	UserID        string          `gorm:"column:user_id;size:64;index" json:"user_id"`
	Status        OrderStatus     `gorm:"column:status;size:20;not null" json:"status"`
	PaymentStatus PaymentStatus   `gorm:"column:payment_status;size:20;not null" json:"payment_status"`
	Total         decimal.Decimal `gorm:"column:total;type:decimal(15,2);not null" json:"total"`
	PaidAt        *time.Time      `gorm:"column:paid_at" json:"paid_at,omitempty"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// BeforeCreate fills the id and the initial states.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = PaymentStatusPending
	}
	return nil
}

// IsPaid reports whether the order has been settled by some payment.
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusCompleted
}
