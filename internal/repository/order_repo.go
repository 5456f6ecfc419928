package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storepay/internal/models"
)

// OrderRepository reads and transitions storefront orders.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts an order. The storefront owns order creation; this exists for
// seeding and tests.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID returns an order by id.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// LockByID loads an order with a row lock. Only meaningful inside a transaction.
func (r *OrderRepository) LockByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// Confirm moves the order to CONFIRMED without touching its payment status.
func (r *OrderRepository) Confirm(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", models.OrderStatusConfirmed).Error
}

// MarkPaid records settlement. paid_at is written only if it was never set.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusCompleted,
			"status":         models.OrderStatusConfirmed,
			"paid_at":        gorm.Expr("COALESCE(paid_at, ?)", at),
		}).Error
}
