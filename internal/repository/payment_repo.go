package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storepay/internal/models"
)

// PaymentRepository handles payment attempt database operations.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a payment. A reference code collision is reported as
// ErrDuplicateReference so the caller can regenerate the code.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateReference, payment.ReferenceCode)
		}
		return err
	}
	return nil
}

// FindByID returns a payment by id.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByReference returns a payment by its exact reference code.
func (r *PaymentRepository) FindByReference(ctx context.Context, code string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("reference_code = ?", code).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByOrderID returns every attempt made for an order, newest first.
func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at DESC").Find(&payments).Error
	return payments, err
}

// LockByReference loads a payment by exact reference code with a row lock.
// Only meaningful inside a transaction.
func (r *PaymentRepository) LockByReference(ctx context.Context, code string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reference_code = ?", code).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// LockByReferenceFragment locks the single payment whose reference code
// contains fragment. The caller must pass a fragment restricted to [A-Z0-9];
// LIKE wildcards are not escaped here.
func (r *PaymentRepository) LockByReferenceFragment(ctx context.Context, fragment string) (*models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reference_code LIKE ?", "%"+fragment+"%").
		Limit(2).
		Find(&payments).Error; err != nil {
		return nil, err
	}
	switch len(payments) {
	case 0:
		return nil, gorm.ErrRecordNotFound
	case 1:
		return &payments[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousReference, fragment)
	}
}

// SetGatewayRequestID stores the id the payment is known by at its gateway.
func (r *PaymentRepository) SetGatewayRequestID(ctx context.Context, id, requestID string) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", id).
		Update("gateway_request_id", requestID).Error
}

// MarkCompleted moves a PENDING payment to COMPLETED. It reports whether a row
// was changed; a payment that already left PENDING is left alone.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, id string, at time.Time, raw []byte) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":           models.PaymentStatusCompleted,
			"completed_at":     at,
			"gateway_response": jsonOrNil(raw),
		})
	return res.RowsAffected == 1, res.Error
}

// MarkFailed moves a PENDING payment to FAILED, keeping the gateway payload.
func (r *PaymentRepository) MarkFailed(ctx context.Context, id, reason string, raw []byte) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":           models.PaymentStatusFailed,
			"failure_reason":   truncate(reason, 255),
			"gateway_response": jsonOrNil(raw),
		})
	return res.RowsAffected == 1, res.Error
}

// FindAll returns payments with pagination and search.
func (r *PaymentRepository) FindAll(ctx context.Context, limit, page int, query string) ([]models.Payment, int64, error) {
	var payments []models.Payment
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Payment{})

	if query != "" {
		search := "%" + query + "%"
		db = db.Where("reference_code LIKE ? OR order_id LIKE ? OR method LIKE ? OR status LIKE ?",
			search, search, search, search)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	if err := db.Limit(limit).Offset(offset).Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// FindStalePending returns PENDING payments of the given methods created
// before olderThan, oldest first.
func (r *PaymentRepository) FindStalePending(ctx context.Context, methods []models.PaymentMethod, olderThan time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	db := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.PaymentStatusPending, olderThan)
	if len(methods) > 0 {
		db = db.Where("method IN ?", methods)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Order("created_at ASC").Find(&payments).Error
	return payments, err
}

// CountByStatus returns the number of payments per status.
func (r *PaymentRepository) CountByStatus(ctx context.Context) (map[models.PaymentStatus]int64, error) {
	var rows []struct {
		Status models.PaymentStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[models.PaymentStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func jsonOrNil(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
