package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrDuplicateReference is returned when a payment reference code collides
	// with an existing row.
	ErrDuplicateReference = errors.New("duplicate payment reference code")
	// ErrAmbiguousReference is returned when a partial reference matches more
	// than one payment.
	ErrAmbiguousReference = errors.New("reference fragment matches more than one payment")
)

// Store bundles the repositories whose rows change together.
type Store struct {
	db        *gorm.DB
	Orders    *OrderRepository
	Payments  *PaymentRepository
	Callbacks *CallbackLogRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Orders:    NewOrderRepository(db),
		Payments:  NewPaymentRepository(db),
		Callbacks: NewCallbackLogRepository(db),
	}
}

// DB returns the underlying connection (or transaction).
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with repositories bound to a single database
// transaction. Calling it on a Store that is already transactional opens a
// savepoint, so a failed inner statement can be rolled back without
// aborting the outer transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// isDuplicateKey recognises unique constraint violations. TranslateError
// covers the supported drivers; the string checks catch connections opened
// without it.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}
