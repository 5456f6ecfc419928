package bootstrap

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storepay/internal/models"
)

// MigrateAndSeed ensures required tables exist.
func MigrateAndSeed(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		// Storefront-owned, migrated here for local runs
		&models.Order{},
		// Payment core
		&models.Payment{},
		&models.PaymentCallbackLog{},
	}
}

// SeedDemoOrder inserts a PENDING order for userID so the payment flows can be
// exercised locally. It returns the new order.
func SeedDemoOrder(db *gorm.DB, userID string, total decimal.Decimal) (*models.Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("seed demo order: user id is required")
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("seed demo order: total must be positive")
	}

	var order *models.Order
	err := db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Order{}).Count(&count).Error; err != nil {
			return err
		}
		row := models.Order{
			OrderNumber: fmt.Sprintf("DEMO-%06d", count+1),
			UserID:      userID,
			Total:       total,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		order = &row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed demo order failed: %w", err)
	}
	return order, nil
}
