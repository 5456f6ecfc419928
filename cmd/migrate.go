package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"storepay/internal/bootstrap"
	"storepay/internal/config"
)

var (
	migrateSeedDemo bool
	migrateUser     string
	migrateTotal    string
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Create or update the orders, payments and payment_callback_logs tables.

With --seed-demo a PENDING order is inserted so the payment flows can be
tried locally.

Examples:
  storepay migrate
  storepay migrate --seed-demo --user buyer-1 --total 1000000`,
		RunE: runMigrate,
	}
	cmd.Flags().BoolVar(&migrateSeedDemo, "seed-demo", false, "insert a demo order after migrating")
	cmd.Flags().StringVar(&migrateUser, "user", "demo-user", "owner of the demo order")
	cmd.Flags().StringVar(&migrateTotal, "total", "1000000", "total of the demo order")
	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	dbCfg, err := config.LoadDatabaseOnly()
	if err != nil {
		return err
	}
	db, err := config.NewDatabase(dbCfg)
	if err != nil {
		return err
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		return err
	}
	fmt.Println("Schema migration completed")

	if !migrateSeedDemo {
		return nil
	}
	total, err := decimal.NewFromString(migrateTotal)
	if err != nil {
		return fmt.Errorf("invalid --total %q: %w", migrateTotal, err)
	}
	order, err := bootstrap.SeedDemoOrder(db, migrateUser, total)
	if err != nil {
		return err
	}
	fmt.Printf("Demo order %s (id %s) for %s, total %s\n", order.OrderNumber, order.ID, order.UserID, order.Total.String())
	return nil
}
