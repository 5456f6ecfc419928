package main

import (
	"context"
	"fmt"
	"os/user"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storepay/internal/config"
	"storepay/internal/events"
	"storepay/internal/notify"
	"storepay/internal/repository"
	"storepay/internal/service"
)

var verifyOperator string

func verifyTransferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-transfer <reference-code|memo>",
		Short: "Mark a bank transfer as received",
		Long: `Complete a BANK payment after the funds have been seen on the account.

The argument is the reference code, or the transfer memo as received when it
contains exactly one code. Verifying an already verified payment is a no-op.`,
		Args: cobra.ExactArgs(1),
		RunE: runVerifyTransfer,
	}
	cmd.Flags().StringVar(&verifyOperator, "operator", "", "operator name recorded with the verification (default: current user)")
	return cmd
}

func runVerifyTransfer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Server.Env)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		return err
	}

	publisher, err := events.NewPublisher(cfg.AMQP.URL, logger)
	if err != nil {
		logger.Warn("payment events disabled for this run", zap.Error(err))
		publisher = events.NopPublisher{}
	}
	defer publisher.Close()

	notifier, err := notify.New(cfg.Telegram.Token, cfg.Telegram.ReportChat, logger)
	if err != nil {
		notifier = notify.Nop{}
	}

	operator := verifyOperator
	if operator == "" {
		if u, err := user.Current(); err == nil {
			operator = "cli:" + u.Username
		}
	}

	svc := service.NewPaymentService(repository.NewStore(db), config.NewEnvProvider(), publisher, notifier, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := svc.VerifyBankTransfer(ctx, args[0], operator)
	if err != nil {
		return err
	}
	fmt.Println(result.Message)

	notify.Drain(ctx, notifier)
	return nil
}
