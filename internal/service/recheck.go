package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storepay/internal/models"
	"storepay/internal/payment"
)

var walletMethods = []models.PaymentMethod{models.PaymentMethodWalletA, models.PaymentMethodWalletB}

// Recheck asks the gateway about a PENDING wallet payment whose callback may
// have been lost. Only a confirmed success is applied, through the same locked
// transition as a callback; any other answer leaves the payment untouched.
func (s *PaymentService) Recheck(ctx context.Context, p *models.Payment) (Outcome, error) {
	if !p.Method.IsWallet() {
		return OutcomeRejected, fmt.Errorf("%w: %s cannot be re-checked", ErrUnsupportedMethod, p.Method)
	}
	if p.IsTerminal() {
		return OutcomeReplayed, nil
	}

	gw, err := s.gateway(p.Method)
	if err != nil {
		return OutcomeRejected, err
	}
	status, err := gw.QueryStatus(ctx, p)
	if err != nil {
		return OutcomeRejected, err
	}

	log := s.logger.With(zap.String("gateway", gw.Name()), zap.String("reference_code", p.ReferenceCode))
	if status.State != payment.StateSucceeded {
		log.Debug("re-check not conclusive",
			zap.String("state", status.State.String()),
			zap.String("message", status.Message))
		return OutcomeRejected, nil
	}

	return s.settle(ctx, settlement{
		source:    "recheck:" + gw.Name(),
		method:    p.Method,
		reference: p.ReferenceCode,
		match:     payment.MatchExact,
		succeeded: true,
		paid:      status.Amount,
		raw:       status.Raw,
		canFail:   false,
	}, log)
}

// RecheckPending re-checks wallet payments created between maxAge and minAge
// ago. It returns how many were completed.
func (s *PaymentService) RecheckPending(ctx context.Context, minAge, maxAge time.Duration) (int, error) {
	now := s.now()
	payments, err := s.store.Payments.FindStalePending(ctx, walletMethods, now.Add(-minAge), 200)
	if err != nil {
		return 0, fmt.Errorf("list pending wallet payments: %w", err)
	}

	applied := 0
	for i := range payments {
		p := &payments[i]
		if p.CreatedAt.Before(now.Add(-maxAge)) {
			continue
		}
		if ctx.Err() != nil {
			return applied, ctx.Err()
		}
		outcome, err := s.Recheck(ctx, p)
		if err != nil {
			s.logger.Warn("payment re-check failed",
				zap.String("reference_code", p.ReferenceCode),
				zap.Error(err))
			continue
		}
		if outcome == OutcomeApplied {
			applied++
		}
	}
	return applied, nil
}

// StalePending lists PENDING payments older than olderThan, oldest first.
func (s *PaymentService) StalePending(ctx context.Context, olderThan time.Duration) ([]models.Payment, error) {
	return s.store.Payments.FindStalePending(ctx, nil, s.now().Add(-olderThan), 500)
}
