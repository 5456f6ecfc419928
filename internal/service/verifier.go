package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"storepay/internal/models"
	"storepay/internal/payment"
	"storepay/internal/repository"
)

// manualAudit is stored as the gateway response of a manually verified payment.
type manualAudit struct {
	Source     string `json:"source"`
	VerifiedBy string `json:"verifiedBy"`
	VerifiedAt string `json:"verifiedAt"`
}

// VerifyResult is returned to the operator.
type VerifyResult struct {
	Message         string `json:"message"`
	ReferenceCode   string `json:"referenceCode"`
	AlreadyVerified bool   `json:"alreadyVerified"`
}

// VerifyBankTransfer completes a BANK payment after an operator has seen the
// funds arrive. input is either the reference code or the transfer memo as
// received, provided it names exactly one code.
func (s *PaymentService) VerifyBankTransfer(ctx context.Context, input, operator string) (*VerifyResult, error) {
	code := strings.ToUpper(strings.TrimSpace(input))
	if !payment.IsReferenceCode(code) {
		extracted, ok := payment.ExtractReferenceCode(input)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrPaymentNotFound, input)
		}
		code = extracted
	}
	if operator == "" {
		operator = "unknown"
	}
	log := s.logger.With(zap.String("reference_code", code), zap.String("operator", operator))

	var (
		result = &VerifyResult{ReferenceCode: code}
		done   *transition
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		p, err := tx.Payments.LockByReference(ctx, code)
		if err != nil {
			if repository.IsNotFound(err) {
				return fmt.Errorf("%w: %s", ErrPaymentNotFound, code)
			}
			return fmt.Errorf("lock payment: %w", err)
		}
		if p.Method != models.PaymentMethodBank {
			return fmt.Errorf("%w: %s is %s", ErrNotBankTransfer, code, p.Method)
		}

		switch p.Status {
		case models.PaymentStatusCompleted:
			result.AlreadyVerified = true
			result.Message = fmt.Sprintf("Payment %s was already verified.", code)
			return nil
		case models.PaymentStatusFailed:
			return fmt.Errorf("%w: %s", ErrPaymentFailed, code)
		}

		order, err := tx.Orders.LockByID(ctx, p.OrderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order.IsPaid() {
			// Leave the transfer PENDING; the operator decides on the refund.
			return fmt.Errorf("%w: order %s", ErrOrderAlreadyPaid, order.OrderNumber)
		}

		now := s.now()
		audit, err := json.Marshal(manualAudit{
			Source:     "manual",
			VerifiedBy: operator,
			VerifiedAt: now.UTC().Format("2006-01-02T15:04:05Z"),
		})
		if err != nil {
			return fmt.Errorf("encode audit: %w", err)
		}
		changed, err := tx.Payments.MarkCompleted(ctx, p.ID, now, audit)
		if err != nil {
			return fmt.Errorf("complete payment: %w", err)
		}
		if !changed {
			result.AlreadyVerified = true
			result.Message = fmt.Sprintf("Payment %s was already verified.", code)
			return nil
		}
		if err := tx.Orders.MarkPaid(ctx, order.ID, now); err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}

		result.Message = fmt.Sprintf("Payment %s verified. Order %s is paid.", code, order.OrderNumber)
		done = &transition{payment: p, order: order, status: models.PaymentStatusCompleted}
		return nil
	})
	if err != nil {
		log.Warn("bank transfer verification refused", zap.Error(err))
		return nil, err
	}

	if done != nil {
		s.afterTransition(ctx, "manual:"+operator, done)
	} else {
		log.Info("bank transfer already verified")
	}
	return result, nil
}
