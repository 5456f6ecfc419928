package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storepay/internal/events"
	"storepay/internal/models"
	"storepay/internal/payment"
	"storepay/internal/repository"
)

// InitiateRequest asks to pay an order with a method.
type InitiateRequest struct {
	OrderID   string
	Method    string
	ReturnURL string
}

// InitiateResult is tagged by Method; only the fields of that method are set.
type InitiateResult struct {
	Method    models.PaymentMethod `json:"method"`
	Message   string               `json:"message"`
	PaymentID string               `json:"-"`

	// BANK
	BankInfo      *payment.BankInfo `json:"bankInfo,omitempty"`
	Amount        *decimal.Decimal  `json:"amount,omitempty"`
	ReferenceCode string            `json:"referenceCode,omitempty"`

	// WALLET_A
	PayURL    string `json:"payUrl,omitempty"`
	RequestID string `json:"requestId,omitempty"`

	// WALLET_B
	OrderURL   string `json:"orderUrl,omitempty"`
	AppTransID string `json:"appTransId,omitempty"`
}

// MarshalJSON writes Amount as a JSON number rather than decimal's quoted
// string.
func (r InitiateResult) MarshalJSON() ([]byte, error) {
	type plain InitiateResult
	out := struct {
		plain
		Amount json.Number `json:"amount,omitempty"`
	}{plain: plain(r)}
	if r.Amount != nil {
		out.Amount = json.Number(r.Amount.String())
	}
	return json.Marshal(out)
}

// methodSetup is everything resolved from configuration before any row is
// written, so a missing key never leaves a half-created payment behind.
type methodSetup struct {
	bank    payment.BankAccount
	gateway payment.Gateway
	baseURL string
}

// Initiate creates a PENDING payment for an order owned by userID and returns
// the instructions for the chosen method.
func (s *PaymentService) Initiate(ctx context.Context, userID string, req InitiateRequest) (*InitiateResult, error) {
	method, ok := models.ParsePaymentMethod(req.Method)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}

	order, err := s.store.Orders.FindByID(ctx, req.OrderID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if order.IsPaid() {
		return nil, ErrOrderAlreadyPaid
	}

	setup, err := s.resolveSetup(method)
	if err != nil {
		s.logger.Error("payment method unavailable",
			zap.String("method", string(method)),
			zap.Error(err))
		return nil, err
	}

	var (
		result  *InitiateResult
		created *models.Payment
	)
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		locked, err := tx.Orders.LockByID(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if locked.IsPaid() {
			return ErrOrderAlreadyPaid
		}

		p, err := s.createPayment(ctx, tx, locked, method)
		if err != nil {
			return err
		}
		created = p

		switch method {
		case models.PaymentMethodCOD:
			if err := tx.Orders.Confirm(ctx, locked.ID); err != nil {
				return fmt.Errorf("confirm order: %w", err)
			}
			result = &InitiateResult{
				Message: fmt.Sprintf("Order %s is confirmed. Please pay the courier on delivery.", locked.OrderNumber),
			}

		case models.PaymentMethodBank:
			info, msg := payment.BankInstructions(setup.bank, p.ReferenceCode, p.Amount)
			amount := p.Amount
			result = &InitiateResult{
				Message:       msg,
				BankInfo:      &info,
				Amount:        &amount,
				ReferenceCode: p.ReferenceCode,
			}

		default:
			res, err := setup.gateway.CreatePayment(ctx, payment.CreateRequest{
				PaymentID:     p.ID,
				ReferenceCode: p.ReferenceCode,
				Amount:        p.Amount,
				Description:   fmt.Sprintf("Payment for order %s", locked.OrderNumber),
				UserID:        userID,
				ReturnURL:     returnURL(req.ReturnURL, setup.baseURL, locked.ID),
				NotifyURL:     setup.baseURL + "/payment/" + setup.gateway.Name() + "/callback",
			})
			if err != nil {
				return fmt.Errorf("%s create payment: %w", setup.gateway.Name(), err)
			}
			if err := tx.Payments.SetGatewayRequestID(ctx, p.ID, res.RequestID); err != nil {
				return fmt.Errorf("store gateway request id: %w", err)
			}
			p.GatewayRequestID = res.RequestID

			result = &InitiateResult{Message: "Continue to the wallet to complete the payment."}
			if method == models.PaymentMethodWalletA {
				result.PayURL, result.RequestID = res.PayURL, res.RequestID
			} else {
				result.OrderURL, result.AppTransID = res.PayURL, res.RequestID
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Method = method
	result.PaymentID = created.ID

	s.logger.Info("payment initiated",
		zap.String("order_id", order.ID),
		zap.String("reference_code", created.ReferenceCode),
		zap.String("method", string(method)))

	if method == models.PaymentMethodCOD {
		s.emit(ctx, events.PaymentEvent{
			Type:          events.OrderConfirmed,
			PaymentID:     created.ID,
			OrderID:       order.ID,
			ReferenceCode: created.ReferenceCode,
			Method:        string(method),
			Amount:        created.Amount,
			Status:        string(models.PaymentStatusPending),
		})
	}
	return result, nil
}

func (s *PaymentService) resolveSetup(method models.PaymentMethod) (methodSetup, error) {
	var setup methodSetup
	var err error
	switch method {
	case models.PaymentMethodCOD:
	case models.PaymentMethodBank:
		setup.bank, err = payment.LoadBank(s.provider)
	case models.PaymentMethodWalletA, models.PaymentMethodWalletB:
		if setup.gateway, err = s.gateway(method); err != nil {
			return setup, err
		}
		setup.baseURL, err = payment.LoadBaseURL(s.provider)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	return setup, err
}

func returnURL(requested, baseURL, orderID string) string {
	if requested != "" {
		return requested
	}
	return baseURL + "/orders/" + orderID
}
