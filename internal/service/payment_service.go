package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storepay/internal/config"
	"storepay/internal/events"
	"storepay/internal/models"
	"storepay/internal/notify"
	"storepay/internal/payment"
	"storepay/internal/pkg/httpclient"
	"storepay/internal/repository"
)

const maxReferenceAttempts = 3

// PaymentService owns every payment state transition: initiation, gateway
// callbacks, operator verification and status re-checks.
type PaymentService struct {
	store     *repository.Store
	provider  config.Provider
	publisher events.Publisher
	notifier  notify.Notifier
	logger    *zap.Logger
	client    *httpclient.Client

	now          func() time.Time
	newReference func() (string, error)
}

// Option customises a PaymentService.
type Option func(*PaymentService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *PaymentService) { s.now = now }
}

// WithReferenceGenerator replaces payment.GenerateReferenceCode.
func WithReferenceGenerator(gen func() (string, error)) Option {
	return func(s *PaymentService) { s.newReference = gen }
}

// WithHTTPClient sets the client used for gateway status queries.
func WithHTTPClient(c *httpclient.Client) Option {
	return func(s *PaymentService) { s.client = c }
}

func NewPaymentService(
	store *repository.Store,
	provider config.Provider,
	publisher events.Publisher,
	notifier notify.Notifier,
	logger *zap.Logger,
	opts ...Option,
) *PaymentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	s := &PaymentService{
		store:        store,
		provider:     provider,
		publisher:    publisher,
		notifier:     notifier,
		logger:       logger,
		client:       httpclient.New().WithTimeout(20*time.Second).WithRetry(1, time.Second),
		now:          time.Now,
		newReference: payment.GenerateReferenceCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// gateway builds the wallet gateway for method with freshly resolved
// credentials.
func (s *PaymentService) gateway(method models.PaymentMethod) (payment.Gateway, error) {
	switch method {
	case models.PaymentMethodWalletA:
		creds, err := payment.LoadWalletA(s.provider)
		if err != nil {
			return nil, err
		}
		return payment.NewWalletAGateway(creds, s.client), nil
	case models.PaymentMethodWalletB:
		creds, err := payment.LoadWalletB(s.provider)
		if err != nil {
			return nil, err
		}
		return payment.NewWalletBGateway(creds, s.client), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
}

func methodForGateway(gateway string) models.PaymentMethod {
	switch gateway {
	case payment.GatewayWalletA:
		return models.PaymentMethodWalletA
	case payment.GatewayWalletB:
		return models.PaymentMethodWalletB
	}
	return ""
}

// createPayment inserts a PENDING payment for order inside tx. Each insert
// runs in its own savepoint so a reference collision can be retried without
// aborting tx.
func (s *PaymentService) createPayment(ctx context.Context, tx *repository.Store, order *models.Order, method models.PaymentMethod) (*models.Payment, error) {
	for attempt := 1; attempt <= maxReferenceAttempts; attempt++ {
		code, err := s.newReference()
		if err != nil {
			return nil, err
		}
		p := &models.Payment{
			OrderID:       order.ID,
			ReferenceCode: code,
			Method:        method,
			Amount:        order.Total,
			Status:        models.PaymentStatusPending,
		}
		err = tx.Transaction(ctx, func(sp *repository.Store) error {
			return sp.Payments.Create(ctx, p)
		})
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrDuplicateReference) {
			return nil, fmt.Errorf("create payment: %w", err)
		}
		s.logger.Warn("reference code collision",
			zap.String("order_id", order.ID),
			zap.Int("attempt", attempt))
	}
	return nil, ErrReferenceExhausted
}

// emit publishes ev after commit. Delivery problems never undo a transition.
func (s *PaymentService) emit(ctx context.Context, ev events.PaymentEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish payment event failed",
			zap.String("type", string(ev.Type)),
			zap.String("reference_code", ev.ReferenceCode),
			zap.Error(err))
	}
}

func paymentEvent(t events.EventType, p *models.Payment, status models.PaymentStatus, reason string) events.PaymentEvent {
	return events.PaymentEvent{
		Type:          t,
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		ReferenceCode: p.ReferenceCode,
		Method:        string(p.Method),
		Amount:        p.Amount,
		Status:        string(status),
		Reason:        reason,
	}
}
