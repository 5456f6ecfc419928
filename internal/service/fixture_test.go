package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storepay/internal/bootstrap"
	"storepay/internal/config"
	"storepay/internal/events"
	"storepay/internal/models"
	"storepay/internal/payment"
	"storepay/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PaymentEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ofType(t events.EventType) []events.PaymentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.PaymentEvent
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordingNotifier) Notify(_ context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
}

func (n *recordingNotifier) containing(s string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, t := range n.texts {
		if strings.Contains(t, s) {
			c++
		}
	}
	return c
}

func fullProvider() config.StaticProvider {
	return config.StaticProvider{
		"APP_BASE_URL":          "https://shop.test",
		"BANK_NAME":             "Example Bank",
		"BANK_ACCOUNT_NUMBER":   "0123456789",
		"BANK_ACCOUNT_NAME":     "STOREPAY LTD",
		"WALLET_A_PARTNER_CODE": "PARTNER",
		"WALLET_A_ACCESS_KEY":   "ak",
		"WALLET_A_SECRET_KEY":   "sk",
		"WALLET_B_APP_ID":       "553",
		"WALLET_B_KEY1":         "k1",
		"WALLET_B_KEY2":         "k2",
	}
}

type fixture struct {
	store    *repository.Store
	svc      *PaymentService
	pub      *recordingPublisher
	notes    *recordingNotifier
	provider config.StaticProvider
}

var orderSeq atomic.Int64

func newFixture(t *testing.T, opts ...Option) *fixture {
	return newFixtureWith(t, fullProvider(), opts...)
}

func newFixtureWith(t *testing.T, provider config.StaticProvider, opts ...Option) *fixture {
	t.Helper()
	db, err := config.NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, bootstrap.MigrateAndSeed(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f := &fixture{
		store:    repository.NewStore(db),
		pub:      &recordingPublisher{},
		notes:    &recordingNotifier{},
		provider: provider,
	}
	f.svc = NewPaymentService(f.store, provider, f.pub, f.notes, zaptest.NewLogger(t), opts...)
	return f
}

func (f *fixture) order(t *testing.T, userID string, total int64) *models.Order {
	t.Helper()
	o := &models.Order{
		OrderNumber: fmt.Sprintf("ORD-%05d", orderSeq.Add(1)),
		UserID:      userID,
		Total:       decimal.NewFromInt(total),
	}
	require.NoError(t, f.store.Orders.Create(context.Background(), o))
	return o
}

func (f *fixture) initiate(t *testing.T, o *models.Order, method string) *InitiateResult {
	t.Helper()
	res, err := f.svc.Initiate(context.Background(), o.UserID, InitiateRequest{OrderID: o.ID, Method: method})
	require.NoError(t, err)
	return res
}

func (f *fixture) reloadOrder(t *testing.T, id string) *models.Order {
	t.Helper()
	o, err := f.store.Orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) reloadPayment(t *testing.T, ref string) *models.Payment {
	t.Helper()
	p, err := f.store.Payments.FindByReference(context.Background(), ref)
	require.NoError(t, err)
	return p
}

func (f *fixture) countPayments(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.store.DB().Model(&models.Payment{}).Count(&n).Error)
	return n
}

func walletABody(t *testing.T, ref string, amount int64, resultCode int) []byte {
	t.Helper()
	n := payment.WalletANotification{
		PartnerCode:  "PARTNER",
		OrderID:      ref,
		RequestID:    "1706695200000_x",
		Amount:       amount,
		OrderInfo:    "Payment for order",
		OrderType:    "momo_wallet",
		TransID:      4088878653,
		ResultCode:   resultCode,
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: 1706695260000,
	}
	n.Signature = payment.SignHex("sk", n.Canonical("ak"))
	b, err := json.Marshal(n)
	require.NoError(t, err)
	return b
}

func walletBBody(t *testing.T, appTransID string, amount int64) []byte {
	t.Helper()
	data, err := json.Marshal(payment.WalletBCallbackData{
		AppID:      553,
		AppTransID: appTransID,
		AppTime:    1706695200000,
		AppUser:    "buyer-1",
		Amount:     amount,
		ZPTransID:  240131000000123,
		ServerTime: 1706695260000,
	})
	require.NoError(t, err)
	b, err := json.Marshal(payment.WalletBEnvelope{Data: string(data), MAC: payment.SignHex("k2", string(data)), Type: 1})
	require.NoError(t, err)
	return b
}
