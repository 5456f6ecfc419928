package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepay/internal/config"
	"storepay/internal/events"
	"storepay/internal/models"
	"storepay/internal/payment"
)

func TestInitiate_COD(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "buyer-1", 250000)

	res := f.initiate(t, o, "cod")
	assert.Equal(t, models.PaymentMethodCOD, res.Method)
	assert.Contains(t, res.Message, o.OrderNumber)
	assert.Empty(t, res.ReferenceCode)

	got := f.reloadOrder(t, o.ID)
	assert.Equal(t, models.OrderStatusConfirmed, got.Status)
	assert.Equal(t, models.PaymentStatusPending, got.PaymentStatus)
	assert.Nil(t, got.PaidAt)

	p, err := f.store.Payments.FindByID(context.Background(), res.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(250000)))
	assert.True(t, payment.IsReferenceCode(p.ReferenceCode))

	confirmed := f.pub.ofType(events.OrderConfirmed)
	require.Len(t, confirmed, 1)
	assert.Equal(t, o.ID, confirmed[0].OrderID)
}

func TestInitiate_Bank(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "buyer-1", 1500000)

	res := f.initiate(t, o, "BANK")
	require.NotNil(t, res.BankInfo)
	require.NotNil(t, res.Amount)
	assert.True(t, payment.IsReferenceCode(res.ReferenceCode))
	assert.Equal(t, res.ReferenceCode, res.BankInfo.TransferContent)
	assert.Equal(t, "0123456789", res.BankInfo.AccountNumber)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(1500000)))
	assert.Contains(t, res.Message, res.ReferenceCode)

	got := f.reloadOrder(t, o.ID)
	assert.Equal(t, models.OrderStatusPending, got.Status)
	assert.Equal(t, models.PaymentStatusPending, got.PaymentStatus)
}

func TestInitiateResult_AmountIsJSONNumber(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "buyer-1", 1000000)

	raw, err := json.Marshal(f.initiate(t, o, "BANK"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"amount":1000000`)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "BANK", body["method"])
	assert.Len(t, body["referenceCode"], payment.ReferenceLength)
	assert.NotContains(t, body, "PaymentID")

	raw, err = json.Marshal(f.initiate(t, o, "COD"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "amount")
}

func TestInitiate_WalletA(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "buyer-1", 50000)

	res := f.initiate(t, o, "WALLET_A")
	assert.True(t, strings.HasPrefix(res.PayURL, payment.DefaultWalletAEndpoint+"/pay?"))
	assert.True(t, strings.HasSuffix(res.RequestID, "_"+res.PaymentID))
	assert.Empty(t, res.OrderURL)

	p, err := f.store.Payments.FindByID(context.Background(), res.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, res.RequestID, p.GatewayRequestID)
	assert.Contains(t, res.PayURL, "orderId="+p.ReferenceCode)
	assert.Contains(t, res.PayURL, "ipnUrl=https%3A%2F%2Fshop.test%2Fpayment%2Fwallet-a%2Fcallback")
}

func TestInitiate_WalletB(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "buyer-1", 50000)

	res := f.initiate(t, o, "WALLET_B")
	assert.True(t, strings.HasPrefix(res.OrderURL, payment.DefaultWalletBEndpoint+"/createorder?"))
	assert.Empty(t, res.PayURL)

	p, err := f.store.Payments.FindByID(context.Background(), res.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, res.AppTransID, p.GatewayRequestID)
	assert.True(t, strings.HasSuffix(res.AppTransID, "_"+p.ReferenceCode))
}

func TestInitiate_Refusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, "buyer-1", 50000)

	_, err := f.svc.Initiate(ctx, "buyer-1", InitiateRequest{OrderID: o.ID, Method: "CARD"})
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	_, err = f.svc.Initiate(ctx, "buyer-1", InitiateRequest{OrderID: "missing", Method: "COD"})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	// Another buyer's order looks exactly like a missing one.
	_, err = f.svc.Initiate(ctx, "buyer-2", InitiateRequest{OrderID: o.ID, Method: "COD"})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	require.NoError(t, f.store.Orders.MarkPaid(ctx, o.ID, f.svc.now()))
	_, err = f.svc.Initiate(ctx, "buyer-1", InitiateRequest{OrderID: o.ID, Method: "BANK"})
	assert.ErrorIs(t, err, ErrOrderAlreadyPaid)

	assert.Zero(t, f.countPayments(t))
}

func TestInitiate_GatewayNotConfiguredWritesNothing(t *testing.T) {
	provider := fullProvider()
	delete(provider, "WALLET_A_SECRET_KEY")
	delete(provider, "BANK_ACCOUNT_NAME")
	f := newFixtureWith(t, provider)
	o := f.order(t, "buyer-1", 50000)

	_, err := f.svc.Initiate(context.Background(), "buyer-1", InitiateRequest{OrderID: o.ID, Method: "WALLET_A"})
	assert.ErrorIs(t, err, payment.ErrGatewayNotConfigured)

	_, err = f.svc.Initiate(context.Background(), "buyer-1", InitiateRequest{OrderID: o.ID, Method: "BANK"})
	assert.ErrorIs(t, err, payment.ErrGatewayNotConfigured)

	assert.Zero(t, f.countPayments(t))

	// COD needs no configuration at all.
	f.initiate(t, o, "COD")
	assert.Equal(t, int64(1), f.countPayments(t))
}

func TestInitiate_MissingBaseURL(t *testing.T) {
	provider := fullProvider()
	delete(provider, "APP_BASE_URL")
	f := newFixtureWith(t, provider)
	o := f.order(t, "buyer-1", 50000)

	_, err := f.svc.Initiate(context.Background(), "buyer-1", InitiateRequest{OrderID: o.ID, Method: "WALLET_B"})
	assert.ErrorIs(t, err, payment.ErrGatewayNotConfigured)
	assert.Zero(t, f.countPayments(t))
}

func TestInitiate_FractionalWalletAmountRollsBack(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "buyer-1", 1)
	require.NoError(t, f.store.DB().Model(&models.Order{}).Where("id = ?", o.ID).
		Update("total", decimal.RequireFromString("10.50")).Error)

	_, err := f.svc.Initiate(context.Background(), "buyer-1", InitiateRequest{OrderID: o.ID, Method: "WALLET_A"})
	assert.Error(t, err)
	assert.Zero(t, f.countPayments(t))
}

func TestInitiate_ReferenceCollisionRetries(t *testing.T) {
	codes := []string{"PMAAAAAAAA", "PMAAAAAAAA", "PMBBBBBBBB"}
	next := 0
	f := newFixture(t, WithReferenceGenerator(func() (string, error) {
		c := codes[next]
		next++
		return c, nil
	}))
	o := f.order(t, "buyer-1", 50000)

	first := f.initiate(t, o, "BANK")
	assert.Equal(t, "PMAAAAAAAA", first.ReferenceCode)

	second := f.initiate(t, o, "BANK")
	assert.Equal(t, "PMBBBBBBBB", second.ReferenceCode)
	assert.Equal(t, 3, next)
	assert.Equal(t, int64(2), f.countPayments(t))
}

func TestInitiate_ReferenceCollisionExhausted(t *testing.T) {
	calls := 0
	f := newFixture(t, WithReferenceGenerator(func() (string, error) {
		calls++
		return "PMAAAAAAAA", nil
	}))
	o := f.order(t, "buyer-1", 50000)
	f.initiate(t, o, "BANK")
	calls = 0

	_, err := f.svc.Initiate(context.Background(), "buyer-1", InitiateRequest{OrderID: o.ID, Method: "COD"})
	assert.ErrorIs(t, err, ErrReferenceExhausted)
	assert.Equal(t, maxReferenceAttempts, calls)
	assert.Equal(t, int64(1), f.countPayments(t))
	assert.Equal(t, models.OrderStatusPending, f.reloadOrder(t, o.ID).Status)
}

func TestInitiate_UsesProviderAtCallTime(t *testing.T) {
	provider := config.StaticProvider{}
	f := newFixtureWith(t, provider)
	o := f.order(t, "buyer-1", 50000)

	_, err := f.svc.Initiate(context.Background(), "buyer-1", InitiateRequest{OrderID: o.ID, Method: "BANK"})
	require.ErrorIs(t, err, payment.ErrGatewayNotConfigured)

	for k, v := range fullProvider() {
		provider[k] = v
	}
	res := f.initiate(t, o, "BANK")
	assert.NotEmpty(t, res.ReferenceCode)
}
