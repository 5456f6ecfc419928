package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepay/internal/models"
	"storepay/internal/pkg/httpclient"
)

// walletAStatusServer answers every status query with resultCode and the
// orderId it was asked about.
func walletAStatusServer(t *testing.T, resultCode int, amount int64) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"orderId":    req["orderId"],
			"amount":     amount,
			"resultCode": resultCode,
			"message":    "status",
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func recheckFixture(t *testing.T, endpoint string) *fixture {
	provider := fullProvider()
	provider["WALLET_A_ENDPOINT"] = endpoint
	return newFixtureWith(t, provider,
		WithHTTPClient(httpclient.New().WithTimeout(2*time.Second)),
		WithClock(func() time.Time { return time.Now().Add(10 * time.Minute) }))
}

func TestRecheck_CompletesOnConfirmedSuccess(t *testing.T) {
	srv, _ := walletAStatusServer(t, 0, 50000)
	f := recheckFixture(t, srv.URL)
	ctx := context.Background()
	o := f.order(t, "buyer-1", 50000)
	res := f.initiate(t, o, "WALLET_A")
	p, err := f.store.Payments.FindByID(ctx, res.PaymentID)
	require.NoError(t, err)

	outcome, err := f.svc.Recheck(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.PaymentStatusCompleted, f.reloadPayment(t, p.ReferenceCode).Status)
	assert.True(t, f.reloadOrder(t, o.ID).IsPaid())
	assert.Equal(t, 1, f.notes.containing("recheck:wallet-a"))
}

func TestRecheck_NeverFails(t *testing.T) {
	srv, _ := walletAStatusServer(t, 1006, 50000)
	f := recheckFixture(t, srv.URL)
	ctx := context.Background()
	o := f.order(t, "buyer-1", 50000)
	res := f.initiate(t, o, "WALLET_A")
	p, err := f.store.Payments.FindByID(ctx, res.PaymentID)
	require.NoError(t, err)

	outcome, err := f.svc.Recheck(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome)
	assert.Equal(t, models.PaymentStatusPending, f.reloadPayment(t, p.ReferenceCode).Status)
}

func TestRecheck_AmountMismatchLeavesPending(t *testing.T) {
	srv, _ := walletAStatusServer(t, 0, 10)
	f := recheckFixture(t, srv.URL)
	ctx := context.Background()
	o := f.order(t, "buyer-1", 50000)
	res := f.initiate(t, o, "WALLET_A")
	p, err := f.store.Payments.FindByID(ctx, res.PaymentID)
	require.NoError(t, err)

	_, err = f.svc.Recheck(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, f.reloadPayment(t, p.ReferenceCode).Status)
	assert.False(t, f.reloadOrder(t, o.ID).IsPaid())
}

func TestRecheck_RefusesNonWallet(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "buyer-1", 50000)
	res := f.initiate(t, o, "BANK")

	_, err := f.svc.Recheck(context.Background(), f.reloadPayment(t, res.ReferenceCode))
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestRecheckPending(t *testing.T) {
	srv, calls := walletAStatusServer(t, 0, 50000)
	f := recheckFixture(t, srv.URL)
	ctx := context.Background()

	paid := f.order(t, "buyer-1", 50000)
	f.initiate(t, paid, "WALLET_A")
	bank := f.order(t, "buyer-1", 50000)
	f.initiate(t, bank, "BANK")

	n, err := f.svc.RecheckPending(ctx, 5*time.Minute, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, f.reloadOrder(t, paid.ID).IsPaid())
	assert.False(t, f.reloadOrder(t, bank.ID).IsPaid())

	// Too young for the window: nothing is queried.
	n, err = f.svc.RecheckPending(ctx, 30*time.Minute, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStalePending(t *testing.T) {
	f := newFixture(t, WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) }))
	o := f.order(t, "buyer-1", 50000)
	f.initiate(t, o, "BANK")
	f.initiate(t, o, "COD")

	stale, err := f.svc.StalePending(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Len(t, stale, 2)

	stale, err = f.svc.StalePending(context.Background(), 3*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, stale)
}
