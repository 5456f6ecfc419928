package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepay/internal/events"
	"storepay/internal/models"
)

func TestVerifyBankTransfer(t *testing.T) {
	now := time.Date(2024, 1, 31, 9, 30, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	o := f.order(t, "buyer-1", 1500000)
	res := f.initiate(t, o, "BANK")

	out, err := f.svc.VerifyBankTransfer(ctx, res.ReferenceCode, "alice")
	require.NoError(t, err)
	assert.False(t, out.AlreadyVerified)
	assert.Equal(t, res.ReferenceCode, out.ReferenceCode)
	assert.Contains(t, out.Message, o.OrderNumber)

	p := f.reloadPayment(t, res.ReferenceCode)
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)

	var audit map[string]string
	require.NoError(t, json.Unmarshal(p.GatewayResponse, &audit))
	assert.Equal(t, "manual", audit["source"])
	assert.Equal(t, "alice", audit["verifiedBy"])
	assert.Equal(t, "2024-01-31T09:30:00Z", audit["verifiedAt"])

	order := f.reloadOrder(t, o.ID)
	assert.True(t, order.IsPaid())
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)

	assert.Len(t, f.pub.ofType(events.PaymentCompleted), 1)
	assert.Equal(t, 1, f.notes.containing("manual:alice"))
}

func TestVerifyBankTransfer_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, "buyer-1", 50000)
	res := f.initiate(t, o, "BANK")

	_, err := f.svc.VerifyBankTransfer(ctx, res.ReferenceCode, "alice")
	require.NoError(t, err)
	paidAt := *f.reloadOrder(t, o.ID).PaidAt

	out, err := f.svc.VerifyBankTransfer(ctx, strings.ToLower(res.ReferenceCode), "bob")
	require.NoError(t, err)
	assert.True(t, out.AlreadyVerified)

	var audit map[string]string
	require.NoError(t, json.Unmarshal(f.reloadPayment(t, res.ReferenceCode).GatewayResponse, &audit))
	assert.Equal(t, "alice", audit["verifiedBy"])
	assert.True(t, f.reloadOrder(t, o.ID).PaidAt.Equal(paidAt))
	assert.Len(t, f.pub.ofType(events.PaymentCompleted), 1)
}

func TestVerifyBankTransfer_FromMemo(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "buyer-1", 50000)
	res := f.initiate(t, o, "BANK")

	out, err := f.svc.VerifyBankTransfer(context.Background(), "NGUYEN VAN A chuyen tien "+strings.ToLower(res.ReferenceCode), "")
	require.NoError(t, err)
	assert.Equal(t, res.ReferenceCode, out.ReferenceCode)
	assert.True(t, f.reloadOrder(t, o.ID).IsPaid())
}

func TestVerifyBankTransfer_FromGluedMemo(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "buyer-1", 50000)
	res := f.initiate(t, o, "BANK")

	out, err := f.svc.VerifyBankTransfer(context.Background(), "CT DEN:123456 NGUYENVANA"+res.ReferenceCode+"_DONHANG", "alice")
	require.NoError(t, err)
	assert.Equal(t, res.ReferenceCode, out.ReferenceCode)
	assert.True(t, f.reloadOrder(t, o.ID).IsPaid())
}

func TestVerifyBankTransfer_Refusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.VerifyBankTransfer(ctx, "PMZZZZZZZZ", "alice")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = f.svc.VerifyBankTransfer(ctx, "no code in here", "alice")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = f.svc.VerifyBankTransfer(ctx, "PMAAAAAAAA or PMBBBBBBBB", "alice")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	o := f.order(t, "buyer-1", 50000)
	wallet := f.initiate(t, o, "WALLET_A")
	p, err := f.store.Payments.FindByID(ctx, wallet.PaymentID)
	require.NoError(t, err)
	_, err = f.svc.VerifyBankTransfer(ctx, p.ReferenceCode, "alice")
	assert.ErrorIs(t, err, ErrNotBankTransfer)
	assert.Equal(t, models.PaymentStatusPending, f.reloadPayment(t, p.ReferenceCode).Status)
}

func TestVerifyBankTransfer_FailedPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, "buyer-1", 50000)
	res := f.initiate(t, o, "BANK")
	p := f.reloadPayment(t, res.ReferenceCode)
	_, err := f.store.Payments.MarkFailed(ctx, p.ID, "expired", nil)
	require.NoError(t, err)

	_, err = f.svc.VerifyBankTransfer(ctx, res.ReferenceCode, "alice")
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.False(t, f.reloadOrder(t, o.ID).IsPaid())
}

func TestVerifyBankTransfer_OrderPaidByAnotherPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, "buyer-1", 50000)
	first := f.initiate(t, o, "BANK")
	second := f.initiate(t, o, "BANK")

	_, err := f.svc.VerifyBankTransfer(ctx, first.ReferenceCode, "alice")
	require.NoError(t, err)

	_, err = f.svc.VerifyBankTransfer(ctx, second.ReferenceCode, "alice")
	assert.ErrorIs(t, err, ErrOrderAlreadyPaid)
	assert.Equal(t, models.PaymentStatusPending, f.reloadPayment(t, second.ReferenceCode).Status)
}
