package cron

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storepay/internal/config"
	"storepay/internal/models"
)

type stubJobs struct {
	stale      []models.Payment
	rechecked  int
	minAge     time.Duration
	maxAge     time.Duration
	staleAfter time.Duration
}

func (s *stubJobs) StalePending(_ context.Context, olderThan time.Duration) ([]models.Payment, error) {
	s.staleAfter = olderThan
	return s.stale, nil
}

func (s *stubJobs) RecheckPending(_ context.Context, minAge, maxAge time.Duration) (int, error) {
	s.rechecked++
	s.minAge, s.maxAge = minAge, maxAge
	return 0, nil
}

type captureNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *captureNotifier) Notify(_ context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
}

func stalePayment(ref string, method models.PaymentMethod, created time.Time) models.Payment {
	return models.Payment{
		ReferenceCode: ref,
		Method:        method,
		Amount:        decimal.NewFromInt(50000),
		Status:        models.PaymentStatusPending,
		CreatedAt:     created,
	}
}

func TestStaleReport(t *testing.T) {
	now := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	stale := []models.Payment{
		stalePayment("PMWALLETB1", models.PaymentMethodWalletB, now.Add(-26*time.Hour)),
		stalePayment("PMBANK0001", models.PaymentMethodBank, now.Add(-30*time.Hour)),
		stalePayment("PMBANK0002", models.PaymentMethodBank, now.Add(-72*time.Hour)),
	}

	text := staleReport(stale, 24*time.Hour, now)
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "3 payments pending for more than 24h0m0s")
	assert.Equal(t, "BANK: 2 (oldest <code>PMBANK0002</code>, 3 days)", lines[1])
	assert.Equal(t, "WALLET_B: 1 (oldest <code>PMWALLETB1</code>, 1 days)", lines[2])
}

func TestReportStalePayments(t *testing.T) {
	jobs := &stubJobs{}
	notes := &captureNotifier{}
	s := New(config.PaymentConfig{StaleAfter: 6 * time.Hour}, jobs, notes, zaptest.NewLogger(t))

	s.reportStalePayments()
	assert.Equal(t, 6*time.Hour, jobs.staleAfter)
	assert.Empty(t, notes.texts)

	jobs.stale = []models.Payment{stalePayment("PMBANK0001", models.PaymentMethodBank, time.Now().Add(-7*time.Hour))}
	s.reportStalePayments()
	require.Len(t, notes.texts, 1)
	assert.Contains(t, notes.texts[0], "PMBANK0001")
}

func TestRecheckWalletPayments(t *testing.T) {
	jobs := &stubJobs{}
	s := New(config.PaymentConfig{StaleAfter: 24 * time.Hour, RecheckEnabled: true, RecheckMinAge: 5 * time.Minute},
		jobs, nil, zaptest.NewLogger(t))

	s.recheckWalletPayments()
	assert.Equal(t, 1, jobs.rechecked)
	assert.Equal(t, 5*time.Minute, jobs.minAge)
	assert.Equal(t, 24*time.Hour, jobs.maxAge)
}

func TestSchedulerStartStop(t *testing.T) {
	s := New(config.PaymentConfig{RecheckEnabled: true}, &stubJobs{}, nil, zaptest.NewLogger(t))
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 2)
	<-s.Stop().Done()
}
