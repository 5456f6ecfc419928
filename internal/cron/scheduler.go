package cron

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"storepay/internal/config"
	"storepay/internal/models"
	"storepay/internal/notify"
	"storepay/internal/pkg/utils"
)

const jobTimeout = 2 * time.Minute

// PaymentJobs is the part of the payment service the scheduled jobs use.
type PaymentJobs interface {
	StalePending(ctx context.Context, olderThan time.Duration) ([]models.Payment, error)
	RecheckPending(ctx context.Context, minAge, maxAge time.Duration) (int, error)
}

// Scheduler manages all cron jobs. No job ever marks a payment FAILED.
type Scheduler struct {
	cron     *cron.Cron
	cfg      config.PaymentConfig
	logger   *zap.Logger
	payments PaymentJobs
	notifier notify.Notifier
	now      func() time.Time
}

// New creates a new cron scheduler.
func New(cfg config.PaymentConfig, payments PaymentJobs, notifier notify.Notifier, logger *zap.Logger) *Scheduler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		cfg:      cfg,
		logger:   logger,
		payments: payments,
		notifier: notifier,
		now:      time.Now,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() error {
	s.logger.Info("Starting cron scheduler...")

	// Stale payment report - every 10 minutes
	if _, err := s.cron.AddFunc("0 */10 * * * *", func() {
		s.logger.Debug("Running: stale payment report")
		s.reportStalePayments()
	}); err != nil {
		return fmt.Errorf("schedule stale report: %w", err)
	}

	// Wallet status re-check - every 3 minutes
	if s.cfg.RecheckEnabled {
		if _, err := s.cron.AddFunc("30 */3 * * * *", func() {
			s.logger.Debug("Running: wallet payment re-check")
			s.recheckWalletPayments()
		}); err != nil {
			return fmt.Errorf("schedule re-check: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done when running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// ── Stale payment report ──────────────────────────────────────────────

func (s *Scheduler) reportStalePayments() {
	defer s.recoverFromPanic("reportStalePayments")

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	stale, err := s.payments.StalePending(ctx, s.cfg.StaleAfter)
	if err != nil {
		s.logger.Error("stale payment query failed", zap.Error(err))
		return
	}
	if len(stale) == 0 {
		return
	}

	text := staleReport(stale, s.cfg.StaleAfter, s.now())
	s.logger.Warn("stale pending payments", zap.Int("count", len(stale)))
	s.notifier.Notify(ctx, text)
}

// staleReport summarises stale payments per method, oldest first.
func staleReport(stale []models.Payment, after time.Duration, now time.Time) string {
	perMethod := make(map[models.PaymentMethod]int)
	oldest := make(map[models.PaymentMethod]models.Payment)
	for _, p := range stale {
		perMethod[p.Method]++
		if o, ok := oldest[p.Method]; !ok || p.CreatedAt.Before(o.CreatedAt) {
			oldest[p.Method] = p
		}
	}

	methods := make([]string, 0, len(perMethod))
	for m := range perMethod {
		methods = append(methods, string(m))
	}
	sort.Strings(methods)

	var b strings.Builder
	fmt.Fprintf(&b, "⏳ <b>%d payments pending for more than %s</b>\n", len(stale), after)
	for _, m := range methods {
		o := oldest[models.PaymentMethod(m)]
		fmt.Fprintf(&b, "%s: %d (oldest <code>%s</code>, %s)\n",
			m, perMethod[models.PaymentMethod(m)], o.ReferenceCode, utils.Age(o.CreatedAt, now))
	}
	return b.String()
}

// ── Wallet re-check ───────────────────────────────────────────────────

func (s *Scheduler) recheckWalletPayments() {
	defer s.recoverFromPanic("recheckWalletPayments")

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	applied, err := s.payments.RecheckPending(ctx, s.cfg.RecheckMinAge, s.cfg.StaleAfter)
	if err != nil {
		s.logger.Error("wallet re-check failed", zap.Error(err))
		return
	}
	if applied > 0 {
		s.logger.Info("wallet re-check completed payments", zap.Int("applied", applied))
	}
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}
