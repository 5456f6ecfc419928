package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"storepay/internal/events"
	"storepay/internal/models"
	"storepay/internal/notify"
	"storepay/internal/payment"
	"storepay/internal/pkg/utils"
	"storepay/internal/repository"
)

// Outcome is what happened to an inbound callback.
type Outcome int

const (
	// OutcomeApplied means the callback moved a PENDING payment to a
	// terminal state.
	OutcomeApplied Outcome = iota
	// OutcomeReplayed means the payment was already terminal; nothing changed.
	OutcomeReplayed
	// OutcomeRejected means the callback failed verification or could not
	// be applied; nothing changed.
	OutcomeRejected
	// OutcomeUnknownReference means no single payment matched.
	OutcomeUnknownReference

	// outcomeStorageError is only used for the audit log.
	outcomeStorageError Outcome = -1
)

func (o Outcome) String() string {
	return string(o.logValue())
}

// Settled reports whether the gateway should be told the callback was taken.
func (o Outcome) Settled() bool {
	return o == OutcomeApplied || o == OutcomeReplayed
}

func (o Outcome) logValue() models.CallbackOutcome {
	switch o {
	case OutcomeApplied:
		return models.CallbackOutcomeApplied
	case OutcomeReplayed:
		return models.CallbackOutcomeReplayed
	case OutcomeUnknownReference:
		return models.CallbackOutcomeUnknownReference
	case outcomeStorageError:
		return models.CallbackOutcomeError
	default:
		return models.CallbackOutcomeRejected
	}
}

// settlement describes a terminal transition requested by a gateway callback
// or a status re-check.
type settlement struct {
	source    string
	method    models.PaymentMethod
	reference string
	match     payment.ReferenceMatch
	succeeded bool
	paid      int64
	reason    string
	raw       []byte
	// canFail is false for re-checks: they may complete a payment but never
	// mark one FAILED.
	canFail bool
}

// transition is the committed change, reported after the transaction ends.
type transition struct {
	payment *models.Payment
	order   *models.Order
	status  models.PaymentStatus
	reason  string
	// conflict names the payment that had already settled the order.
	conflict string
}

// HandleCallback verifies and applies a gateway callback. The error is
// non-nil only when storage failed; every business mismatch is an Outcome.
func (s *PaymentService) HandleCallback(ctx context.Context, gateway string, raw []byte) (Outcome, error) {
	hash := utils.ShortHash(raw)
	log := s.logger.With(zap.String("gateway", gateway), zap.String("body_sha256", hash))

	cb, err := payment.DecodeCallback(gateway, raw)
	if err != nil {
		log.Warn("callback rejected", zap.Error(err))
		s.recordCallback(ctx, gateway, "", OutcomeRejected, raw)
		return OutcomeRejected, nil
	}

	if !s.verifyCallback(cb, log) {
		ref, _ := cb.Reference()
		log.Warn("callback signature mismatch", zap.String("reference", ref))
		s.recordCallback(ctx, gateway, ref, OutcomeRejected, raw)
		return OutcomeRejected, nil
	}

	ref, match := cb.Reference()
	if ref == "" {
		log.Warn("callback carries no usable reference")
		s.recordCallback(ctx, gateway, "", OutcomeUnknownReference, raw)
		return OutcomeUnknownReference, nil
	}

	st := settlement{
		source:    gateway,
		method:    methodForGateway(gateway),
		reference: ref,
		match:     match,
		succeeded: cb.Succeeded(),
		paid:      cb.PaidAmount(),
		raw:       raw,
		canFail:   true,
	}
	if a, ok := cb.(*payment.WalletACallback); ok && !st.succeeded {
		st.reason = fmt.Sprintf("gateway result %d: %s", a.Notification.ResultCode, a.Notification.Message)
	}

	outcome, err := s.settle(ctx, st, log)
	if err != nil {
		log.Error("callback storage failure", zap.String("reference", ref), zap.Error(err))
		s.recordCallback(ctx, gateway, ref, outcomeStorageError, raw)
		return outcome, err
	}
	s.recordCallback(ctx, gateway, ref, outcome, raw)
	return outcome, nil
}

func (s *PaymentService) verifyCallback(cb payment.Callback, log *zap.Logger) bool {
	switch c := cb.(type) {
	case *payment.WalletACallback:
		creds, err := payment.LoadWalletA(s.provider)
		if err != nil {
			log.Error("wallet-a callback received but gateway is not configured", zap.Error(err))
			return false
		}
		return payment.VerifyWalletA(c.Notification, creds)
	case *payment.WalletBCallback:
		creds, err := payment.LoadWalletB(s.provider)
		if err != nil {
			log.Error("wallet-b callback received but gateway is not configured", zap.Error(err))
			return false
		}
		return payment.VerifyWalletB(c, creds.Key2)
	}
	return false
}

// settle runs the locked read-check-write for one settlement. The payment
// row is locked first, then its order.
func (s *PaymentService) settle(ctx context.Context, st settlement, log *zap.Logger) (Outcome, error) {
	var (
		outcome = OutcomeRejected
		done    *transition
	)

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var (
			p   *models.Payment
			err error
		)
		if st.match == payment.MatchContains {
			p, err = tx.Payments.LockByReferenceFragment(ctx, st.reference)
		} else {
			p, err = tx.Payments.LockByReference(ctx, st.reference)
		}
		switch {
		case repository.IsNotFound(err):
			log.Warn("callback for unknown reference", zap.String("reference", st.reference))
			outcome = OutcomeUnknownReference
			return nil
		case errors.Is(err, repository.ErrAmbiguousReference):
			log.Warn("callback reference matches several payments", zap.String("reference", st.reference))
			outcome = OutcomeUnknownReference
			return nil
		case err != nil:
			return fmt.Errorf("lock payment: %w", err)
		}

		if st.method != "" && p.Method != st.method {
			log.Warn("callback reference belongs to another method",
				zap.String("reference_code", p.ReferenceCode),
				zap.String("payment_method", string(p.Method)))
			outcome = OutcomeUnknownReference
			return nil
		}

		if p.IsTerminal() {
			outcome = OutcomeReplayed
			return nil
		}

		if !st.succeeded {
			if !st.canFail {
				return nil
			}
			reason := st.reason
			if reason == "" {
				reason = "gateway reported failure"
			}
			return s.failPayment(ctx, tx, p, reason, st.raw, &outcome, &done)
		}

		expected, err := payment.WholeAmount(p.Amount)
		if err != nil || expected != st.paid {
			log.Error("paid amount does not match payment",
				zap.String("reference_code", p.ReferenceCode),
				zap.String("expected", p.Amount.String()),
				zap.Int64("paid", st.paid))
			if !st.canFail {
				return nil
			}
			return s.failPayment(ctx, tx, p, "amount mismatch", st.raw, &outcome, &done)
		}

		order, err := tx.Orders.LockByID(ctx, p.OrderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}

		if order.IsPaid() {
			winner := s.completedPaymentOf(ctx, tx, order.ID)
			log.Error("order already settled by another payment",
				zap.String("reference_code", p.ReferenceCode),
				zap.String("order_id", order.ID),
				zap.String("settled_by", winner))
			if !st.canFail {
				return nil
			}
			if err := s.failPayment(ctx, tx, p, "order already paid by payment "+winner, st.raw, &outcome, &done); err != nil {
				return err
			}
			if done != nil {
				done.order = order
				done.conflict = winner
			}
			return nil
		}

		now := s.now()
		changed, err := tx.Payments.MarkCompleted(ctx, p.ID, now, st.raw)
		if err != nil {
			return fmt.Errorf("complete payment: %w", err)
		}
		if !changed {
			outcome = OutcomeReplayed
			return nil
		}
		if err := tx.Orders.MarkPaid(ctx, order.ID, now); err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		outcome = OutcomeApplied
		done = &transition{payment: p, order: order, status: models.PaymentStatusCompleted}
		return nil
	})
	if err != nil {
		return OutcomeRejected, err
	}

	if done != nil {
		s.afterTransition(ctx, st.source, done)
	}
	return outcome, nil
}

func (s *PaymentService) failPayment(ctx context.Context, tx *repository.Store, p *models.Payment, reason string, raw []byte, outcome *Outcome, done **transition) error {
	changed, err := tx.Payments.MarkFailed(ctx, p.ID, reason, raw)
	if err != nil {
		return fmt.Errorf("fail payment: %w", err)
	}
	if !changed {
		*outcome = OutcomeReplayed
		return nil
	}
	*outcome = OutcomeApplied
	*done = &transition{payment: p, status: models.PaymentStatusFailed, reason: reason}
	return nil
}

func (s *PaymentService) completedPaymentOf(ctx context.Context, tx *repository.Store, orderID string) string {
	payments, err := tx.Payments.FindByOrderID(ctx, orderID)
	if err != nil {
		return "unknown"
	}
	for _, p := range payments {
		if p.Status == models.PaymentStatusCompleted {
			return p.ReferenceCode
		}
	}
	return "unknown"
}

func (s *PaymentService) afterTransition(ctx context.Context, source string, t *transition) {
	p := t.payment
	switch t.status {
	case models.PaymentStatusCompleted:
		s.logger.Info("payment completed",
			zap.String("source", source),
			zap.String("reference_code", p.ReferenceCode),
			zap.String("order_id", p.OrderID))
		s.emit(ctx, paymentEvent(events.PaymentCompleted, p, t.status, ""))
		s.notifier.Notify(ctx, fmt.Sprintf("✅ <b>Payment completed</b>\nReference: <code>%s</code>\nMethod: %s\nAmount: %s\nSource: %s",
			p.ReferenceCode, p.Method, utils.FormatAmount(p.Amount), notify.Escape(source)))

	case models.PaymentStatusFailed:
		s.logger.Info("payment failed",
			zap.String("source", source),
			zap.String("reference_code", p.ReferenceCode),
			zap.String("reason", t.reason))
		s.emit(ctx, paymentEvent(events.PaymentFailed, p, t.status, t.reason))
		if t.conflict != "" {
			s.notifier.Notify(ctx, fmt.Sprintf("⚠️ <b>Duplicate payment</b>\nReference: <code>%s</code> was paid after order %s had already been settled by <code>%s</code>. Amount %s needs a refund decision.",
				p.ReferenceCode, p.OrderID, t.conflict, utils.FormatAmount(p.Amount)))
		}
	}
}

// recordCallback appends to the callback audit log. It runs outside the
// settlement transaction and its failures are only logged.
// rejectedPayloadLimit caps what is kept of a body that failed decoding or
// authentication; the hash still covers the whole body.
const rejectedPayloadLimit = 1024

func (s *PaymentService) recordCallback(ctx context.Context, gateway, ref string, outcome Outcome, raw []byte) {
	payload := raw
	if outcome == OutcomeRejected && len(payload) > rejectedPayloadLimit {
		payload = payload[:rejectedPayloadLimit]
	}
	entry := &models.PaymentCallbackLog{
		Gateway:       gateway,
		ReferenceCode: truncateRef(ref),
		Outcome:       outcome.logValue(),
		BodySHA256:    utils.BodyHash(raw),
		Payload:       strings.ToValidUTF8(string(payload), ""),
	}
	if err := s.store.Callbacks.Create(ctx, entry); err != nil {
		s.logger.Warn("callback log write failed", zap.String("gateway", gateway), zap.Error(err))
	}
}

func truncateRef(ref string) string {
	if len(ref) > 64 {
		return ref[:64]
	}
	return ref
}
