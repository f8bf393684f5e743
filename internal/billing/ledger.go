package billing

import (
	"context"
	"fmt"
	"time"

	"rentfold/internal/gateway"
	"rentfold/internal/notify"
	"rentfold/internal/store"
	"rentfold/internal/utils"
	"rentfold/pkg/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Ledger creates payments, requests gateway charges and owns the payment
// status machine. Gateway outcomes are never assumed: a charge call that
// fails or times out leaves the payment PENDING, to be settled by a
// webhook or an explicit poll.
type Ledger struct {
	logger         *logrus.Logger
	payments       PaymentStore
	methods        MethodStore
	leases         LeaseReader
	gw             gateway.Gateway
	notifier       Emitter
	gatewayTimeout time.Duration
}

func NewLedger(logger *logrus.Logger, payments PaymentStore, methods MethodStore, leases LeaseReader, gw gateway.Gateway, notifier Emitter, gatewayTimeout time.Duration) *Ledger {
	return &Ledger{
		logger:         logger,
		payments:       payments,
		methods:        methods,
		leases:         leases,
		gw:             gw,
		notifier:       notifier,
		gatewayTimeout: gatewayTimeout,
	}
}

type CreatePaymentInput struct {
	LeaseID     string                  `json:"leaseId"`
	TenantID    string                  `json:"tenantId"`
	AmountCents int64                   `json:"amountCents"`
	Method      types.PaymentMethodKind `json:"method"`
	// MethodID resolves a saved payment method; required for ACH/CARD.
	MethodID string `json:"methodId"`
	// PaidAt applies to MANUAL payments only; defaults to now.
	PaidAt *time.Time `json:"paidAt"`
}

// CreatePayment validates eligibility, creates the ledger row and, for
// gateway methods, requests the charge. When the gateway call fails the
// payment row is returned alongside the error: it stays PENDING with its
// idempotency key, safe to retry or to be resolved by reconciliation.
func (l *Ledger) CreatePayment(ctx context.Context, input CreatePaymentInput) (*types.Payment, error) {
	if input.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", types.ErrIncompleteLeaseTerms)
	}

	lease, err := l.leases.Lease(ctx, input.LeaseID)
	if err != nil {
		return nil, err
	}
	if lease.EffectiveStatus(time.Now()) != types.LeaseStatusActive {
		return nil, types.ErrLeaseNotActive
	}

	tenants, err := l.leases.Tenants(ctx, input.LeaseID)
	if err != nil {
		return nil, err
	}
	onLease := false
	for _, tenant := range tenants {
		if tenant.TenantID == input.TenantID {
			onLease = true
			break
		}
	}
	if !onLease {
		return nil, types.ErrTenantNotOnLease
	}

	if input.Method == types.PaymentMethodManual {
		return l.createManual(ctx, input)
	}

	if input.MethodID == "" {
		return nil, types.ErrMissingPaymentMethod
	}
	method, err := l.methods.PaymentMethod(ctx, input.MethodID)
	if err != nil {
		return nil, err
	}
	if method.TenantID != input.TenantID {
		return nil, types.ErrPaymentMethodNotFound
	}

	payment := &types.Payment{
		LeaseID:        input.LeaseID,
		TenantID:       input.TenantID,
		AmountCents:    input.AmountCents,
		Method:         input.Method,
		Status:         types.PaymentStatusPending,
		IdempotencyKey: uuid.NewString(),
	}
	if err := l.payments.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	chargeCtx, cancel := context.WithTimeout(ctx, l.gatewayTimeout)
	defer cancel()

	charge, err := l.gw.CreateCharge(chargeCtx, gateway.ChargeRequest{
		AmountCents:    payment.AmountCents,
		Currency:       "usd",
		MethodRef:      method.GatewayRef,
		IdempotencyKey: payment.IdempotencyKey,
		Metadata: map[string]string{
			"payment_id": payment.ID,
			"lease_id":   payment.LeaseID,
		},
	})
	if err != nil {
		// Outcome unknown. No local FAILED or COMPLETED without gateway
		// confirmation; the idempotency key makes a retry safe.
		l.logger.WithError(err).WithField("payment_id", payment.ID).
			Warn("gateway charge failed, payment left pending")
		return payment, fmt.Errorf("%w: create charge: %v", types.ErrGateway, err)
	}

	if _, err := l.payments.AttachCharge(ctx, payment.ID, charge.Ref, types.PaymentStatusProcessing); err != nil {
		return payment, err
	}
	payment.ChargeRef = &charge.Ref
	payment.Status = types.PaymentStatusProcessing

	if charge.Status == gateway.ChargeSucceeded {
		// Synchronous confirmation; settlement numbers may still be
		// revised by the succeeded webhook.
		now := time.Now()
		if _, err := l.payments.MarkCompleted(ctx, payment.ID, now, charge.FeeCents); err != nil {
			return payment, err
		}
		payment.Status = types.PaymentStatusCompleted
		payment.PaidAt = utils.TimePtr(now)
		if charge.FeeCents != nil {
			payment.FeeCents = charge.FeeCents
			payment.NetCents = utils.Int64Ptr(payment.AmountCents - *charge.FeeCents)
		}
		l.notifier.Emit(notify.EventPaymentCompleted, map[string]any{
			"paymentId": payment.ID,
			"leaseId":   payment.LeaseID,
		})
	}

	return payment, nil
}

func (l *Ledger) createManual(ctx context.Context, input CreatePaymentInput) (*types.Payment, error) {
	paidAt := time.Now()
	if input.PaidAt != nil {
		paidAt = *input.PaidAt
	}

	payment := &types.Payment{
		LeaseID:     input.LeaseID,
		TenantID:    input.TenantID,
		AmountCents: input.AmountCents,
		Method:      types.PaymentMethodManual,
		Status:      types.PaymentStatusCompleted,
		PaidAt:      &paidAt,
	}
	if err := l.payments.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	l.notifier.Emit(notify.EventPaymentCompleted, map[string]any{
		"paymentId": payment.ID,
		"leaseId":   payment.LeaseID,
	})

	return payment, nil
}

// Refund requires gateway confirmation before the local row moves: on
// gateway failure the payment stays COMPLETED and the error surfaces to
// the caller for a safe retry.
func (l *Ledger) Refund(ctx context.Context, paymentID string) (*types.Payment, error) {
	payment, err := l.payments.Payment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != types.PaymentStatusCompleted {
		return nil, types.ErrPaymentNotRefundable
	}

	if payment.ChargeRef != nil {
		refundCtx, cancel := context.WithTimeout(ctx, l.gatewayTimeout)
		defer cancel()

		// Key derived from the payment id so a replayed refund request
		// maps to the same gateway refund.
		if err := l.gw.Refund(refundCtx, *payment.ChargeRef, "refund-"+payment.ID); err != nil {
			return nil, fmt.Errorf("%w: refund: %v", types.ErrGateway, err)
		}
	}

	moved, err := l.payments.MarkRefunded(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !moved {
		// The refunded webhook may have landed between our read and the
		// update; refunded either way.
		refreshed, err := l.payments.Payment(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		if refreshed.Status != types.PaymentStatusRefunded {
			return nil, types.ErrPaymentNotRefundable
		}
		return refreshed, nil
	}

	payment.Status = types.PaymentStatusRefunded
	l.notifier.Emit(notify.EventPaymentRefunded, map[string]any{
		"paymentId": payment.ID,
		"leaseId":   payment.LeaseID,
	})

	return payment, nil
}

// SyncWithGateway polls the gateway for the charge's authoritative state
// and applies it through the same monotonic edges the reconciler uses.
func (l *Ledger) SyncWithGateway(ctx context.Context, paymentID string) (*types.Payment, error) {
	payment, err := l.payments.Payment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.ChargeRef == nil {
		return payment, nil
	}

	pollCtx, cancel := context.WithTimeout(ctx, l.gatewayTimeout)
	defer cancel()

	charge, err := l.gw.Charge(pollCtx, *payment.ChargeRef)
	if err != nil {
		return nil, fmt.Errorf("%w: poll charge: %v", types.ErrGateway, err)
	}

	switch charge.Status {
	case gateway.ChargeSucceeded:
		applied, err := l.payments.MarkCompleted(ctx, paymentID, time.Now(), charge.FeeCents)
		if err != nil {
			return nil, err
		}
		if applied {
			l.notifier.Emit(notify.EventPaymentCompleted, map[string]any{
				"paymentId": paymentID, "leaseId": payment.LeaseID,
			})
		} else if charge.FeeCents != nil {
			// A webhook without settlement numbers may have completed
			// the row already; backfill fee and net from the poll.
			if _, err := l.payments.SettleFees(ctx, paymentID, *charge.FeeCents); err != nil {
				return nil, err
			}
		}
	case gateway.ChargeFailed:
		if _, err := l.payments.MarkFailed(ctx, paymentID); err != nil {
			return nil, err
		}
	case gateway.ChargeRefunded:
		applied, err := l.payments.MarkRefunded(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		if applied {
			l.notifier.Emit(notify.EventPaymentRefunded, map[string]any{
				"paymentId": paymentID, "leaseId": payment.LeaseID,
			})
		}
	}

	return l.payments.Payment(ctx, paymentID)
}

// Payment fetches one payment for the API.
func (l *Ledger) Payment(ctx context.Context, paymentID string) (*types.Payment, error) {
	return l.payments.Payment(ctx, paymentID)
}

// Payments lists a lease's payments for the API.
func (l *Ledger) Payments(ctx context.Context, leaseID string, filter store.PaymentFilter) ([]*types.Payment, error) {
	return l.payments.PaymentsByLease(ctx, leaseID, filter)
}
