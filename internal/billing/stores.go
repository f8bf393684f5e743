package billing

import (
	"context"
	"time"

	"rentfold/internal/store"
	"rentfold/pkg/types"
)

// Store interfaces consumed by the billing services; satisfied by the
// pgx repositories, substituted with contract-honoring fakes in tests.

type PaymentStore interface {
	Payment(ctx context.Context, paymentID string) (*types.Payment, error)
	PaymentsByLease(ctx context.Context, leaseID string, filter store.PaymentFilter) ([]*types.Payment, error)
	CreatePayment(ctx context.Context, payment *types.Payment) error
	AttachCharge(ctx context.Context, paymentID, chargeRef string, status types.PaymentStatus) (bool, error)
	MarkCompleted(ctx context.Context, paymentID string, paidAt time.Time, feeCents *int64) (bool, error)
	SettleFees(ctx context.Context, paymentID string, feeCents int64) (bool, error)
	MarkFailed(ctx context.Context, paymentID string) (bool, error)
	MarkRefunded(ctx context.Context, paymentID string) (bool, error)
	ApplyEvent(ctx context.Context, event *types.GatewayEvent) (types.EventOutcome, string, error)
}

type MethodStore interface {
	PaymentMethod(ctx context.Context, methodID string) (*types.SavedPaymentMethod, error)
}

type LateFeeStore interface {
	LateFee(ctx context.Context, feeID string) (*types.LateFee, error)
	LateFeesByLease(ctx context.Context, leaseID string) ([]*types.LateFee, error)
	CreateLateFee(ctx context.Context, fee *types.LateFee) error
	Waive(ctx context.Context, feeID string) (bool, error)
	MarkPaid(ctx context.Context, feeID, paymentID string, paidDate time.Time) (bool, error)
}

// LeaseReader is the slice of the lease store billing needs for
// eligibility checks.
type LeaseReader interface {
	Lease(ctx context.Context, leaseID string) (*types.Lease, error)
	Tenants(ctx context.Context, leaseID string) ([]*types.LeaseTenant, error)
}

// Emitter is the audit/notification sink; satisfied by notify.Notifier.
type Emitter interface {
	Emit(name string, fields map[string]any)
}
