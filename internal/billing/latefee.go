package billing

import (
	"context"
	"time"

	"rentfold/internal/notify"
	"rentfold/pkg/types"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var oneHundred = decimal.NewFromInt(100)

// Assessor computes and records late fees and enforces the waive/pay
// exclusivity invariant.
type Assessor struct {
	logger   *logrus.Logger
	leases   LeaseReader
	fees     LateFeeStore
	notifier Emitter
}

func NewAssessor(logger *logrus.Logger, leases LeaseReader, fees LateFeeStore, notifier Emitter) *Assessor {
	return &Assessor{logger: logger, leases: leases, fees: fees, notifier: notifier}
}

// Assess records a late fee against an effectively ACTIVE lease. Without
// an override the amount comes from the lease's policy: FLAT uses the
// stored dollar amount, PERCENTAGE takes that share of the monthly rent.
func (a *Assessor) Assess(ctx context.Context, leaseID string, overrideCents *int64) (*types.LateFee, error) {
	lease, err := a.leases.Lease(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if lease.EffectiveStatus(time.Now()) != types.LeaseStatusActive {
		return nil, types.ErrLeaseNotActive
	}

	amountCents, err := feeAmountCents(lease, overrideCents)
	if err != nil {
		return nil, err
	}

	fee := &types.LateFee{
		LeaseID:     leaseID,
		AmountCents: amountCents,
		AssessedOn:  time.Now(),
	}
	if err := a.fees.CreateLateFee(ctx, fee); err != nil {
		return nil, err
	}

	a.notifier.Emit(notify.EventLateFeeAssessed, map[string]any{
		"lateFeeId":   fee.ID,
		"leaseId":     leaseID,
		"amountCents": amountCents,
	})
	a.logger.WithFields(logrus.Fields{
		"lease_id":     leaseID,
		"amount_cents": amountCents,
	}).Info("late fee assessed")

	return fee, nil
}

func feeAmountCents(lease *types.Lease, overrideCents *int64) (int64, error) {
	if overrideCents != nil {
		return *overrideCents, nil
	}
	if lease.LateFeePolicy == nil || lease.LateFeeAmount == nil {
		return 0, types.ErrNoLateFeePolicy
	}

	switch *lease.LateFeePolicy {
	case types.LateFeePolicyFlat:
		return lease.LateFeeAmount.Mul(oneHundred).Round(0).IntPart(), nil
	case types.LateFeePolicyPercentage:
		rent := decimal.NewFromInt(lease.RentCents)
		return rent.Mul(*lease.LateFeeAmount).Div(oneHundred).Round(0).IntPart(), nil
	}

	return 0, types.ErrNoLateFeePolicy
}

// Waive marks the fee waived. The store evaluates both exclusivity
// guards in one statement; a zero-row result is classified from a
// re-read so the caller learns which rule it hit.
func (a *Assessor) Waive(ctx context.Context, feeID string) (*types.LateFee, error) {
	waived, err := a.fees.Waive(ctx, feeID)
	if err != nil {
		return nil, err
	}
	if !waived {
		fee, err := a.fees.LateFee(ctx, feeID)
		if err != nil {
			return nil, err
		}
		if fee.PaidDate != nil {
			return nil, types.ErrLateFeeAlreadyPaid
		}
		return nil, types.ErrLateFeeAlreadyWaived
	}

	fee, err := a.fees.LateFee(ctx, feeID)
	if err != nil {
		return nil, err
	}

	a.notifier.Emit(notify.EventLateFeeWaived, map[string]any{
		"lateFeeId": feeID,
		"leaseId":   fee.LeaseID,
	})

	return fee, nil
}

// MarkPaid attributes a payment to the fee; the mirror-image guard keeps
// it mutually exclusive with Waive under any interleaving.
func (a *Assessor) MarkPaid(ctx context.Context, feeID, paymentID string, paidDate time.Time) (*types.LateFee, error) {
	marked, err := a.fees.MarkPaid(ctx, feeID, paymentID, paidDate)
	if err != nil {
		return nil, err
	}
	if !marked {
		fee, err := a.fees.LateFee(ctx, feeID)
		if err != nil {
			return nil, err
		}
		if fee.Waived {
			return nil, types.ErrLateFeeAlreadyWaived
		}
		return nil, types.ErrLateFeeAlreadyPaid
	}

	return a.fees.LateFee(ctx, feeID)
}

// LateFees lists a lease's fees for the API.
func (a *Assessor) LateFees(ctx context.Context, leaseID string) ([]*types.LateFee, error) {
	return a.fees.LateFeesByLease(ctx, leaseID)
}
