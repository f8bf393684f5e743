package store

import (
	"context"
	"fmt"
	"time"

	"rentfold/internal/utils"
	"rentfold/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	leaseTableName       = "rentfold.leases"
	leaseTenantTableName = "rentfold.lease_tenants"
)

var (
	leaseColumns       = utils.StructTagValues(types.Lease{})
	leaseTenantColumns = utils.StructTagValues(types.LeaseTenant{})
)

type LeaseRepository struct {
	pool *pgxpool.Pool
}

func NewLeaseRepository(pool *pgxpool.Pool) *LeaseRepository {
	return &LeaseRepository{pool: pool}
}

func (r *LeaseRepository) Lease(ctx context.Context, leaseID string) (*types.Lease, error) {
	query, args, err := psql().
		Select(leaseColumns...).
		From(leaseTableName).
		Where(sq.Eq{"id": leaseID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate lease query: %w", err)
	}

	var lease types.Lease
	err = pgxscan.Get(ctx, r.pool, &lease, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrLeaseNotFound
		}
		return nil, fmt.Errorf("failed to fetch lease: %w", err)
	}

	return &lease, nil
}

// CreateLease inserts the lease and its tenant rows in one transaction.
func (r *LeaseRepository) CreateLease(ctx context.Context, lease *types.Lease, tenants []types.LeaseTenant) error {
	now := time.Now()
	lease.ID = utils.NanoID()
	lease.Status = types.LeaseStatusDraft
	lease.CreatedAt = now
	lease.UpdatedAt = now

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin create lease tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query, args, err := psql().Insert(leaseTableName).SetMap(utils.StructToMap(lease)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert lease query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	for i := range tenants {
		tenants[i].LeaseID = lease.ID
		query, args, err = psql().Insert(leaseTenantTableName).SetMap(utils.StructToMap(&tenants[i])).ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate insert lease tenant query: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to create lease tenant: %w", err)
		}
	}

	return utils.ErrorWrapOrNil(tx.Commit(ctx), "failed to commit create lease")
}

func (r *LeaseRepository) Tenants(ctx context.Context, leaseID string) ([]*types.LeaseTenant, error) {
	query, args, err := psql().
		Select(leaseTenantColumns...).
		From(leaseTenantTableName).
		Where(sq.Eq{"lease_id": leaseID}).
		OrderBy("position asc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate lease tenants query: %w", err)
	}

	var tenants []*types.LeaseTenant
	if err := pgxscan.Select(ctx, r.pool, &tenants, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch lease tenants: %w", err)
	}

	return tenants, nil
}

// MarkPendingSignature moves a DRAFT lease to PENDING_SIGNATURE and arms
// the signature counter. Zero rows affected means the lease was not in
// DRAFT.
func (r *LeaseRepository) MarkPendingSignature(ctx context.Context, leaseID string, requiredSignatures int) (bool, error) {
	now := time.Now()

	query, args, err := psql().
		Update(leaseTableName).
		Set("status", types.LeaseStatusPendingSignature).
		Set("signatures_remaining", requiredSignatures).
		Set("sent_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": leaseID, "status": types.LeaseStatusDraft}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate mark pending query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to mark lease pending signature: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Terminate moves an ACTIVE, unexpired lease to TERMINATED. The end_date
// guard keeps a derived-EXPIRED lease from being terminated.
func (r *LeaseRepository) Terminate(ctx context.Context, leaseID string, effectiveDate time.Time) (bool, error) {
	now := time.Now()

	query, args, err := psql().
		Update(leaseTableName).
		Set("status", types.LeaseStatusTerminated).
		Set("terminated_at", effectiveDate).
		Set("updated_at", now).
		Where(sq.Eq{"id": leaseID, "status": types.LeaseStatusActive}).
		Where(sq.GtOrEq{"end_date": now}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate terminate lease query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to terminate lease: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// UpdateBoundedTerms updates the only fields that stay editable once a
// lease has left DRAFT: rent, end date and the late fee policy. Terminal
// leases refuse the edit.
func (r *LeaseRepository) UpdateBoundedTerms(ctx context.Context, leaseID string, rentCents *int64, endDate *time.Time, policy *types.LateFeePolicy, policyAmount *decimal.Decimal) (bool, error) {
	update := psql().
		Update(leaseTableName).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": leaseID}).
		Where(sq.NotEq{"status": types.LeaseStatusTerminated})

	if rentCents != nil {
		update = update.Set("rent_cents", *rentCents)
	}
	if endDate != nil {
		update = update.Set("end_date", *endDate)
	}
	if policy != nil {
		update = update.Set("late_fee_policy", *policy)
	}
	if policyAmount != nil {
		update = update.Set("late_fee_amount", *policyAmount)
	}

	query, args, err := update.ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate bounded terms query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update lease terms: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
