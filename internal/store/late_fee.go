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
)

const lateFeeTableName = "rentfold.late_fees"

var lateFeeColumns = utils.StructTagValues(types.LateFee{})

type LateFeeRepository struct {
	pool *pgxpool.Pool
}

func NewLateFeeRepository(pool *pgxpool.Pool) *LateFeeRepository {
	return &LateFeeRepository{pool: pool}
}

func (r *LateFeeRepository) LateFee(ctx context.Context, feeID string) (*types.LateFee, error) {
	query, args, err := psql().
		Select(lateFeeColumns...).
		From(lateFeeTableName).
		Where(sq.Eq{"id": feeID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate late fee query: %w", err)
	}

	var fee types.LateFee
	err = pgxscan.Get(ctx, r.pool, &fee, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrLateFeeNotFound
		}
		return nil, fmt.Errorf("failed to fetch late fee: %w", err)
	}

	return &fee, nil
}

func (r *LateFeeRepository) LateFeesByLease(ctx context.Context, leaseID string) ([]*types.LateFee, error) {
	query, args, err := psql().
		Select(lateFeeColumns...).
		From(lateFeeTableName).
		Where(sq.Eq{"lease_id": leaseID}).
		OrderBy("assessed_on desc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate late fees query: %w", err)
	}

	fees := make([]*types.LateFee, 0)
	if err := pgxscan.Select(ctx, r.pool, &fees, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch late fees: %w", err)
	}

	return fees, nil
}

func (r *LateFeeRepository) CreateLateFee(ctx context.Context, fee *types.LateFee) error {
	fee.ID = utils.NanoID()
	fee.CreatedAt = time.Now()

	query, args, err := psql().Insert(lateFeeTableName).SetMap(utils.StructToMap(fee)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert late fee query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create late fee")
}

// Waive sets the waived flag. The statement carries both exclusivity
// guards, so a fee that has been paid, or already waived, is never
// touched; zero rows affected is classified by the caller.
func (r *LateFeeRepository) Waive(ctx context.Context, feeID string) (bool, error) {
	now := time.Now()

	query, args, err := psql().
		Update(lateFeeTableName).
		Set("waived", true).
		Set("waived_at", now).
		Where(sq.Eq{"id": feeID, "waived": false, "paid_date": nil}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate waive query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to waive late fee: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// MarkPaid attributes a payment to the fee. Mirror image of Waive's
// guard: a waived fee can never acquire a paid date.
func (r *LateFeeRepository) MarkPaid(ctx context.Context, feeID, paymentID string, paidDate time.Time) (bool, error) {
	query, args, err := psql().
		Update(lateFeeTableName).
		Set("paid_date", paidDate).
		Set("payment_id", paymentID).
		Where(sq.Eq{"id": feeID, "waived": false, "paid_date": nil}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate mark paid query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to mark late fee paid: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
