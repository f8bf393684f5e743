package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentfold/internal/utils"
	"rentfold/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	paymentTableName      = "rentfold.payments"
	gatewayEventTableName = "rentfold.gateway_events"
)

var paymentColumns = utils.StructTagValues(types.Payment{})

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) Payment(ctx context.Context, paymentID string) (*types.Payment, error) {
	query, args, err := psql().
		Select(paymentColumns...).
		From(paymentTableName).
		Where(sq.Eq{"id": paymentID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate payment query: %w", err)
	}

	var payment types.Payment
	err = pgxscan.Get(ctx, r.pool, &payment, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}

	return &payment, nil
}

// PaymentFilter narrows PaymentsByLease; decoded from the list
// endpoint's query string.
type PaymentFilter struct {
	Status   string `form:"status"`
	TenantID string `form:"tenantId"`
}

func (r *PaymentRepository) PaymentsByLease(ctx context.Context, leaseID string, filter PaymentFilter) ([]*types.Payment, error) {
	builder := psql().
		Select(paymentColumns...).
		From(paymentTableName).
		Where(sq.Eq{"lease_id": leaseID}).
		OrderBy("created_at desc")

	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.TenantID != "" {
		builder = builder.Where(sq.Eq{"tenant_id": filter.TenantID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate payments query: %w", err)
	}

	payments := make([]*types.Payment, 0)
	if err := pgxscan.Select(ctx, r.pool, &payments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch payments: %w", err)
	}

	return payments, nil
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, payment *types.Payment) error {
	now := time.Now()
	payment.ID = utils.NanoID()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	query, args, err := psql().Insert(paymentTableName).SetMap(utils.StructToMap(payment)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert payment query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create payment")
}

// AttachCharge records the gateway's charge ref on a payment that is
// still PENDING and advances it to the given status.
func (r *PaymentRepository) AttachCharge(ctx context.Context, paymentID, chargeRef string, status types.PaymentStatus) (bool, error) {
	query, args, err := psql().
		Update(paymentTableName).
		Set("charge_ref", chargeRef).
		Set("status", status).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": paymentID, "status": types.PaymentStatusPending}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate attach charge query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to attach charge: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// MarkCompleted advances a PENDING/PROCESSING payment to COMPLETED and
// records settlement numbers. Returns false when the payment already
// left those states.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, paymentID string, paidAt time.Time, feeCents *int64) (bool, error) {
	builder := psql().
		Update(paymentTableName).
		Set("status", types.PaymentStatusCompleted).
		Set("paid_at", paidAt).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": paymentID}).
		Where(sq.Eq{"status": []types.PaymentStatus{types.PaymentStatusPending, types.PaymentStatusProcessing}})

	if feeCents != nil {
		builder = builder.
			Set("fee_cents", *feeCents).
			Set("net_cents", sq.Expr("amount_cents - ?", *feeCents))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate mark completed query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment completed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *PaymentRepository) MarkFailed(ctx context.Context, paymentID string) (bool, error) {
	query, args, err := psql().
		Update(paymentTableName).
		Set("status", types.PaymentStatusFailed).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": paymentID}).
		Where(sq.Eq{"status": []types.PaymentStatus{types.PaymentStatusPending, types.PaymentStatusProcessing}}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate mark failed query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment failed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// MarkRefunded is only legal from COMPLETED.
func (r *PaymentRepository) MarkRefunded(ctx context.Context, paymentID string) (bool, error) {
	query, args, err := psql().
		Update(paymentTableName).
		Set("status", types.PaymentStatusRefunded).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": paymentID, "status": types.PaymentStatusCompleted}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate mark refunded query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment refunded: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// SettleFees backfills settlement numbers on a COMPLETED payment that
// was settled by an event without them. The fee_cents IS NULL guard
// keeps already-recorded settlement numbers authoritative.
func (r *PaymentRepository) SettleFees(ctx context.Context, paymentID string, feeCents int64) (bool, error) {
	query, args, err := psql().
		Update(paymentTableName).
		Set("fee_cents", feeCents).
		Set("net_cents", sq.Expr("amount_cents - ?", feeCents)).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": paymentID, "status": types.PaymentStatusCompleted}).
		Where("fee_cents IS NULL").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate settle fees query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to settle payment fees: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// ApplyEvent applies one verified gateway event in a single transaction:
// lock the payment row by charge ref, record the event id (duplicate
// delivery commits as a no-op), then advance the payment only along a
// legal edge. Late or out-of-order deliveries are recorded and ignored.
// The second return is the id of the payment the event landed on.
func (r *PaymentRepository) ApplyEvent(ctx context.Context, event *types.GatewayEvent) (types.EventOutcome, string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to begin apply event tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var paymentID string
	var status types.PaymentStatus
	err = tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT id, status FROM %s WHERE charge_ref = $1 FOR UPDATE`, paymentTableName),
		event.ChargeRef,
	).Scan(&paymentID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Deliberately not recorded: a redelivery after the local
			// payment write commits must still be able to reconcile.
			return types.EventUnknownCharge, "", nil
		}
		return "", "", fmt.Errorf("failed to lock payment by charge ref: %w", err)
	}

	query, args, err := psql().
		Insert(gatewayEventTableName).
		Columns("event_id", "event_type", "charge_ref", "processed_at").
		Values(event.ID, event.Type, event.ChargeRef, time.Now()).
		Suffix("ON CONFLICT (event_id) DO NOTHING").
		ToSql()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate insert event query: %w", err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return "", "", fmt.Errorf("failed to record gateway event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if err := tx.Commit(ctx); err != nil {
			return "", "", fmt.Errorf("failed to commit duplicate event: %w", err)
		}
		return types.EventDuplicate, paymentID, nil
	}

	outcome := types.EventSuperseded
	switch event.Type {
	case types.GatewayEventSucceeded:
		if status == types.PaymentStatusPending || status == types.PaymentStatusProcessing {
			if event.FeeCents != nil {
				_, err = tx.Exec(ctx, fmt.Sprintf(`UPDATE %s
					SET status = $2, paid_at = $3, fee_cents = $4,
					    net_cents = amount_cents - $4, updated_at = $5
					WHERE id = $1`, paymentTableName),
					paymentID, types.PaymentStatusCompleted, event.OccurredAt, *event.FeeCents, time.Now())
			} else {
				// No settlement numbers in the payload; fee and net
				// stay NULL until SettleFees backfills them.
				_, err = tx.Exec(ctx, fmt.Sprintf(`UPDATE %s
					SET status = $2, paid_at = $3, updated_at = $4
					WHERE id = $1`, paymentTableName),
					paymentID, types.PaymentStatusCompleted, event.OccurredAt, time.Now())
			}
			outcome = types.EventApplied
		}
	case types.GatewayEventFailed:
		if status == types.PaymentStatusPending || status == types.PaymentStatusProcessing {
			_, err = tx.Exec(ctx, fmt.Sprintf(`UPDATE %s
				SET status = $2, updated_at = $3 WHERE id = $1`, paymentTableName),
				paymentID, types.PaymentStatusFailed, time.Now())
			outcome = types.EventApplied
		}
	case types.GatewayEventRefunded:
		if status == types.PaymentStatusCompleted {
			_, err = tx.Exec(ctx, fmt.Sprintf(`UPDATE %s
				SET status = $2, updated_at = $3 WHERE id = $1`, paymentTableName),
				paymentID, types.PaymentStatusRefunded, time.Now())
			outcome = types.EventApplied
		}
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to apply gateway event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", "", fmt.Errorf("failed to commit gateway event: %w", err)
	}

	return outcome, paymentID, nil
}

// PruneEventsBefore deletes processed gateway event rows older than the
// cutoff. Bounded retention for the idempotency set.
func (r *PaymentRepository) PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := psql().
		Delete(gatewayEventTableName).
		Where(sq.Lt{"processed_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate prune events query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune gateway events: %w", err)
	}

	return tag.RowsAffected(), nil
}
