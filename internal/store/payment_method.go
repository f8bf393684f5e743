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

const paymentMethodTableName = "rentfold.payment_methods"

var paymentMethodColumns = utils.StructTagValues(types.SavedPaymentMethod{})

type PaymentMethodRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentMethodRepository(pool *pgxpool.Pool) *PaymentMethodRepository {
	return &PaymentMethodRepository{pool: pool}
}

func (r *PaymentMethodRepository) PaymentMethod(ctx context.Context, methodID string) (*types.SavedPaymentMethod, error) {
	query, args, err := psql().
		Select(paymentMethodColumns...).
		From(paymentMethodTableName).
		Where(sq.Eq{"id": methodID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate payment method query: %w", err)
	}

	var method types.SavedPaymentMethod
	err = pgxscan.Get(ctx, r.pool, &method, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrPaymentMethodNotFound
		}
		return nil, fmt.Errorf("failed to fetch payment method: %w", err)
	}

	return &method, nil
}

func (r *PaymentMethodRepository) PaymentMethodsByTenant(ctx context.Context, tenantID string) ([]*types.SavedPaymentMethod, error) {
	query, args, err := psql().
		Select(paymentMethodColumns...).
		From(paymentMethodTableName).
		Where(sq.Eq{"tenant_id": tenantID}).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate payment methods query: %w", err)
	}

	methods := make([]*types.SavedPaymentMethod, 0)
	if err := pgxscan.Select(ctx, r.pool, &methods, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch payment methods: %w", err)
	}

	return methods, nil
}

func (r *PaymentMethodRepository) CreatePaymentMethod(ctx context.Context, method *types.SavedPaymentMethod) error {
	if method.ID == "" {
		method.ID = utils.NanoID()
	}
	method.CreatedAt = time.Now()

	query, args, err := psql().Insert(paymentMethodTableName).SetMap(utils.StructToMap(method)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert payment method query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create payment method")
}
