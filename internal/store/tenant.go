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

const tenantTableName = "rentfold.tenants"

var tenantColumns = utils.StructTagValues(types.Tenant{})

type TenantRepository struct {
	pool *pgxpool.Pool
}

func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

func (r *TenantRepository) Tenant(ctx context.Context, tenantID string) (*types.Tenant, error) {
	query, args, err := psql().
		Select(tenantColumns...).
		From(tenantTableName).
		Where(sq.Eq{"id": tenantID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate tenant query: %w", err)
	}

	var tenant types.Tenant
	err = pgxscan.Get(ctx, r.pool, &tenant, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to fetch tenant: %w", err)
	}

	return &tenant, nil
}

func (r *TenantRepository) UpsertTenant(ctx context.Context, tenant *types.Tenant) error {
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now()
	}

	query, args, err := psql().
		Insert(tenantTableName).
		SetMap(utils.StructToMap(tenant)).
		Suffix("ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name, email = EXCLUDED.email").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate upsert tenant query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to upsert tenant")
}
