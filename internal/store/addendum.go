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

const addendumTableName = "rentfold.addenda"

var addendumColumns = utils.StructTagValues(types.Addendum{})

type AddendumRepository struct {
	pool *pgxpool.Pool
}

func NewAddendumRepository(pool *pgxpool.Pool) *AddendumRepository {
	return &AddendumRepository{pool: pool}
}

func (r *AddendumRepository) Addendum(ctx context.Context, addendumID string) (*types.Addendum, error) {
	query, args, err := psql().
		Select(addendumColumns...).
		From(addendumTableName).
		Where(sq.Eq{"id": addendumID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate addendum query: %w", err)
	}

	var addendum types.Addendum
	err = pgxscan.Get(ctx, r.pool, &addendum, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrAddendumNotFound
		}
		return nil, fmt.Errorf("failed to fetch addendum: %w", err)
	}

	return &addendum, nil
}

func (r *AddendumRepository) AddendaByLease(ctx context.Context, leaseID string) ([]*types.Addendum, error) {
	query, args, err := psql().
		Select(addendumColumns...).
		From(addendumTableName).
		Where(sq.Eq{"lease_id": leaseID}).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate addenda query: %w", err)
	}

	addenda := make([]*types.Addendum, 0)
	if err := pgxscan.Select(ctx, r.pool, &addenda, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch addenda: %w", err)
	}

	return addenda, nil
}

func (r *AddendumRepository) CreateAddendum(ctx context.Context, addendum *types.Addendum) error {
	now := time.Now()
	addendum.ID = utils.NanoID()
	addendum.Status = types.AddendumStatusDraft
	addendum.CreatedAt = now
	addendum.UpdatedAt = now

	query, args, err := psql().Insert(addendumTableName).SetMap(utils.StructToMap(addendum)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert addendum query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create addendum")
}

// MarkSent moves a DRAFT addendum to SENT and arms the signature counter.
func (r *AddendumRepository) MarkSent(ctx context.Context, addendumID string, requiredSignatures int) (bool, error) {
	now := time.Now()

	query, args, err := psql().
		Update(addendumTableName).
		Set("status", types.AddendumStatusSent).
		Set("signatures_remaining", requiredSignatures).
		Set("sent_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": addendumID, "status": types.AddendumStatusDraft}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate mark sent query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to mark addendum sent: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// AttachDocument stores the uploaded rendering's storage key and content
// hash. Once sent, a different hash is refused in the statement itself:
// the update only lands when no hash is recorded yet, the hash is
// unchanged, or the addendum is still a draft.
func (r *AddendumRepository) AttachDocument(ctx context.Context, addendumID, documentKey, contentHash string) (bool, error) {
	query, args, err := psql().
		Update(addendumTableName).
		Set("document_key", documentKey).
		Set("content_hash", contentHash).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": addendumID}).
		Where(sq.Or{
			sq.Eq{"status": types.AddendumStatusDraft},
			sq.Eq{"content_hash": nil},
			sq.Eq{"content_hash": contentHash},
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate attach document query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to attach addendum document: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
