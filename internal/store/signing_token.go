package store

import (
	"context"
	"fmt"
	"time"

	"rentfold/internal/utils"
	"rentfold/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const signingTokenTableName = "rentfold.signing_tokens"

var signingTokenColumns = utils.StructTagValues(types.SigningToken{})

// executor is satisfied by both *pgxpool.Pool and pgx.Tx, so the token
// consumption statement can run standalone or inside the signature
// submission transaction.
type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) CreateToken(ctx context.Context, token *types.SigningToken) error {
	token.CreatedAt = time.Now()

	query, args, err := psql().Insert(signingTokenTableName).SetMap(utils.StructToMap(token)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert token query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create signing token")
}

func (r *TokenRepository) Token(ctx context.Context, token string) (*types.SigningToken, error) {
	query, args, err := psql().
		Select(signingTokenColumns...).
		From(signingTokenTableName).
		Where(sq.Eq{"token": token}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token query: %w", err)
	}

	var row types.SigningToken
	err = pgxscan.Get(ctx, r.pool, &row, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to fetch signing token: %w", err)
	}

	return &row, nil
}

// Consume marks a token used. The used_at and expires_at guards live in
// the statement itself so a replayed request can never win twice; when
// zero rows land the error is classified from a re-read.
func (r *TokenRepository) Consume(ctx context.Context, token string) error {
	affected, err := consumeToken(ctx, r.pool, token, time.Now())
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	return r.ClassifyConsumeFailure(ctx, token)
}

// ClassifyConsumeFailure turns a failed conditional consume into the
// specific sentinel: not found, already used, or expired.
func (r *TokenRepository) ClassifyConsumeFailure(ctx context.Context, token string) error {
	row, err := r.Token(ctx, token)
	if err != nil {
		return err
	}
	if row.UsedAt != nil {
		return types.ErrTokenAlreadyUsed
	}
	if time.Now().After(row.ExpiresAt) {
		return types.ErrTokenExpired
	}
	// Guard failed but the re-read looks consumable: lost the race to a
	// concurrent consumer whose transaction has not committed yet.
	return types.ErrTokenAlreadyUsed
}

func consumeToken(ctx context.Context, db executor, token string, now time.Time) (int64, error) {
	query, args, err := psql().
		Update(signingTokenTableName).
		Set("used_at", now).
		Where(sq.Eq{"token": token, "used_at": nil}).
		Where(sq.Gt{"expires_at": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate consume token query: %w", err)
	}

	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to consume signing token: %w", err)
	}

	return tag.RowsAffected(), nil
}
