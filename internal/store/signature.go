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

const signatureTableName = "rentfold.signatures"

var signatureColumns = utils.StructTagValues(types.Signature{})

// SubmitResult is the outcome of one signature submission.
type SubmitResult struct {
	// Remaining signatures still required on the document.
	Remaining int
	// Activated is true when this submission was the one that completed
	// the document and flipped it to ACTIVE.
	Activated bool
	// Status is the document status after the submission committed.
	Status string
}

type SignatureRepository struct {
	pool   *pgxpool.Pool
	tokens *TokenRepository
}

func NewSignatureRepository(pool *pgxpool.Pool, tokens *TokenRepository) *SignatureRepository {
	return &SignatureRepository{pool: pool, tokens: tokens}
}

func (r *SignatureRepository) SignaturesByDocument(ctx context.Context, doc types.DocumentRef) ([]*types.Signature, error) {
	query, args, err := psql().
		Select(signatureColumns...).
		From(signatureTableName).
		Where(sq.Eq{"document_type": doc.Type, "document_id": doc.ID}).
		OrderBy("signed_at asc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signatures query: %w", err)
	}

	signatures := make([]*types.Signature, 0)
	if err := pgxscan.Select(ctx, r.pool, &signatures, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch signatures: %w", err)
	}

	return signatures, nil
}

// Submit is the one atomic read-modify-write of the signing flow. In a
// single transaction it consumes the token, inserts the signature row,
// decrements the document's signature counter and, when the counter hits
// zero, flips the document to ACTIVE. Row locks taken by the counter
// update serialize concurrent signers on the same document, so exactly
// one submission observes zero and performs the activation.
func (r *SignatureRepository) Submit(ctx context.Context, token string, sig *types.Signature) (*SubmitResult, error) {
	now := time.Now()
	sig.ID = utils.NanoID()
	sig.SignedAt = now

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin submit signature tx: %w", err)
	}
	defer tx.Rollback(ctx)

	affected, err := consumeToken(ctx, tx, token, now)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Classify outside the aborted transaction.
		_ = tx.Rollback(ctx)
		return nil, r.tokens.ClassifyConsumeFailure(ctx, token)
	}

	query, args, err := psql().
		Insert(signatureTableName).
		SetMap(utils.StructToMap(sig)).
		Suffix("ON CONFLICT (document_type, document_id, signer_type, signer_id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate insert signature query: %w", err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert signature: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, types.ErrDuplicateSignature
	}

	var table, signable, active string
	switch sig.DocumentType {
	case types.DocumentTypeLease:
		table = leaseTableName
		signable = string(types.LeaseStatusPendingSignature)
		active = string(types.LeaseStatusActive)
	case types.DocumentTypeAddendum:
		table = addendumTableName
		signable = string(types.AddendumStatusSent)
		active = string(types.AddendumStatusActive)
	default:
		return nil, types.ErrInvalidDocumentState
	}

	var remaining int
	decrement := fmt.Sprintf(`UPDATE %s
		SET signatures_remaining = signatures_remaining - 1, updated_at = $2
		WHERE id = $1 AND status = $3 AND signatures_remaining > 0
		RETURNING signatures_remaining`, table)
	err = tx.QueryRow(ctx, decrement, sig.DocumentID, now, signable).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrInvalidDocumentState
		}
		return nil, fmt.Errorf("failed to decrement signature counter: %w", err)
	}

	result := &SubmitResult{Remaining: remaining, Status: signable}
	if remaining == 0 {
		activate := fmt.Sprintf(`UPDATE %s
			SET status = $2, activated_at = $3, updated_at = $3
			WHERE id = $1 AND status = $4`, table)
		tag, err := tx.Exec(ctx, activate, sig.DocumentID, active, now, signable)
		if err != nil {
			return nil, fmt.Errorf("failed to activate document: %w", err)
		}
		result.Activated = tag.RowsAffected() == 1
		result.Status = active
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit signature submission: %w", err)
	}

	return result, nil
}
