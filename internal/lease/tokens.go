package lease

import (
	"context"
	"strings"
	"time"

	"rentfold/internal/utils"
	"rentfold/pkg/types"

	"github.com/sirupsen/logrus"
)

// TokenIssuer mints and resolves the single-use signing tokens that let
// tenants and landlords sign without an authenticated session.
type TokenIssuer struct {
	logger  *logrus.Logger
	tokens  TokenStore
	leases  LeaseStore
	addenda AddendumStore
}

func NewTokenIssuer(logger *logrus.Logger, tokens TokenStore, leases LeaseStore, addenda AddendumStore) *TokenIssuer {
	return &TokenIssuer{logger: logger, tokens: tokens, leases: leases, addenda: addenda}
}

// Issue mints a token binding (document, signer). The document must be
// in a signable state: a lease pending signature, or an addendum that is
// sent or still a draft with content.
func (i *TokenIssuer) Issue(ctx context.Context, doc types.DocumentRef, signer types.SignerRef, ttl time.Duration) (*types.SigningToken, error) {
	if err := i.checkSignable(ctx, doc); err != nil {
		return nil, err
	}

	token := &types.SigningToken{
		Token:        utils.NanoID(),
		DocumentType: doc.Type,
		DocumentID:   doc.ID,
		SignerType:   signer.Type,
		SignerID:     signer.ID,
		ExpiresAt:    time.Now().Add(ttl),
	}

	if err := i.tokens.CreateToken(ctx, token); err != nil {
		return nil, err
	}

	i.logger.WithFields(logrus.Fields{
		"document_type": doc.Type,
		"document_id":   doc.ID,
		"signer_id":     signer.ID,
	}).Info("signing token issued")

	return token, nil
}

// Resolve is read-only: it never consumes. Errors are checked in order
// not-found, already-used, expired.
func (i *TokenIssuer) Resolve(ctx context.Context, token string) (*types.SigningToken, error) {
	row, err := i.tokens.Token(ctx, token)
	if err != nil {
		return nil, err
	}
	if row.UsedAt != nil {
		return nil, types.ErrTokenAlreadyUsed
	}
	if time.Now().After(row.ExpiresAt) {
		return nil, types.ErrTokenExpired
	}

	return row, nil
}

// Consume marks the token used; the store enforces single use
// atomically. The signing flow consumes inside the signature submission
// transaction instead of calling this directly.
func (i *TokenIssuer) Consume(ctx context.Context, token string) error {
	return i.tokens.Consume(ctx, token)
}

func (i *TokenIssuer) checkSignable(ctx context.Context, doc types.DocumentRef) error {
	switch doc.Type {
	case types.DocumentTypeLease:
		lease, err := i.leases.Lease(ctx, doc.ID)
		if err != nil {
			return err
		}
		if lease.EffectiveStatus(time.Now()) != types.LeaseStatusPendingSignature {
			return types.ErrInvalidDocumentState
		}
	case types.DocumentTypeAddendum:
		addendum, err := i.addenda.Addendum(ctx, doc.ID)
		if err != nil {
			return err
		}
		switch addendum.Status {
		case types.AddendumStatusSent:
		case types.AddendumStatusDraft:
			if strings.TrimSpace(addendum.Content) == "" {
				return types.ErrInvalidDocumentState
			}
		default:
			return types.ErrInvalidDocumentState
		}
	default:
		return types.ErrInvalidDocumentState
	}

	return nil
}
