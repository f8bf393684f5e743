package lease

import (
	"context"
	"time"

	"rentfold/internal/store"
	"rentfold/pkg/types"

	"github.com/shopspring/decimal"
)

// Store interfaces consumed by the lease services. The pgx-backed
// repositories in internal/store satisfy them; tests substitute fakes
// that honor the same conditional-update contracts.

type LeaseStore interface {
	Lease(ctx context.Context, leaseID string) (*types.Lease, error)
	CreateLease(ctx context.Context, lease *types.Lease, tenants []types.LeaseTenant) error
	Tenants(ctx context.Context, leaseID string) ([]*types.LeaseTenant, error)
	MarkPendingSignature(ctx context.Context, leaseID string, requiredSignatures int) (bool, error)
	Terminate(ctx context.Context, leaseID string, effectiveDate time.Time) (bool, error)
	UpdateBoundedTerms(ctx context.Context, leaseID string, rentCents *int64, endDate *time.Time, policy *types.LateFeePolicy, policyAmount *decimal.Decimal) (bool, error)
}

type AddendumStore interface {
	Addendum(ctx context.Context, addendumID string) (*types.Addendum, error)
	AddendaByLease(ctx context.Context, leaseID string) ([]*types.Addendum, error)
	CreateAddendum(ctx context.Context, addendum *types.Addendum) error
	MarkSent(ctx context.Context, addendumID string, requiredSignatures int) (bool, error)
	AttachDocument(ctx context.Context, addendumID, documentKey, contentHash string) (bool, error)
}

type TokenStore interface {
	CreateToken(ctx context.Context, token *types.SigningToken) error
	Token(ctx context.Context, token string) (*types.SigningToken, error)
	Consume(ctx context.Context, token string) error
}

type SignatureStore interface {
	Submit(ctx context.Context, token string, sig *types.Signature) (*store.SubmitResult, error)
	SignaturesByDocument(ctx context.Context, doc types.DocumentRef) ([]*types.Signature, error)
}

// Emitter is the audit/notification sink; satisfied by notify.Notifier.
type Emitter interface {
	Emit(name string, fields map[string]any)
}
