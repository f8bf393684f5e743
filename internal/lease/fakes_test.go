package lease

import (
	"context"
	"sync"
	"time"

	"rentfold/internal/store"
	"rentfold/internal/utils"
	"rentfold/pkg/types"

	"github.com/shopspring/decimal"
)

// In-memory stores that honor the same conditional-update contracts as
// the pgx repositories: every status move is guarded on its allowed
// source state under one mutex, so concurrency tests exercise the real
// race semantics.

type fakeLeaseStore struct {
	mu      sync.Mutex
	leases  map[string]*types.Lease
	tenants map[string][]*types.LeaseTenant
}

func newFakeLeaseStore() *fakeLeaseStore {
	return &fakeLeaseStore{
		leases:  make(map[string]*types.Lease),
		tenants: make(map[string][]*types.LeaseTenant),
	}
}

func (f *fakeLeaseStore) Lease(_ context.Context, leaseID string) (*types.Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lease, ok := f.leases[leaseID]
	if !ok {
		return nil, types.ErrLeaseNotFound
	}
	copied := *lease
	return &copied, nil
}

func (f *fakeLeaseStore) CreateLease(_ context.Context, lease *types.Lease, tenants []types.LeaseTenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	lease.ID = utils.NanoID()
	lease.Status = types.LeaseStatusDraft
	lease.CreatedAt = time.Now()
	lease.UpdatedAt = lease.CreatedAt

	copied := *lease
	f.leases[lease.ID] = &copied

	rows := make([]*types.LeaseTenant, 0, len(tenants))
	for i := range tenants {
		tenants[i].LeaseID = lease.ID
		row := tenants[i]
		rows = append(rows, &row)
	}
	f.tenants[lease.ID] = rows

	return nil
}

func (f *fakeLeaseStore) Tenants(_ context.Context, leaseID string) ([]*types.LeaseTenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tenants[leaseID], nil
}

func (f *fakeLeaseStore) MarkPendingSignature(_ context.Context, leaseID string, requiredSignatures int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lease, ok := f.leases[leaseID]
	if !ok || lease.Status != types.LeaseStatusDraft {
		return false, nil
	}
	now := time.Now()
	lease.Status = types.LeaseStatusPendingSignature
	lease.SignaturesRemaining = requiredSignatures
	lease.SentAt = &now
	return true, nil
}

func (f *fakeLeaseStore) Terminate(_ context.Context, leaseID string, effectiveDate time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lease, ok := f.leases[leaseID]
	if !ok || lease.Status != types.LeaseStatusActive || time.Now().After(lease.EndDate) {
		return false, nil
	}
	lease.Status = types.LeaseStatusTerminated
	lease.TerminatedAt = &effectiveDate
	return true, nil
}

func (f *fakeLeaseStore) UpdateBoundedTerms(_ context.Context, leaseID string, rentCents *int64, endDate *time.Time, policy *types.LateFeePolicy, policyAmount *decimal.Decimal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lease, ok := f.leases[leaseID]
	if !ok || lease.Status == types.LeaseStatusTerminated {
		return false, nil
	}
	if rentCents != nil {
		lease.RentCents = *rentCents
	}
	if endDate != nil {
		lease.EndDate = *endDate
	}
	if policy != nil {
		lease.LateFeePolicy = policy
	}
	if policyAmount != nil {
		lease.LateFeeAmount = policyAmount
	}
	return true, nil
}

type fakeAddendumStore struct {
	mu      sync.Mutex
	addenda map[string]*types.Addendum
}

func newFakeAddendumStore() *fakeAddendumStore {
	return &fakeAddendumStore{addenda: make(map[string]*types.Addendum)}
}

func (f *fakeAddendumStore) Addendum(_ context.Context, addendumID string) (*types.Addendum, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	addendum, ok := f.addenda[addendumID]
	if !ok {
		return nil, types.ErrAddendumNotFound
	}
	copied := *addendum
	return &copied, nil
}

func (f *fakeAddendumStore) AddendaByLease(_ context.Context, leaseID string) ([]*types.Addendum, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*types.Addendum
	for _, addendum := range f.addenda {
		if addendum.LeaseID == leaseID {
			copied := *addendum
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeAddendumStore) CreateAddendum(_ context.Context, addendum *types.Addendum) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	addendum.ID = utils.NanoID()
	addendum.Status = types.AddendumStatusDraft
	addendum.CreatedAt = time.Now()

	copied := *addendum
	f.addenda[addendum.ID] = &copied
	return nil
}

func (f *fakeAddendumStore) MarkSent(_ context.Context, addendumID string, requiredSignatures int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	addendum, ok := f.addenda[addendumID]
	if !ok || addendum.Status != types.AddendumStatusDraft {
		return false, nil
	}
	now := time.Now()
	addendum.Status = types.AddendumStatusSent
	addendum.SignaturesRemaining = requiredSignatures
	addendum.SentAt = &now
	return true, nil
}

func (f *fakeAddendumStore) AttachDocument(_ context.Context, addendumID, documentKey, contentHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	addendum, ok := f.addenda[addendumID]
	if !ok {
		return false, nil
	}
	if addendum.Status != types.AddendumStatusDraft &&
		addendum.ContentHash != nil && *addendum.ContentHash != contentHash {
		return false, nil
	}
	addendum.DocumentKey = &documentKey
	addendum.ContentHash = &contentHash
	return true, nil
}

type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*types.SigningToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[string]*types.SigningToken)}
}

func (f *fakeTokenStore) CreateToken(_ context.Context, token *types.SigningToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	token.CreatedAt = time.Now()
	copied := *token
	f.tokens[token.Token] = &copied
	return nil
}

func (f *fakeTokenStore) Token(_ context.Context, token string) (*types.SigningToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.tokens[token]
	if !ok {
		return nil, types.ErrTokenNotFound
	}
	copied := *row
	return &copied, nil
}

func (f *fakeTokenStore) Consume(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consumeLocked(token)
}

func (f *fakeTokenStore) consumeLocked(token string) error {
	row, ok := f.tokens[token]
	if !ok {
		return types.ErrTokenNotFound
	}
	if row.UsedAt != nil {
		return types.ErrTokenAlreadyUsed
	}
	if time.Now().After(row.ExpiresAt) {
		return types.ErrTokenExpired
	}
	now := time.Now()
	row.UsedAt = &now
	return nil
}

// fakeSignatureStore mirrors the single-transaction submission: token
// consumption, the uniqueness check, the guarded counter decrement and
// the activation flip all happen under one lock.
type fakeSignatureStore struct {
	mu         sync.Mutex
	tokens     *fakeTokenStore
	leases     *fakeLeaseStore
	addenda    *fakeAddendumStore
	signatures map[string]*types.Signature
}

func newFakeSignatureStore(tokens *fakeTokenStore, leases *fakeLeaseStore, addenda *fakeAddendumStore) *fakeSignatureStore {
	return &fakeSignatureStore{
		tokens:     tokens,
		leases:     leases,
		addenda:    addenda,
		signatures: make(map[string]*types.Signature),
	}
}

func signatureKey(sig *types.Signature) string {
	return string(sig.DocumentType) + "/" + sig.DocumentID + "/" + string(sig.SignerType) + "/" + sig.SignerID
}

func (f *fakeSignatureStore) Submit(_ context.Context, token string, sig *types.Signature) (*store.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tokens.mu.Lock()
	err := f.tokens.consumeLocked(token)
	f.tokens.mu.Unlock()
	if err != nil {
		return nil, err
	}

	// Any refusal past this point puts the token back, the way the
	// store's transaction leaves it untouched on rollback.
	unconsume := func() {
		f.tokens.mu.Lock()
		f.tokens.tokens[token].UsedAt = nil
		f.tokens.mu.Unlock()
	}

	if _, exists := f.signatures[signatureKey(sig)]; exists {
		unconsume()
		return nil, types.ErrDuplicateSignature
	}

	switch sig.DocumentType {
	case types.DocumentTypeLease:
		f.leases.mu.Lock()
		defer f.leases.mu.Unlock()

		lease, ok := f.leases.leases[sig.DocumentID]
		if !ok || lease.Status != types.LeaseStatusPendingSignature || lease.SignaturesRemaining <= 0 {
			unconsume()
			return nil, types.ErrInvalidDocumentState
		}

		sig.SignedAt = time.Now()
		f.signatures[signatureKey(sig)] = sig

		lease.SignaturesRemaining--
		if lease.SignaturesRemaining == 0 {
			now := time.Now()
			lease.Status = types.LeaseStatusActive
			lease.ActivatedAt = &now
			return &store.SubmitResult{Remaining: 0, Activated: true, Status: string(lease.Status)}, nil
		}
		return &store.SubmitResult{Remaining: lease.SignaturesRemaining, Status: string(lease.Status)}, nil

	case types.DocumentTypeAddendum:
		f.addenda.mu.Lock()
		defer f.addenda.mu.Unlock()

		addendum, ok := f.addenda.addenda[sig.DocumentID]
		if !ok || addendum.Status != types.AddendumStatusSent || addendum.SignaturesRemaining <= 0 {
			unconsume()
			return nil, types.ErrInvalidDocumentState
		}

		sig.SignedAt = time.Now()
		f.signatures[signatureKey(sig)] = sig

		addendum.SignaturesRemaining--
		if addendum.SignaturesRemaining == 0 {
			now := time.Now()
			addendum.Status = types.AddendumStatusActive
			addendum.ActivatedAt = &now
			return &store.SubmitResult{Remaining: 0, Activated: true, Status: string(addendum.Status)}, nil
		}
		return &store.SubmitResult{Remaining: addendum.SignaturesRemaining, Status: string(addendum.Status)}, nil
	}

	unconsume()
	return nil, types.ErrInvalidDocumentState
}

func (f *fakeSignatureStore) SignaturesByDocument(_ context.Context, doc types.DocumentRef) ([]*types.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*types.Signature
	for _, sig := range f.signatures {
		if sig.DocumentType == doc.Type && sig.DocumentID == doc.ID {
			out = append(out, sig)
		}
	}
	return out, nil
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEmitter) Emit(name string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, name)
}

func (f *fakeEmitter) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, event := range f.events {
		if event == name {
			n++
		}
	}
	return n
}
