package lease

import (
	"context"
	"strings"
	"time"

	"rentfold/pkg/types"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// StateMachine owns every lease and addendum status transition. Each
// transition is a conditional update in the store, guarded on its only
// allowed source state; a transition that finds the row elsewhere
// reports a state conflict instead of clobbering it. The one transition
// not driven here, PENDING_SIGNATURE to ACTIVE, fires inside the
// signature submission transaction (see Collector).
type StateMachine struct {
	logger   *logrus.Logger
	leases   LeaseStore
	addenda  AddendumStore
	issuer   *TokenIssuer
	tokenTTL time.Duration
}

func NewStateMachine(logger *logrus.Logger, leases LeaseStore, addenda AddendumStore, issuer *TokenIssuer, tokenTTL time.Duration) *StateMachine {
	return &StateMachine{
		logger:   logger,
		leases:   leases,
		addenda:  addenda,
		issuer:   issuer,
		tokenTTL: tokenTTL,
	}
}

type CreateLeaseInput struct {
	UnitID          string               `json:"unitId"`
	LandlordID      string               `json:"landlordId"`
	TenantIDs       []string             `json:"tenantIds"`
	PrimaryTenantID string               `json:"primaryTenantId"`
	StartDate       time.Time            `json:"startDate"`
	EndDate         time.Time            `json:"endDate"`
	RentCents       int64                `json:"rentCents"`
	DepositCents    int64                `json:"depositCents"`
	LateFeePolicy   *types.LateFeePolicy `json:"lateFeePolicy"`
	LateFeeAmount   *decimal.Decimal     `json:"lateFeeAmount"`
	GracePeriodDays int                  `json:"gracePeriodDays"`
	RentDueDay      int                  `json:"rentDueDay"`
}

func (in *CreateLeaseInput) validate() error {
	if in.UnitID == "" || in.LandlordID == "" || len(in.TenantIDs) == 0 {
		return types.ErrIncompleteLeaseTerms
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() || !in.EndDate.After(in.StartDate) {
		return types.ErrIncompleteLeaseTerms
	}
	if in.RentCents <= 0 {
		return types.ErrIncompleteLeaseTerms
	}
	if in.RentDueDay < 1 || in.RentDueDay > 28 {
		return types.ErrIncompleteLeaseTerms
	}

	primaryFound := false
	for _, id := range in.TenantIDs {
		if id == in.PrimaryTenantID {
			primaryFound = true
			break
		}
	}
	if !primaryFound {
		return types.ErrIncompleteLeaseTerms
	}

	return nil
}

func (m *StateMachine) CreateLease(ctx context.Context, input CreateLeaseInput) (*types.Lease, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	lease := &types.Lease{
		UnitID:          input.UnitID,
		LandlordID:      input.LandlordID,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		RentCents:       input.RentCents,
		DepositCents:    input.DepositCents,
		LateFeePolicy:   input.LateFeePolicy,
		LateFeeAmount:   input.LateFeeAmount,
		GracePeriodDays: input.GracePeriodDays,
		RentDueDay:      input.RentDueDay,
	}

	tenants := make([]types.LeaseTenant, 0, len(input.TenantIDs))
	for i, tenantID := range input.TenantIDs {
		tenants = append(tenants, types.LeaseTenant{
			TenantID:  tenantID,
			Position:  i,
			IsPrimary: tenantID == input.PrimaryTenantID,
		})
	}

	if err := m.leases.CreateLease(ctx, lease, tenants); err != nil {
		return nil, err
	}

	return lease, nil
}

// SendForSignature moves a DRAFT lease to PENDING_SIGNATURE and issues a
// signing token for every tenant and the landlord countersignature.
func (m *StateMachine) SendForSignature(ctx context.Context, leaseID string) ([]*types.SigningToken, error) {
	lease, err := m.leases.Lease(ctx, leaseID)
	if err != nil {
		return nil, err
	}

	tenants, err := m.leases.Tenants(ctx, leaseID)
	if err != nil {
		return nil, err
	}

	if err := checkLeaseComplete(lease, tenants); err != nil {
		return nil, err
	}

	required := len(tenants) + 1 // landlord countersignature
	moved, err := m.leases.MarkPendingSignature(ctx, leaseID, required)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, types.ErrInvalidDocumentState
	}

	doc := types.DocumentRef{Type: types.DocumentTypeLease, ID: leaseID}
	signers := make([]types.SignerRef, 0, required)
	for _, tenant := range tenants {
		signers = append(signers, types.SignerRef{Type: types.SignerTypeTenant, ID: tenant.TenantID})
	}
	signers = append(signers, types.SignerRef{Type: types.SignerTypeLandlord, ID: lease.LandlordID})

	tokens := make([]*types.SigningToken, 0, len(signers))
	for _, signer := range signers {
		token, err := m.issuer.Issue(ctx, doc, signer, m.tokenTTL)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}

	m.logger.WithFields(logrus.Fields{
		"lease_id": leaseID,
		"signers":  len(signers),
	}).Info("lease sent for signature")

	return tokens, nil
}

// ReissueToken replaces an expired or lost token for one signer on a
// still-signable document.
func (m *StateMachine) ReissueToken(ctx context.Context, doc types.DocumentRef, signer types.SignerRef) (*types.SigningToken, error) {
	return m.issuer.Issue(ctx, doc, signer, m.tokenTTL)
}

// Terminate moves ACTIVE to TERMINATED. A lease that is missing, still
// unsigned, expired or already terminated refuses.
func (m *StateMachine) Terminate(ctx context.Context, leaseID string, effectiveDate time.Time) error {
	moved, err := m.leases.Terminate(ctx, leaseID, effectiveDate)
	if err != nil {
		return err
	}
	if moved {
		m.logger.WithField("lease_id", leaseID).Info("lease terminated")
		return nil
	}

	if _, err := m.leases.Lease(ctx, leaseID); err != nil {
		return err
	}
	return types.ErrNoActiveLease
}

// UpdateTermsInput carries the only fields editable after DRAFT.
type UpdateTermsInput struct {
	RentCents     *int64               `json:"rentCents"`
	EndDate       *time.Time           `json:"endDate"`
	LateFeePolicy *types.LateFeePolicy `json:"lateFeePolicy"`
	LateFeeAmount *decimal.Decimal     `json:"lateFeeAmount"`
}

func (m *StateMachine) UpdateTerms(ctx context.Context, leaseID string, input UpdateTermsInput) error {
	updated, err := m.leases.UpdateBoundedTerms(ctx, leaseID, input.RentCents, input.EndDate, input.LateFeePolicy, input.LateFeeAmount)
	if err != nil {
		return err
	}
	if updated {
		return nil
	}

	if _, err := m.leases.Lease(ctx, leaseID); err != nil {
		return err
	}
	return types.ErrInvalidDocumentState
}

type CreateAddendumInput struct {
	LeaseID       string    `json:"leaseId"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	EffectiveDate time.Time `json:"effectiveDate"`
}

func (m *StateMachine) CreateAddendum(ctx context.Context, input CreateAddendumInput) (*types.Addendum, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, types.ErrIncompleteLeaseTerms
	}

	// Addenda attach to existing leases only.
	if _, err := m.leases.Lease(ctx, input.LeaseID); err != nil {
		return nil, err
	}

	addendum := &types.Addendum{
		LeaseID:       input.LeaseID,
		Title:         input.Title,
		Content:       input.Content,
		EffectiveDate: input.EffectiveDate,
	}

	if err := m.addenda.CreateAddendum(ctx, addendum); err != nil {
		return nil, err
	}

	return addendum, nil
}

// SendAddendum moves DRAFT to SENT and issues a token per tenant. No
// landlord countersignature on addenda.
func (m *StateMachine) SendAddendum(ctx context.Context, addendumID string) ([]*types.SigningToken, error) {
	addendum, err := m.addenda.Addendum(ctx, addendumID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(addendum.Title) == "" || strings.TrimSpace(addendum.Content) == "" {
		return nil, types.ErrInvalidDocumentState
	}

	tenants, err := m.leases.Tenants(ctx, addendum.LeaseID)
	if err != nil {
		return nil, err
	}

	moved, err := m.addenda.MarkSent(ctx, addendumID, len(tenants))
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, types.ErrInvalidDocumentState
	}

	doc := types.DocumentRef{Type: types.DocumentTypeAddendum, ID: addendumID}
	tokens := make([]*types.SigningToken, 0, len(tenants))
	for _, tenant := range tenants {
		token, err := m.issuer.Issue(ctx, doc, types.SignerRef{Type: types.SignerTypeTenant, ID: tenant.TenantID}, m.tokenTTL)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}

	m.logger.WithFields(logrus.Fields{
		"addendum_id": addendumID,
		"signers":     len(tenants),
	}).Info("addendum sent for signature")

	return tokens, nil
}

// AttachAddendumDocument records an uploaded rendering. Once sent, a
// re-upload whose hash differs from the recorded one is refused.
func (m *StateMachine) AttachAddendumDocument(ctx context.Context, addendumID, documentKey, contentHash string) error {
	attached, err := m.addenda.AttachDocument(ctx, addendumID, documentKey, contentHash)
	if err != nil {
		return err
	}
	if attached {
		return nil
	}

	if _, err := m.addenda.Addendum(ctx, addendumID); err != nil {
		return err
	}
	return types.ErrDocumentHashMismatch
}

func checkLeaseComplete(lease *types.Lease, tenants []*types.LeaseTenant) error {
	if lease.UnitID == "" || lease.LandlordID == "" || len(tenants) == 0 {
		return types.ErrIncompleteLeaseTerms
	}
	if lease.StartDate.IsZero() || lease.EndDate.IsZero() || lease.RentCents <= 0 {
		return types.ErrIncompleteLeaseTerms
	}

	primaries := 0
	for _, tenant := range tenants {
		if tenant.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		return types.ErrIncompleteLeaseTerms
	}

	return nil
}
