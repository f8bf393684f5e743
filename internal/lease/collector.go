package lease

import (
	"context"
	"time"

	"rentfold/internal/notify"
	"rentfold/pkg/types"

	"github.com/sirupsen/logrus"
)

// Collector records signatures and detects completion. Completion and
// the resulting activation happen inside the store's single submission
// transaction, so two signers racing on the last two signatures still
// produce exactly one activation.
type Collector struct {
	logger     *logrus.Logger
	signatures SignatureStore
	issuer     *TokenIssuer
	leases     LeaseStore
	addenda    AddendumStore
	notifier   Emitter
}

func NewCollector(logger *logrus.Logger, signatures SignatureStore, issuer *TokenIssuer, leases LeaseStore, addenda AddendumStore, notifier Emitter) *Collector {
	return &Collector{
		logger:     logger,
		signatures: signatures,
		issuer:     issuer,
		leases:     leases,
		addenda:    addenda,
		notifier:   notifier,
	}
}

// SigningResult is what the signing endpoint returns to the signer.
type SigningResult struct {
	Document            types.DocumentRef `json:"document"`
	Status              string            `json:"status"`
	RemainingSignatures int               `json:"remainingSignatures"`
}

// RecordSignature resolves the token, checks the signer is required on
// the document, then hands off to the store's atomic submission. The
// token is consumed inside that transaction, never before.
func (c *Collector) RecordSignature(ctx context.Context, token string, artifact types.SignatureArtifact, meta types.SignatureMetadata) (*SigningResult, error) {
	row, err := c.issuer.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	doc := row.Document()
	signer := row.Signer()

	required, err := c.requiredSigners(ctx, doc)
	if err != nil {
		return nil, err
	}
	if !containsSigner(required, signer) {
		return nil, types.ErrUnauthorizedSigner
	}

	sig := &types.Signature{
		DocumentType:    doc.Type,
		DocumentID:      doc.ID,
		SignerType:      signer.Type,
		SignerID:        signer.ID,
		ArtifactKind:    artifact.Kind,
		ArtifactData:    artifact.Data,
		ConsentAgreedAt: meta.ConsentAgreedAt,
		ViewDurationSec: meta.ViewDurationSec,
		IPAddress:       meta.IPAddress,
		UserAgent:       meta.UserAgent,
	}

	result, err := c.signatures.Submit(ctx, token, sig)
	if err != nil {
		return nil, err
	}

	if result.Activated {
		event := notify.EventLeaseActivated
		if doc.Type == types.DocumentTypeAddendum {
			event = notify.EventAddendumActivated
		}
		c.notifier.Emit(event, map[string]any{
			"documentType": doc.Type,
			"documentId":   doc.ID,
		})
		c.logger.WithFields(logrus.Fields{
			"document_type": doc.Type,
			"document_id":   doc.ID,
		}).Info("document fully executed")
	}

	return &SigningResult{
		Document:            doc,
		Status:              result.Status,
		RemainingSignatures: result.Remaining,
	}, nil
}

// RemainingSignatures is a UI query, not the activation source of truth.
func (c *Collector) RemainingSignatures(ctx context.Context, doc types.DocumentRef) (int, error) {
	switch doc.Type {
	case types.DocumentTypeLease:
		lease, err := c.leases.Lease(ctx, doc.ID)
		if err != nil {
			return 0, err
		}
		return lease.SignaturesRemaining, nil
	case types.DocumentTypeAddendum:
		addendum, err := c.addenda.Addendum(ctx, doc.ID)
		if err != nil {
			return 0, err
		}
		return addendum.SignaturesRemaining, nil
	}

	return 0, types.ErrInvalidDocumentState
}

// IsComplete reports whether every required signer has signed.
func (c *Collector) IsComplete(ctx context.Context, doc types.DocumentRef) (bool, error) {
	switch doc.Type {
	case types.DocumentTypeLease:
		lease, err := c.leases.Lease(ctx, doc.ID)
		if err != nil {
			return false, err
		}
		return lease.EffectiveStatus(time.Now()) == types.LeaseStatusActive, nil
	case types.DocumentTypeAddendum:
		addendum, err := c.addenda.Addendum(ctx, doc.ID)
		if err != nil {
			return false, err
		}
		return addendum.Status == types.AddendumStatusActive, nil
	}

	return false, types.ErrInvalidDocumentState
}

// requiredSigners returns every signer the document needs: all tenants,
// plus the landlord countersignature for leases. Addenda need tenants
// only.
func (c *Collector) requiredSigners(ctx context.Context, doc types.DocumentRef) ([]types.SignerRef, error) {
	var leaseID string
	var landlordRequired bool

	switch doc.Type {
	case types.DocumentTypeLease:
		leaseID = doc.ID
		landlordRequired = true
	case types.DocumentTypeAddendum:
		addendum, err := c.addenda.Addendum(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		leaseID = addendum.LeaseID
	default:
		return nil, types.ErrInvalidDocumentState
	}

	lease, err := c.leases.Lease(ctx, leaseID)
	if err != nil {
		return nil, err
	}

	tenants, err := c.leases.Tenants(ctx, leaseID)
	if err != nil {
		return nil, err
	}

	signers := make([]types.SignerRef, 0, len(tenants)+1)
	for _, tenant := range tenants {
		signers = append(signers, types.SignerRef{Type: types.SignerTypeTenant, ID: tenant.TenantID})
	}
	if landlordRequired {
		signers = append(signers, types.SignerRef{Type: types.SignerTypeLandlord, ID: lease.LandlordID})
	}

	return signers, nil
}

func containsSigner(signers []types.SignerRef, signer types.SignerRef) bool {
	for _, s := range signers {
		if s == signer {
			return true
		}
	}
	return false
}
