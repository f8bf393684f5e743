package types

import "time"

type DocumentType string

const (
	DocumentTypeLease    DocumentType = "lease"
	DocumentTypeAddendum DocumentType = "addendum"
)

type SignerType string

const (
	SignerTypeTenant   SignerType = "tenant"
	SignerTypeLandlord SignerType = "landlord"
)

// DocumentRef identifies a signable document: a lease or one of its
// addenda.
type DocumentRef struct {
	Type DocumentType `json:"type"`
	ID   string       `json:"id"`
}

// SignerRef identifies one required signer on a document.
type SignerRef struct {
	Type SignerType `json:"type"`
	ID   string     `json:"id"`
}

// SigningToken is a single-use, time-limited credential binding one
// signer to one document. A used or expired token never authorizes a
// write again.
type SigningToken struct {
	Token        string       `db:"token" json:"-"`
	DocumentType DocumentType `db:"document_type" json:"documentType"`
	DocumentID   string       `db:"document_id" json:"documentId"`
	SignerType   SignerType   `db:"signer_type" json:"signerType"`
	SignerID     string       `db:"signer_id" json:"signerId"`
	ExpiresAt    time.Time    `db:"expires_at" json:"expiresAt"`
	UsedAt       *time.Time   `db:"used_at" json:"usedAt"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
}

func (t *SigningToken) Document() DocumentRef {
	return DocumentRef{Type: t.DocumentType, ID: t.DocumentID}
}

func (t *SigningToken) Signer() SignerRef {
	return SignerRef{Type: t.SignerType, ID: t.SignerID}
}

type ArtifactKind string

const (
	ArtifactKindTyped ArtifactKind = "typed"
	ArtifactKindDrawn ArtifactKind = "drawn"
)

// SignatureArtifact is the rendering the signer produced: a typed name
// or a drawn image, base64 encoded.
type SignatureArtifact struct {
	Kind ArtifactKind `json:"kind"`
	Data string       `json:"data"`
}

// SignatureMetadata is the compliance trail captured with each
// signature.
type SignatureMetadata struct {
	ConsentAgreedAt time.Time `json:"consentAgreedAt"`
	ViewDurationSec int       `json:"viewDurationSec"`
	IPAddress       string    `json:"ipAddress"`
	UserAgent       string    `json:"userAgent"`
}

// Signature records one signer's execution of one document. At most one
// row exists per (document, signer); re-submission is rejected, never
// overwritten.
type Signature struct {
	ID           string       `db:"id" json:"id"`
	DocumentType DocumentType `db:"document_type" json:"documentType"`
	DocumentID   string       `db:"document_id" json:"documentId"`
	SignerType   SignerType   `db:"signer_type" json:"signerType"`
	SignerID     string       `db:"signer_id" json:"signerId"`

	ArtifactKind ArtifactKind `db:"artifact_kind" json:"artifactKind"`
	ArtifactData string       `db:"artifact_data" json:"-"`

	ConsentAgreedAt time.Time `db:"consent_agreed_at" json:"consentAgreedAt"`
	ViewDurationSec int       `db:"view_duration_sec" json:"viewDurationSec"`
	IPAddress       string    `db:"ip_address" json:"-"`
	UserAgent       string    `db:"user_agent" json:"-"`

	SignedAt time.Time `db:"signed_at" json:"signedAt"`
}
