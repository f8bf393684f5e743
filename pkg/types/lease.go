package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type LeaseStatus string

const (
	LeaseStatusDraft            LeaseStatus = "DRAFT"
	LeaseStatusPendingSignature LeaseStatus = "PENDING_SIGNATURE"
	LeaseStatusActive           LeaseStatus = "ACTIVE"
	LeaseStatusExpired          LeaseStatus = "EXPIRED"
	LeaseStatusTerminated       LeaseStatus = "TERMINATED"
)

type LateFeePolicy string

const (
	LateFeePolicyFlat       LateFeePolicy = "FLAT"
	LateFeePolicyPercentage LateFeePolicy = "PERCENTAGE"
)

type Lease struct {
	ID         string `db:"id" json:"id"`
	UnitID     string `db:"unit_id" json:"unitId"`
	LandlordID string `db:"landlord_id" json:"landlordId"`

	StartDate    time.Time `db:"start_date" json:"startDate"`
	EndDate      time.Time `db:"end_date" json:"endDate"`
	RentCents    int64     `db:"rent_cents" json:"rentCents"`
	DepositCents int64     `db:"deposit_cents" json:"depositCents"`

	// FLAT policy: amount is dollars. PERCENTAGE policy: amount is a
	// percent of monthly rent.
	LateFeePolicy   *LateFeePolicy   `db:"late_fee_policy" json:"lateFeePolicy"`
	LateFeeAmount   *decimal.Decimal `db:"late_fee_amount" json:"lateFeeAmount"`
	GracePeriodDays int              `db:"grace_period_days" json:"gracePeriodDays"`
	RentDueDay      int              `db:"rent_due_day" json:"rentDueDay"` // 1-28

	// Stored status never holds EXPIRED; expiry is derived at read time.
	Status LeaseStatus `db:"status" json:"status"`

	// Counts signatures still required while PENDING_SIGNATURE; the
	// activation source of truth, decremented atomically per signature.
	SignaturesRemaining int `db:"signatures_remaining" json:"-"`

	SentAt       *time.Time `db:"sent_at" json:"sentAt"`
	ActivatedAt  *time.Time `db:"activated_at" json:"activatedAt"`
	TerminatedAt *time.Time `db:"terminated_at" json:"terminatedAt"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// EffectiveStatus reports EXPIRED for an ACTIVE lease whose end date has
// passed. Expiry is never persisted; every reader derives it from the
// stored dates so there is no scheduler to fall behind.
func (l *Lease) EffectiveStatus(now time.Time) LeaseStatus {
	if l.Status == LeaseStatusActive && now.After(l.EndDate) {
		return LeaseStatusExpired
	}
	return l.Status
}

type LeaseTenant struct {
	LeaseID   string `db:"lease_id" json:"leaseId"`
	TenantID  string `db:"tenant_id" json:"tenantId"`
	Position  int    `db:"position" json:"position"`
	IsPrimary bool   `db:"is_primary" json:"isPrimary"`
}

type AddendumStatus string

const (
	AddendumStatusDraft  AddendumStatus = "DRAFT"
	AddendumStatusSent   AddendumStatus = "SENT"
	AddendumStatusActive AddendumStatus = "ACTIVE"
)

type Addendum struct {
	ID      string `db:"id" json:"id"`
	LeaseID string `db:"lease_id" json:"leaseId"`

	Title   string `db:"title" json:"title"`
	Content string `db:"content" json:"content"`

	// Optional uploaded rendering of the addendum; the hash detects a
	// re-upload with altered content after sending.
	DocumentKey *string `db:"document_key" json:"documentKey"`
	ContentHash *string `db:"content_hash" json:"contentHash"`

	EffectiveDate       time.Time      `db:"effective_date" json:"effectiveDate"`
	Status              AddendumStatus `db:"status" json:"status"`
	SignaturesRemaining int            `db:"signatures_remaining" json:"-"`

	SentAt      *time.Time `db:"sent_at" json:"sentAt"`
	ActivatedAt *time.Time `db:"activated_at" json:"activatedAt"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// Tenant is the minimal party record the lease core needs; tenant CRUD
// lives in the surrounding application.
type Tenant struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"fullName"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
