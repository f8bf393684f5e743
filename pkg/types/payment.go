package types

import "time"

type PaymentMethodKind string

const (
	PaymentMethodACH    PaymentMethodKind = "ACH"
	PaymentMethodCard   PaymentMethodKind = "CARD"
	PaymentMethodManual PaymentMethodKind = "MANUAL"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// CanTransitionTo reports whether next is a legal edge from s:
// {PENDING, PROCESSING} -> COMPLETED | FAILED, COMPLETED -> REFUNDED.
// The store's conditional updates encode the same edges in SQL; this is
// the shared definition tests and fakes check against.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing:
		return next == PaymentStatusCompleted || next == PaymentStatusFailed ||
			(s == PaymentStatusPending && next == PaymentStatusProcessing)
	case PaymentStatusCompleted:
		return next == PaymentStatusRefunded
	default:
		return false
	}
}

type Payment struct {
	ID       string `db:"id" json:"id"`
	LeaseID  string `db:"lease_id" json:"leaseId"`
	TenantID string `db:"tenant_id" json:"tenantId"`

	AmountCents int64             `db:"amount_cents" json:"amountCents"`
	Method      PaymentMethodKind `db:"method" json:"method"`
	Status      PaymentStatus     `db:"status" json:"status"`

	// Gateway charge identifier; the reconciliation join key. Nil for
	// MANUAL payments and for charges that never reached the gateway.
	ChargeRef *string `db:"charge_ref" json:"chargeRef"`

	// Key sent with the gateway charge request so a retry after an
	// outcome-unknown timeout cannot double-charge.
	IdempotencyKey string `db:"idempotency_key" json:"-"`

	// Fee and net are two-phase: nil at creation, authoritative once the
	// gateway reports settlement.
	FeeCents *int64 `db:"fee_cents" json:"feeCents"`
	NetCents *int64 `db:"net_cents" json:"netCents"`

	PaidAt    *time.Time `db:"paid_at" json:"paidAt"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// SavedPaymentMethod maps a tenant to a payment instrument stored at the
// gateway.
type SavedPaymentMethod struct {
	ID         string            `db:"id" json:"id"`
	TenantID   string            `db:"tenant_id" json:"tenantId"`
	Kind       PaymentMethodKind `db:"kind" json:"kind"`
	GatewayRef string            `db:"gateway_ref" json:"-"`
	Label      string            `db:"label" json:"label"`
	CreatedAt  time.Time         `db:"created_at" json:"createdAt"`
}

// LateFee is a fee assessed against a lease. Waived and paid are
// mutually exclusive for the life of the row.
type LateFee struct {
	ID          string     `db:"id" json:"id"`
	LeaseID     string     `db:"lease_id" json:"leaseId"`
	AmountCents int64      `db:"amount_cents" json:"amountCents"`
	AssessedOn  time.Time  `db:"assessed_on" json:"assessedOn"`
	Waived      bool       `db:"waived" json:"waived"`
	WaivedAt    *time.Time `db:"waived_at" json:"waivedAt"`
	PaidDate    *time.Time `db:"paid_date" json:"paidDate"`
	PaymentID   *string    `db:"payment_id" json:"paymentId"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}
