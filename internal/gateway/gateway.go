// Package gateway abstracts the payment gateway. The core treats the
// gateway as an at-least-once, possibly-duplicate, possibly-out-of-order
// event source; everything provider-specific lives in the adapter.
package gateway

import (
	"context"

	"rentfold/pkg/types"
)

type ChargeStatus string

const (
	ChargeProcessing ChargeStatus = "processing"
	ChargeSucceeded  ChargeStatus = "succeeded"
	ChargeFailed     ChargeStatus = "failed"
	ChargeRefunded   ChargeStatus = "refunded"
)

type ChargeRequest struct {
	AmountCents int64
	Currency    string
	// MethodRef is the gateway's identifier for the saved payment
	// instrument.
	MethodRef string
	// IdempotencyKey makes a retried request after an outcome-unknown
	// timeout resolve to the same charge instead of a second one.
	IdempotencyKey string
	Metadata       map[string]string
}

type Charge struct {
	Ref    string
	Status ChargeStatus
	// FeeCents is nil until the provider exposes the settlement fee.
	FeeCents *int64
}

type Gateway interface {
	// CreateCharge requests a charge. A timeout is outcome-unknown: the
	// caller must leave the payment queryable and let reconciliation
	// settle it.
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)

	// Refund requests a refund of the full charge. Only a nil error
	// counts as gateway confirmation.
	Refund(ctx context.Context, chargeRef, idempotencyKey string) error

	// Charge fetches the current authoritative state of a charge,
	// including settlement fee when known.
	Charge(ctx context.Context, chargeRef string) (*Charge, error)

	// VerifyEvent authenticates a webhook payload and maps it to a
	// neutral event. Verification failure returns an error and the
	// payload must cause no side effects.
	VerifyEvent(payload []byte, signatureHeader string) (*types.GatewayEvent, error)
}
