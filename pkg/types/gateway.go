package types

import "time"

// GatewayEventType is the neutral classification of a gateway
// notification. The Stripe adapter maps provider event names onto these;
// anything it does not recognize becomes Unknown and is ignored.
type GatewayEventType string

const (
	GatewayEventSucceeded GatewayEventType = "succeeded"
	GatewayEventFailed    GatewayEventType = "failed"
	GatewayEventRefunded  GatewayEventType = "refunded"
	GatewayEventUnknown   GatewayEventType = "unknown"
)

// GatewayEvent is one signature-verified notification from the payment
// gateway. ChargeRef is the reconciliation join key; ID is the gateway's
// own event identifier and the idempotency key for application.
type GatewayEvent struct {
	ID        string
	Type      GatewayEventType
	ChargeRef string
	// FeeCents is nil when the payload does not carry settlement
	// numbers; fee and net stay open until a poll settles them.
	FeeCents   *int64
	OccurredAt time.Time
}

// EventOutcome reports what applying a gateway event did.
type EventOutcome string

const (
	// EventApplied: the payment row transitioned.
	EventApplied EventOutcome = "applied"
	// EventDuplicate: this event id was already processed; committed no-op.
	EventDuplicate EventOutcome = "duplicate"
	// EventSuperseded: first delivery, but the payment already advanced
	// past the transition this event carries; recorded and ignored.
	EventSuperseded EventOutcome = "superseded"
	// EventUnknownCharge: no payment row owns this charge ref. Not
	// recorded, so a redelivery after the local write commits can still
	// reconcile.
	EventUnknownCharge EventOutcome = "unknown_charge"
)
