package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rentfold/internal/utils"
	"rentfold/pkg/types"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

// Stripe adapts the Stripe API to the neutral Gateway interface.
// Payment intents are the charge unit; the intent id is the charge ref.
type Stripe struct {
	client        *stripe.Client
	webhookSecret string
}

var _ Gateway = (*Stripe)(nil)

func NewStripe(apiKey, webhookSecret string) *Stripe {
	return &Stripe{
		client:        stripe.NewClient(apiKey),
		webhookSecret: webhookSecret,
	}
}

func (s *Stripe) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(req.Currency),
		PaymentMethod: stripe.String(req.MethodRef),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	intent, err := s.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	return &Charge{Ref: intent.ID, Status: intentStatus(intent.Status)}, nil
}

func (s *Stripe) Refund(ctx context.Context, chargeRef, idempotencyKey string) error {
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(chargeRef),
	}
	params.SetIdempotencyKey(idempotencyKey)

	if _, err := s.client.V1Refunds.Create(ctx, params); err != nil {
		return fmt.Errorf("create refund: %w", err)
	}

	return nil
}

func (s *Stripe) Charge(ctx context.Context, chargeRef string) (*Charge, error) {
	params := &stripe.PaymentIntentRetrieveParams{}
	params.AddExpand("latest_charge.balance_transaction")

	intent, err := s.client.V1PaymentIntents.Retrieve(ctx, chargeRef, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve payment intent: %w", err)
	}

	charge := &Charge{Ref: intent.ID, Status: intentStatus(intent.Status)}
	if intent.LatestCharge != nil {
		if intent.LatestCharge.Refunded {
			charge.Status = ChargeRefunded
		}
		if intent.LatestCharge.BalanceTransaction != nil {
			charge.FeeCents = utils.Int64Ptr(intent.LatestCharge.BalanceTransaction.Fee)
		}
	}

	return charge, nil
}

// VerifyEvent checks the Stripe-Signature header before anything else;
// an unverified payload never reaches the reconciler. Unrecognized event
// types map to GatewayEventUnknown and are ignored upstream.
func (s *Stripe) VerifyEvent(payload []byte, signatureHeader string) (*types.GatewayEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify event signature: %w", err)
	}

	var object struct {
		ID            string          `json:"id"`
		PaymentIntent string          `json:"payment_intent"`
		LatestCharge  json.RawMessage `json:"latest_charge"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return nil, fmt.Errorf("decode event object: %w", err)
	}

	out := &types.GatewayEvent{
		ID:         event.ID,
		OccurredAt: time.Unix(event.Created, 0),
	}

	switch event.Type {
	case "payment_intent.succeeded":
		out.Type = types.GatewayEventSucceeded
		out.ChargeRef = object.ID
		out.FeeCents = feeFromCharge(object.LatestCharge)
	case "payment_intent.payment_failed":
		out.Type = types.GatewayEventFailed
		out.ChargeRef = object.ID
	case "charge.refunded":
		out.Type = types.GatewayEventRefunded
		out.ChargeRef = object.PaymentIntent
	default:
		out.Type = types.GatewayEventUnknown
	}

	return out, nil
}

// feeFromCharge pulls the balance-transaction fee out of a charge
// object when the payload carries it expanded. Webhook payloads usually
// reference the balance transaction by id only; the fee then settles
// later through a gateway poll.
func feeFromCharge(raw json.RawMessage) *int64 {
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}

	var charge struct {
		BalanceTransaction json.RawMessage `json:"balance_transaction"`
	}
	if err := json.Unmarshal(raw, &charge); err != nil {
		return nil
	}
	if len(charge.BalanceTransaction) == 0 || charge.BalanceTransaction[0] != '{' {
		return nil
	}

	var txn struct {
		Fee int64 `json:"fee"`
	}
	if err := json.Unmarshal(charge.BalanceTransaction, &txn); err != nil {
		return nil
	}

	return &txn.Fee
}

func intentStatus(status stripe.PaymentIntentStatus) ChargeStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return ChargeSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return ChargeFailed
	default:
		return ChargeProcessing
	}
}
