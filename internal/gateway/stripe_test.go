package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"rentfold/pkg/types"

	"github.com/stripe/stripe-go/v84"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

// signedPayload builds an event body and a matching Stripe-Signature
// header the way Stripe computes it: HMAC-SHA256 over "t.payload".
func signedPayload(t *testing.T, eventID, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()

	objectJSON, err := json.Marshal(object)
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"created":     time.Now().Unix(),
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": json.RawMessage(objectJSON)},
	})
	require.NoError(t, err)

	now := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", now, payload)
	header := fmt.Sprintf("t=%d,v1=%s", now, hex.EncodeToString(mac.Sum(nil)))

	return payload, header
}

func TestVerifyEventSucceeded(t *testing.T) {
	s := &Stripe{webhookSecret: testWebhookSecret}

	payload, header := signedPayload(t, "evt_1", "payment_intent.succeeded", map[string]any{
		"id": "pi_123",
	})

	event, err := s.VerifyEvent(payload, header)
	require.NoError(t, err)
	require.Equal(t, "evt_1", event.ID)
	require.Equal(t, types.GatewayEventSucceeded, event.Type)
	require.Equal(t, "pi_123", event.ChargeRef)
	require.Nil(t, event.FeeCents)
}

// Payloads usually carry latest_charge as an id string; the fee is only
// known when the balance transaction arrives expanded.
func TestVerifyEventSucceededFee(t *testing.T) {
	s := &Stripe{webhookSecret: testWebhookSecret}

	payload, header := signedPayload(t, "evt_1", "payment_intent.succeeded", map[string]any{
		"id":            "pi_123",
		"latest_charge": "ch_456",
	})

	event, err := s.VerifyEvent(payload, header)
	require.NoError(t, err)
	require.Nil(t, event.FeeCents)

	payload, header = signedPayload(t, "evt_2", "payment_intent.succeeded", map[string]any{
		"id": "pi_123",
		"latest_charge": map[string]any{
			"id":                  "ch_456",
			"balance_transaction": map[string]any{"id": "txn_789", "fee": 567},
		},
	})

	event, err = s.VerifyEvent(payload, header)
	require.NoError(t, err)
	require.NotNil(t, event.FeeCents)
	require.Equal(t, int64(567), *event.FeeCents)
}

func TestVerifyEventFailed(t *testing.T) {
	s := &Stripe{webhookSecret: testWebhookSecret}

	payload, header := signedPayload(t, "evt_2", "payment_intent.payment_failed", map[string]any{
		"id": "pi_123",
	})

	event, err := s.VerifyEvent(payload, header)
	require.NoError(t, err)
	require.Equal(t, types.GatewayEventFailed, event.Type)
	require.Equal(t, "pi_123", event.ChargeRef)
}

// Refund events arrive on the charge object; the charge ref is its
// parent payment intent.
func TestVerifyEventRefunded(t *testing.T) {
	s := &Stripe{webhookSecret: testWebhookSecret}

	payload, header := signedPayload(t, "evt_3", "charge.refunded", map[string]any{
		"id":             "ch_456",
		"payment_intent": "pi_123",
	})

	event, err := s.VerifyEvent(payload, header)
	require.NoError(t, err)
	require.Equal(t, types.GatewayEventRefunded, event.Type)
	require.Equal(t, "pi_123", event.ChargeRef)
}

func TestVerifyEventUnknownType(t *testing.T) {
	s := &Stripe{webhookSecret: testWebhookSecret}

	payload, header := signedPayload(t, "evt_4", "customer.created", map[string]any{
		"id": "cus_789",
	})

	event, err := s.VerifyEvent(payload, header)
	require.NoError(t, err)
	require.Equal(t, types.GatewayEventUnknown, event.Type)
}

func TestVerifyEventBadSignature(t *testing.T) {
	s := &Stripe{webhookSecret: testWebhookSecret}

	payload, _ := signedPayload(t, "evt_5", "payment_intent.succeeded", map[string]any{
		"id": "pi_123",
	})

	_, err := s.VerifyEvent(payload, "t=1,v1=deadbeef")
	require.Error(t, err)

	// Signed with a different secret.
	mac := hmac.New(sha256.New, []byte("whsec_other"))
	now := time.Now().Unix()
	fmt.Fprintf(mac, "%d.%s", now, payload)
	header := fmt.Sprintf("t=%d,v1=%s", now, hex.EncodeToString(mac.Sum(nil)))

	_, err = s.VerifyEvent(payload, header)
	require.Error(t, err)
}

func TestIntentStatus(t *testing.T) {
	require.Equal(t, ChargeSucceeded, intentStatus(stripe.PaymentIntentStatusSucceeded))
	require.Equal(t, ChargeFailed, intentStatus(stripe.PaymentIntentStatusCanceled))
	require.Equal(t, ChargeProcessing, intentStatus(stripe.PaymentIntentStatusProcessing))
	require.Equal(t, ChargeProcessing, intentStatus(stripe.PaymentIntentStatusRequiresConfirmation))
}
