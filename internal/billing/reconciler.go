package billing

import (
	"context"
	"fmt"

	"rentfold/internal/gateway"
	"rentfold/internal/notify"
	"rentfold/pkg/types"

	"github.com/sirupsen/logrus"
)

// Reconciler consumes the gateway's webhook stream and converges payment
// rows regardless of delivery order or duplication. Its only ordering
// contract is the pair of rules the store transaction enforces: event
// ids apply at most once, and a payment only moves along legal edges.
type Reconciler struct {
	logger   *logrus.Logger
	gw       gateway.Gateway
	payments PaymentStore
	notifier Emitter
}

func NewReconciler(logger *logrus.Logger, gw gateway.Gateway, payments PaymentStore, notifier Emitter) *Reconciler {
	return &Reconciler{logger: logger, gw: gw, payments: payments, notifier: notifier}
}

// HandlePayload verifies the raw webhook payload and applies it. A
// verification failure returns an error with no side effects; everything
// past verification succeeds from the gateway's point of view so it
// keeps delivering future events.
func (r *Reconciler) HandlePayload(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := r.gw.VerifyEvent(payload, signatureHeader)
	if err != nil {
		r.logger.WithError(err).Warn("webhook signature verification failed")
		return fmt.Errorf("%w: %v", types.ErrEventVerification, err)
	}

	return r.Apply(ctx, event)
}

// Apply applies one verified event. Unknown event types and unknown
// charge refs are logged and dropped, never fatal: the channel is
// forward compatible and reconciliation is eventually consistent.
func (r *Reconciler) Apply(ctx context.Context, event *types.GatewayEvent) error {
	entry := r.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"charge_ref": event.ChargeRef,
	})

	if event.Type == types.GatewayEventUnknown {
		entry.Debug("ignoring unrecognized gateway event type")
		return nil
	}

	outcome, paymentID, err := r.payments.ApplyEvent(ctx, event)
	if err != nil {
		return err
	}

	switch outcome {
	case types.EventApplied:
		entry.WithField("payment_id", paymentID).Info("gateway event applied")
		r.emit(event.Type, paymentID)
	case types.EventDuplicate:
		entry.Debug("gateway event already processed")
	case types.EventSuperseded:
		entry.WithField("payment_id", paymentID).Info("gateway event superseded by current payment state")
	case types.EventUnknownCharge:
		entry.Warn("gateway event for unknown charge, dropped")
	}

	return nil
}

func (r *Reconciler) emit(eventType types.GatewayEventType, paymentID string) {
	switch eventType {
	case types.GatewayEventSucceeded:
		r.notifier.Emit(notify.EventPaymentCompleted, map[string]any{"paymentId": paymentID})
	case types.GatewayEventRefunded:
		r.notifier.Emit(notify.EventPaymentRefunded, map[string]any{"paymentId": paymentID})
	}
}
