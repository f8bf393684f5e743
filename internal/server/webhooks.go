package server

import (
	"io"
	"net/http"
)

// Stripe caps event payloads well under this; anything larger is not a
// legitimate webhook.
const maxWebhookBody = 1 << 20

// handleStripeWebhook receives gateway events. Verification failures are
// 400 so Stripe surfaces them; a store failure is 500 so Stripe retries
// the delivery. Everything the reconciler absorbed, including duplicates
// and unknown charges, acknowledges with 200.
func (s *Service) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Message: "unreadable payload"}})
		return
	}
	defer r.Body.Close()

	if err := s.reconciler.HandlePayload(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
