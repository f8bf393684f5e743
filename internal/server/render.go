package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"rentfold/pkg/types"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Service) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}

// respondError maps domain sentinels to a stable error kind and status.
// Anything unmapped is an internal error and the message is not leaked.
func (s *Service) respondError(w http.ResponseWriter, err error) {
	kind, status := classify(err)

	message := err.Error()
	if kind == "internal" {
		s.logger.WithError(err).Error("internal error")
		message = "internal error"
	}

	s.respondJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, types.ErrLeaseNotFound),
		errors.Is(err, types.ErrAddendumNotFound),
		errors.Is(err, types.ErrTenantNotFound),
		errors.Is(err, types.ErrTokenNotFound),
		errors.Is(err, types.ErrPaymentNotFound),
		errors.Is(err, types.ErrPaymentMethodNotFound),
		errors.Is(err, types.ErrLateFeeNotFound):
		return "not_found", http.StatusNotFound

	case errors.Is(err, types.ErrIncompleteLeaseTerms),
		errors.Is(err, types.ErrMissingPaymentMethod),
		errors.Is(err, types.ErrNoLateFeePolicy):
		return "validation", http.StatusBadRequest

	case errors.Is(err, types.ErrInvalidDocumentState),
		errors.Is(err, types.ErrTokenExpired),
		errors.Is(err, types.ErrTokenAlreadyUsed),
		errors.Is(err, types.ErrDuplicateSignature),
		errors.Is(err, types.ErrUnauthorizedSigner),
		errors.Is(err, types.ErrNoActiveLease),
		errors.Is(err, types.ErrLeaseNotActive),
		errors.Is(err, types.ErrTenantNotOnLease),
		errors.Is(err, types.ErrPaymentNotRefundable),
		errors.Is(err, types.ErrLateFeeAlreadyPaid),
		errors.Is(err, types.ErrLateFeeAlreadyWaived),
		errors.Is(err, types.ErrDocumentHashMismatch):
		return "state_conflict", http.StatusConflict

	case errors.Is(err, types.ErrGateway):
		return "gateway", http.StatusBadGateway

	case errors.Is(err, types.ErrEventVerification):
		return "verification", http.StatusBadRequest
	}

	return "internal", http.StatusInternalServerError
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
