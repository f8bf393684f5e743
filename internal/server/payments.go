package server

import (
	"errors"
	"net/http"

	"rentfold/internal/billing"
	"rentfold/internal/store"
	"rentfold/pkg/types"
)

// handleCreatePayment creates the payment and, for gateway methods,
// requests the charge. A gateway failure still returns the PENDING row
// so the caller can retry or poll; the 502 tells them the charge outcome
// is unknown.
func (s *Service) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var input billing.CreatePaymentInput
	if err := decodeJSON(r, &input); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Message: "invalid request body"}})
		return
	}

	payment, err := s.ledger.CreatePayment(r.Context(), input)
	if err != nil {
		if payment != nil && errors.Is(err, types.ErrGateway) {
			s.respondJSON(w, http.StatusBadGateway, map[string]any{
				"payment": payment,
				"error":   errorDetail{Kind: "gateway", Message: err.Error()},
			})
			return
		}
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, payment)
}

func (s *Service) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := s.ledger.Payment(r.Context(), r.PathValue("paymentID"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, payment)
}

func (s *Service) handleRefundPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := s.ledger.Refund(r.Context(), r.PathValue("paymentID"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, payment)
}

func (s *Service) handleSyncPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := s.ledger.SyncWithGateway(r.Context(), r.PathValue("paymentID"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, payment)
}

func (s *Service) handleListPayments(w http.ResponseWriter, r *http.Request) {
	var filter store.PaymentFilter
	if err := decoder.Decode(&filter, r.URL.Query()); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Message: "invalid filter"}})
		return
	}

	payments, err := s.ledger.Payments(r.Context(), r.PathValue("leaseID"), filter)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, payments)
}
