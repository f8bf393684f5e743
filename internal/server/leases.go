package server

import (
	"net/http"
	"time"

	"rentfold/internal/billing"
	"rentfold/internal/lease"
	"rentfold/pkg/types"
)

// leaseView is the lease as callers see it: status is the derived
// effective status, never the raw stored one.
type leaseView struct {
	*types.Lease
	Status              types.LeaseStatus    `json:"status"`
	Tenants             []*types.LeaseTenant `json:"tenants"`
	RemainingSignatures int                  `json:"remainingSignatures"`
}

func (s *Service) leaseView(r *http.Request, leaseID string) (*leaseView, error) {
	row, err := s.leaseRepo.Lease(r.Context(), leaseID)
	if err != nil {
		return nil, err
	}

	tenants, err := s.leaseRepo.Tenants(r.Context(), leaseID)
	if err != nil {
		return nil, err
	}

	return &leaseView{
		Lease:               row,
		Status:              row.EffectiveStatus(time.Now()),
		Tenants:             tenants,
		RemainingSignatures: row.SignaturesRemaining,
	}, nil
}

func (s *Service) handleCreateLease(w http.ResponseWriter, r *http.Request) {
	var input lease.CreateLeaseInput
	if err := decodeJSON(r, &input); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Message: "invalid request body"}})
		return
	}

	created, err := s.machine.CreateLease(r.Context(), input)
	if err != nil {
		s.respondError(w, err)
		return
	}

	view, err := s.leaseView(r, created.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, view)
}

func (s *Service) handleGetLease(w http.ResponseWriter, r *http.Request) {
	view, err := s.leaseView(r, r.PathValue("leaseID"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, view)
}

func (s *Service) handleUpdateLeaseTerms(w http.ResponseWriter, r *http.Request) {
	leaseID := r.PathValue("leaseID")

	var input lease.UpdateTermsInput
	if err := decodeJSON(r, &input); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Message: "invalid request body"}})
		return
	}

	if err := s.machine.UpdateTerms(r.Context(), leaseID, input); err != nil {
		s.respondError(w, err)
		return
	}

	view, err := s.leaseView(r, leaseID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, view)
}

type issuedToken struct {
	Token      string           `json:"token"`
	SignerType types.SignerType `json:"signerType"`
	SignerID   string           `json:"signerId"`
	ExpiresAt  time.Time        `json:"expiresAt"`
}

func issuedTokens(tokens []*types.SigningToken) []issuedToken {
	out := make([]issuedToken, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, issuedToken{
			Token:      t.Token,
			SignerType: t.SignerType,
			SignerID:   t.SignerID,
			ExpiresAt:  t.ExpiresAt,
		})
	}
	return out
}

func (s *Service) handleSendLease(w http.ResponseWriter, r *http.Request) {
	leaseID := r.PathValue("leaseID")

	tokens, err := s.machine.SendForSignature(r.Context(), leaseID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"leaseId": leaseID,
		"status":  types.LeaseStatusPendingSignature,
		"tokens":  issuedTokens(tokens),
	})
}

func (s *Service) handleTerminateLease(w http.ResponseWriter, r *http.Request) {
	leaseID := r.PathValue("leaseID")

	var input struct {
		EffectiveDate time.Time `json:"effectiveDate"`
	}
	if err := decodeJSON(r, &input); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Message: "invalid request body"}})
		return
	}
	if input.EffectiveDate.IsZero() {
		input.EffectiveDate = time.Now()
	}

	if err := s.machine.Terminate(r.Context(), leaseID, input.EffectiveDate); err != nil {
		s.respondError(w, err)
		return
	}

	view, err := s.leaseView(r, leaseID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, view)
}

func (s *Service) handleReissueToken(w http.ResponseWriter, r *http.Request) {
	leaseID := r.PathValue("leaseID")

	var input struct {
		SignerType types.SignerType `json:"signerType"`
		SignerID   string           `json:"signerId"`
	}
	if err := decodeJSON(r, &input); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Message: "invalid request body"}})
		return
	}

	token, err := s.machine.ReissueToken(r.Context(),
		types.DocumentRef{Type: types.DocumentTypeLease, ID: leaseID},
		types.SignerRef{Type: input.SignerType, ID: input.SignerID},
	)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, issuedTokens([]*types.SigningToken{token})[0])
}

func (s *Service) handleRentSchedule(w http.ResponseWriter, r *http.Request) {
	row, err := s.leaseRepo.Lease(r.Context(), r.PathValue("leaseID"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	now := time.Now()
	due := billing.RentDueDate(now, row.RentDueDay)

	s.respondJSON(w, http.StatusOK, map[string]any{
		"leaseId":       row.ID,
		"dueDate":       due,
		"graceDeadline": billing.GraceDeadline(due, row.GracePeriodDays),
		"late":          billing.IsLate(now, row.RentDueDay, row.GracePeriodDays),
	})
}
