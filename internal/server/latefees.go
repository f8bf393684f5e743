package server

import "net/http"

func (s *Service) handleAssessLateFee(w http.ResponseWriter, r *http.Request) {
	var input struct {
		AmountCentsOverride *int64 `json:"amountCentsOverride"`
	}
	if err := decodeJSON(r, &input); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Message: "invalid request body"}})
		return
	}

	fee, err := s.assessor.Assess(r.Context(), r.PathValue("leaseID"), input.AmountCentsOverride)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, fee)
}

func (s *Service) handleListLateFees(w http.ResponseWriter, r *http.Request) {
	fees, err := s.assessor.LateFees(r.Context(), r.PathValue("leaseID"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, fees)
}

func (s *Service) handleWaiveLateFee(w http.ResponseWriter, r *http.Request) {
	fee, err := s.assessor.Waive(r.Context(), r.PathValue("feeID"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, fee)
}
