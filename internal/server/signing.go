package server

import (
	"net"
	"net/http"
	"time"

	"rentfold/pkg/types"
)

const signingCookieName = "rf_signing"

// signingSession tracks when the signer first opened the document so the
// view duration recorded with the signature is server-observed, not
// client-claimed.
type signingSession struct {
	Token    string `json:"token"`
	ViewedAt int64  `json:"viewedAt"`
}

// handleGetSigning resolves a token into the document the signer is
// about to sign. Opening the page starts the signing session.
func (s *Service) handleGetSigning(w http.ResponseWriter, r *http.Request) {
	tokenValue := r.PathValue("token")

	token, err := s.issuer.Resolve(r.Context(), tokenValue)
	if err != nil {
		s.respondError(w, err)
		return
	}

	doc := token.Document()

	summary := map[string]any{
		"document":  doc,
		"signer":    token.Signer(),
		"expiresAt": token.ExpiresAt,
	}

	switch doc.Type {
	case types.DocumentTypeLease:
		lease, err := s.leaseRepo.Lease(r.Context(), doc.ID)
		if err != nil {
			s.respondError(w, err)
			return
		}
		summary["lease"] = map[string]any{
			"unitId":       lease.UnitID,
			"startDate":    lease.StartDate,
			"endDate":      lease.EndDate,
			"rentCents":    lease.RentCents,
			"depositCents": lease.DepositCents,
		}
		summary["remainingSignatures"] = lease.SignaturesRemaining
	case types.DocumentTypeAddendum:
		addendum, err := s.addenda.Addendum(r.Context(), doc.ID)
		if err != nil {
			s.respondError(w, err)
			return
		}
		summary["addendum"] = map[string]any{
			"title":         addendum.Title,
			"content":       addendum.Content,
			"effectiveDate": addendum.EffectiveDate,
		}
		summary["remainingSignatures"] = addendum.SignaturesRemaining
	}

	s.setSigningSession(w, signingSession{Token: tokenValue, ViewedAt: time.Now().Unix()})

	s.respondJSON(w, http.StatusOK, summary)
}

type submitSignatureInput struct {
	Artifact        types.SignatureArtifact `json:"artifact"`
	ConsentAgreedAt time.Time               `json:"consentAgreedAt"`
}

func (s *Service) handlePostSigning(w http.ResponseWriter, r *http.Request) {
	tokenValue := r.PathValue("token")

	var input submitSignatureInput
	if err := decodeJSON(r, &input); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Message: "invalid request body"}})
		return
	}
	if input.Artifact.Data == "" {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Message: "signature artifact is required"}})
		return
	}
	if input.ConsentAgreedAt.IsZero() {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Message: "electronic signature consent is required"}})
		return
	}

	meta := types.SignatureMetadata{
		ConsentAgreedAt: input.ConsentAgreedAt,
		ViewDurationSec: s.viewDuration(r, tokenValue),
		IPAddress:       clientIP(r),
		UserAgent:       r.UserAgent(),
	}

	result, err := s.collector.RecordSignature(r.Context(), tokenValue, input.Artifact, meta)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.clearSigningSession(w)

	s.respondJSON(w, http.StatusOK, result)
}

func (s *Service) setSigningSession(w http.ResponseWriter, session signingSession) {
	encoded, err := s.cookie.Encode(signingCookieName, session)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode signing session cookie")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     signingCookieName,
		Value:    encoded,
		Path:     "/sign",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((24 * time.Hour).Seconds()),
	})
}

func (s *Service) clearSigningSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     signingCookieName,
		Value:    "",
		Path:     "/sign",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// viewDuration reads the signing session cookie set when the document
// was opened. A missing or mismatched session records zero.
func (s *Service) viewDuration(r *http.Request, token string) int {
	cookie, err := r.Cookie(signingCookieName)
	if err != nil {
		return 0
	}

	var session signingSession
	if err := s.cookie.Decode(signingCookieName, cookie.Value, &session); err != nil {
		return 0
	}
	if session.Token != token {
		return 0
	}

	elapsed := time.Now().Unix() - session.ViewedAt
	if elapsed < 0 {
		return 0
	}
	return int(elapsed)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
