package server

import (
	"fmt"
	"net/http"

	"rentfold/internal/lease"
	"rentfold/internal/utils"
	"rentfold/pkg/types"
)

const maxAddendumUpload = 10 << 20

func (s *Service) handleCreateAddendum(w http.ResponseWriter, r *http.Request) {
	var input lease.CreateAddendumInput
	if err := decodeJSON(r, &input); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Message: "invalid request body"}})
		return
	}
	input.LeaseID = r.PathValue("leaseID")

	addendum, err := s.machine.CreateAddendum(r.Context(), input)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, addendum)
}

func (s *Service) handleListAddenda(w http.ResponseWriter, r *http.Request) {
	addenda, err := s.addenda.AddendaByLease(r.Context(), r.PathValue("leaseID"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, addenda)
}

func (s *Service) handleSendAddendum(w http.ResponseWriter, r *http.Request) {
	addendumID := r.PathValue("addendumID")

	tokens, err := s.machine.SendAddendum(r.Context(), addendumID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"addendumId": addendumID,
		"status":     types.AddendumStatusSent,
		"tokens":     issuedTokens(tokens),
	})
}

func (s *Service) handleReissueAddendumToken(w http.ResponseWriter, r *http.Request) {
	addendumID := r.PathValue("addendumID")

	var input struct {
		SignerType types.SignerType `json:"signerType"`
		SignerID   string           `json:"signerId"`
	}
	if err := decodeJSON(r, &input); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Message: "invalid request body"}})
		return
	}

	token, err := s.machine.ReissueToken(r.Context(),
		types.DocumentRef{Type: types.DocumentTypeAddendum, ID: addendumID},
		types.SignerRef{Type: input.SignerType, ID: input.SignerID},
	)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, issuedTokens([]*types.SigningToken{token})[0])
}

// handleUploadAddendumDocument stores the rendered document and records
// its key and content hash on the addendum. A re-upload with a different
// hash after sending is refused.
func (s *Service) handleUploadAddendumDocument(w http.ResponseWriter, r *http.Request) {
	addendumID := r.PathValue("addendumID")

	if err := r.ParseMultipartForm(maxAddendumUpload); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Message: "invalid multipart form"}})
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "validation", Message: "document file is required"}})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("addenda/%s/%s", addendumID, utils.NanoID())
	key, hash, err := s.documents.Upload(r.Context(), key, contentType, file)
	if err != nil {
		s.respondError(w, err)
		return
	}

	if err := s.machine.AttachAddendumDocument(r.Context(), addendumID, key, hash); err != nil {
		// The orphaned object is harmless; the addendum still points at
		// its original upload.
		s.respondError(w, err)
		return
	}

	url, err := s.documents.PresignedURL(r.Context(), key)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"addendumId":  addendumID,
		"documentKey": key,
		"contentHash": hash,
		"documentUrl": url,
	})
}
