package handler

import (
	"encoding/json"
	"net/http"

	"github.com/connexus-ai/resumatch/internal/apperr"
	"github.com/connexus-ai/resumatch/internal/service"
)

type matchRequest struct {
	ResumeDocumentID string `json:"resume_document_id"`
	JDDocumentID     string `json:"jd_document_id"`
}

func decodeMatchRequest(r *http.Request) (matchRequest, error) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, apperr.Validation("invalid request body", err)
	}
	if req.ResumeDocumentID == "" || req.JDDocumentID == "" {
		return req, apperr.Validation("resume_document_id and jd_document_id are required", nil)
	}
	return req, nil
}

// Match handles POST /api/v1/analysis/match.
func Match(matcher *service.MatcherService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeMatchRequest(r)
		if err != nil {
			respondError(w, err)
			return
		}

		result, err := matcher.Match(r.Context(), req.ResumeDocumentID, req.JDDocumentID)
		if err != nil {
			respondError(w, err)
			return
		}

		respondOK(w, result)
	}
}
