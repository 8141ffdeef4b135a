package handler

import (
	"context"
	"net/http"

	"github.com/connexus-ai/resumatch/internal/model"
	"github.com/connexus-ai/resumatch/internal/service"
)

// ChunkFetcher returns a document's chunks, embedded or not, used by handlers that
// need to ground an LLM prompt in the source text rather than only the
// match score (gap analysis, roadmap generation).
type ChunkFetcher interface {
	ChunksBySection(ctx context.Context, documentID string) ([]model.Chunk, error)
}

type gapAnalysisResponse struct {
	MatchResult *model.MatchResult `json:"match_result"`
	Feedback    *model.Feedback    `json:"feedback"`
}

// GapAnalysis handles POST /api/v1/analysis/gap-analysis: runs the same
// match pipeline as Match, then grounds the Feedback Generator in both
// documents' chunk text.
func GapAnalysis(matcher *service.MatcherService, feedback *service.FeedbackGeneratorService, chunks ChunkFetcher) http.HandlerFunc {
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

		resumeChunks, err := chunks.ChunksBySection(r.Context(), req.ResumeDocumentID)
		if err != nil {
			respondError(w, err)
			return
		}
		jdChunks, err := chunks.ChunksBySection(r.Context(), req.JDDocumentID)
		if err != nil {
			respondError(w, err)
			return
		}

		fb, err := feedback.Generate(r.Context(), result, resumeChunks, jdChunks)
		if err != nil {
			respondError(w, err)
			return
		}

		respondOK(w, gapAnalysisResponse{MatchResult: result, Feedback: fb})
	}
}
