package handler

import (
	"encoding/json"
	"net/http"

	"github.com/connexus-ai/resumatch/internal/apperr"
	"github.com/connexus-ai/resumatch/internal/service"
)

type roadmapRequest struct {
	ResumeID    string `json:"resume_id"`
	JDID        string `json:"jd_id"`
	TargetWeeks int    `json:"target_weeks"`
}

// GenerateRoadmap handles POST /api/v1/roadmap/generate: matches the two
// documents, then plans an N-week curriculum from the match result plus
// both documents' chunk text. target_weeks defaults to 8 and is clamped to
// [4,12] by RoadmapPlannerService.Generate.
func GenerateRoadmap(matcher *service.MatcherService, roadmap *service.RoadmapPlannerService, chunks ChunkFetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req roadmapRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, apperr.Validation("invalid request body", err))
			return
		}
		if req.ResumeID == "" || req.JDID == "" {
			respondError(w, apperr.Validation("resume_id and jd_id are required", nil))
			return
		}

		result, err := matcher.Match(r.Context(), req.ResumeID, req.JDID)
		if err != nil {
			respondError(w, err)
			return
		}

		resumeChunks, err := chunks.ChunksBySection(r.Context(), req.ResumeID)
		if err != nil {
			respondError(w, err)
			return
		}
		jdChunks, err := chunks.ChunksBySection(r.Context(), req.JDID)
		if err != nil {
			respondError(w, err)
			return
		}

		plan, err := roadmap.Generate(r.Context(), result, resumeChunks, jdChunks, req.TargetWeeks)
		if err != nil {
			respondError(w, apperr.Internal("roadmap generation failed", err))
			return
		}

		respondOK(w, plan)
	}
}
