package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/connexus-ai/resumatch/internal/model"
	"github.com/connexus-ai/resumatch/internal/service"
)

type documentStatusResponse struct {
	DocumentID      string                `json:"document_id"`
	FileID          string                `json:"file_id"`
	Filename        string                `json:"filename"`
	FileType        model.FileType        `json:"file_type"`
	EmbeddingStatus model.EmbeddingStatus `json:"embedding_status"`
	ChunkCount      int                   `json:"chunk_count"`
	CreatedAt       time.Time             `json:"created_at"`
}

// GetDocumentStatus handles GET /api/v1/analysis/documents/{file_id}.
func GetDocumentStatus(docs *service.DocumentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileID := chi.URLParam(r, "file_id")

		status, err := docs.Status(r.Context(), fileID)
		if err != nil {
			respondError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, documentStatusResponse{
			DocumentID:      status.DocumentID,
			FileID:          status.FileID,
			Filename:        status.Filename,
			FileType:        status.FileType,
			EmbeddingStatus: status.EmbeddingStatus,
			ChunkCount:      status.ChunkCount,
			CreatedAt:       status.CreatedAt,
		})
	}
}

// DeleteDocument handles DELETE /api/v1/analysis/documents/{file_id}. The
// repository's foreign key cascades the chunk delete.
func DeleteDocument(docs *service.DocumentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileID := chi.URLParam(r, "file_id")

		if err := docs.Delete(r.Context(), fileID); err != nil {
			respondError(w, err)
			return
		}

		respondOK(w, map[string]string{"file_id": fileID, "status": "deleted"})
	}
}
