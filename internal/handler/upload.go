package handler

import (
	"io"
	"net/http"

	"github.com/connexus-ai/resumatch/internal/apperr"
	"github.com/connexus-ai/resumatch/internal/model"
	"github.com/connexus-ai/resumatch/internal/service"
)

const maxUploadBytes = 25 << 20 // 25MB

// uploadMetadata is the nested "metadata" object in the upload response
// (spec §6).
type uploadMetadata struct {
	PageCount        int    `json:"page_count"`
	Language         string `json:"language"`
	ParserUsed       string `json:"parser_used"`
	ExtractionTimeMs int64  `json:"extraction_time_ms"`
}

type uploadResponse struct {
	FileID      string         `json:"file_id"`
	DocumentID  string         `json:"document_id"`
	Filename    string         `json:"filename"`
	CleanedText string         `json:"cleaned_text"`
	WordCount   int            `json:"word_count"`
	CharCount   int            `json:"char_count"`
	Metadata    uploadMetadata `json:"metadata"`
}

// Upload handles POST /api/v1/upload: a multipart file plus a file_type
// form field, delegating extraction and ingestion to DocumentService and
// returning the document's server-assigned identity once ingestion,
// embedding included, has finished within the request.
func Upload(docs *service.DocumentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			respondError(w, apperr.Validation("request body too large or malformed", err))
			return
		}

		fileType := model.FileType(r.FormValue("file_type"))
		if fileType != model.FileTypeResume && fileType != model.FileTypeJD {
			respondError(w, apperr.Validation("file_type must be \"resume\" or \"job_description\"", nil))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, apperr.Validation("multipart field \"file\" is required", err))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		if err != nil {
			respondError(w, apperr.Validation("failed to read uploaded file", err))
			return
		}
		if len(data) > maxUploadBytes {
			respondError(w, apperr.Validation("file exceeds maximum upload size", nil))
			return
		}

		result, err := docs.Upload(r.Context(), fileType, header.Filename, data)
		if err != nil {
			respondError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, uploadResponse{
			FileID:      result.FileID,
			DocumentID:  result.DocumentID,
			Filename:    result.Filename,
			CleanedText: result.CleanedText,
			WordCount:   result.WordCount,
			CharCount:   result.CharCount,
			Metadata: uploadMetadata{
				PageCount:        result.PageCount,
				Language:         result.Language,
				ParserUsed:       result.ParserUsed,
				ExtractionTimeMs: result.ExtractionTimeMs,
			},
		})
	}
}
