package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/connexus-ai/resumatch/internal/apperr"
	"github.com/connexus-ai/resumatch/internal/model"
)

// TextExtractor abstracts the PDF/DOCX parser and text-cleaning step that
// turns raw uploaded bytes into plain text. It lives outside the core
// (spec: "PDF text extraction delegates to a PDF parser and a text
// cleaner"); the core only ever sees its output.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (*ExtractResult, error)
}

// ExtractResult is what a TextExtractor hands back to the Ingestion
// Orchestrator.
type ExtractResult struct {
	Text              string
	PageCount         int
	ParserUsed        string
	ExtractionTimeMs  int64
}

// DocumentRepository defines the persistence operations the Document
// lifecycle needs: upsert, lookup by either identifier, status
// transitions, and cascade delete.
type DocumentRepository interface {
	UpsertDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	GetByFileID(ctx context.Context, fileID string) (*model.Document, error)
	SetStatus(ctx context.Context, id string, status model.EmbeddingStatus) error
	UpdateChunkCount(ctx context.Context, id string, count int) error
	DeleteDocument(ctx context.Context, id string) error
	ReplaceDocumentChunks(ctx context.Context, id string, insert func(ctx context.Context, tx pgx.Tx) error) error
}

// UploadResult is the shape returned by POST /api/v1/upload.
type UploadResult struct {
	FileID      string
	DocumentID  string
	Filename    string
	CleanedText string
	WordCount   int
	CharCount   int
	PageCount   int
	Language    string
	ParserUsed  string
	ExtractionTimeMs int64
}

// DocumentStatus is the shape returned by GET /api/v1/analysis/documents/{file_id}.
type DocumentStatus struct {
	DocumentID      string
	FileID          string
	Filename        string
	FileType        model.FileType
	EmbeddingStatus model.EmbeddingStatus
	ChunkCount      int
	CreatedAt       time.Time
}

// DocumentService handles upload orchestration and document lifecycle
// queries, delegating normalization/chunking/embedding to the Ingestion
// Orchestrator.
type DocumentService struct {
	extractor TextExtractor
	docs      DocumentRepository
	ingestion *IngestionOrchestratorService
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(extractor TextExtractor, docs DocumentRepository, ingestion *IngestionOrchestratorService) *DocumentService {
	return &DocumentService{extractor: extractor, docs: docs, ingestion: ingestion}
}

// Upload extracts text from raw file bytes, creates the Document row, and
// runs ingestion to completion before returning the document_id. There is
// no asynchronous ingestion path.
func (s *DocumentService) Upload(ctx context.Context, fileType model.FileType, filename string, data []byte) (*UploadResult, error) {
	extracted, err := s.extractor.Extract(ctx, filename, data)
	if err != nil {
		return nil, apperr.Upstream("text extraction failed", err)
	}

	fileID := uuid.New().String()
	doc, err := s.ingestion.Ingest(ctx, fileID, filename, fileType, extracted.Text)
	if err != nil {
		return nil, apperr.Internal("ingestion failed", err)
	}

	return &UploadResult{
		FileID:           doc.FileID,
		DocumentID:       doc.ID,
		Filename:         doc.Filename,
		CleanedText:      doc.CleanedText,
		WordCount:        doc.WordCount,
		CharCount:        doc.CharCount,
		PageCount:        extracted.PageCount,
		Language:         doc.Language,
		ParserUsed:       extracted.ParserUsed,
		ExtractionTimeMs: extracted.ExtractionTimeMs,
	}, nil
}

// Status resolves a document's lifecycle state by its client-visible
// file_id.
func (s *DocumentService) Status(ctx context.Context, fileID string) (*DocumentStatus, error) {
	doc, err := s.docs.GetByFileID(ctx, fileID)
	if err != nil {
		return nil, apperr.Validation("file_id not found", err)
	}
	return &DocumentStatus{
		DocumentID:      doc.ID,
		FileID:          doc.FileID,
		Filename:        doc.Filename,
		FileType:        doc.FileType,
		EmbeddingStatus: doc.EmbeddingStatus,
		ChunkCount:      doc.ChunkCount,
		CreatedAt:       doc.CreatedAt,
	}, nil
}

// Delete removes a document and, via cascade, its chunks.
func (s *DocumentService) Delete(ctx context.Context, fileID string) error {
	doc, err := s.docs.GetByFileID(ctx, fileID)
	if err != nil {
		return apperr.Validation("file_id not found", err)
	}
	if err := s.docs.DeleteDocument(ctx, doc.ID); err != nil {
		return apperr.Upstream("delete document failed", err)
	}
	return nil
}
