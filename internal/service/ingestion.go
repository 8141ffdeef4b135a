package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/connexus-ai/resumatch/internal/llmclient"
	"github.com/connexus-ai/resumatch/internal/model"
	"github.com/connexus-ai/resumatch/internal/normalize"
)

var (
	ingestingMu sync.Mutex
	ingesting   = make(map[string]bool)
)

// Chunker splits normalized text into section-tagged chunks. Implemented
// by ChunkerService.
type Chunker interface {
	Chunk(ctx context.Context, text string, docID string, fileType model.FileType) ([]model.Chunk, error)
}

// ChunkVectorizer embeds chunk texts into dense vectors. Implemented by
// EmbedderService.
type ChunkVectorizer interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkTxInserter persists chunks within a caller-managed transaction, used
// to make re-ingestion's delete-then-insert atomic.
type ChunkTxInserter interface {
	InsertChunksTx(ctx context.Context, tx pgx.Tx, chunks []model.Chunk) error
}

// IngestionOrchestratorService implements the Ingestion Orchestrator (spec
// section 4.9): normalize → chunk → classify → embed → insert → set
// completed, with a failed status surfaced on any step's error.
type IngestionOrchestratorService struct {
	docs    DocumentRepository
	chunker Chunker
	vectors ChunkVectorizer
	inserts ChunkTxInserter
}

// NewIngestionOrchestratorService creates an IngestionOrchestratorService.
func NewIngestionOrchestratorService(docs DocumentRepository, chunker Chunker, vectors ChunkVectorizer, inserts ChunkTxInserter) *IngestionOrchestratorService {
	return &IngestionOrchestratorService{docs: docs, chunker: chunker, vectors: vectors, inserts: inserts}
}

// Ingest runs the full pipeline for a newly uploaded file's normalized
// text and returns the Document once embedding completes (or an error once
// status has been set to failed). One ingestion task runs per document_id
// at a time; a concurrent call for the same id is rejected rather than
// queued, matching the orchestrator's serialization requirement (spec §5).
func (s *IngestionOrchestratorService) Ingest(ctx context.Context, fileID, filename string, fileType model.FileType, rawText string) (*model.Document, error) {
	cleaned := normalize.Clean(rawText)

	now := time.Now().UTC()
	doc := &model.Document{
		ID:              uuid.New().String(),
		FileID:          fileID,
		Filename:        filename,
		FileType:        fileType,
		RawText:         rawText,
		CleanedText:     cleaned.Text,
		Language:        cleaned.Language,
		WordCount:       cleaned.WordCount,
		CharCount:       cleaned.CharCount,
		EmbeddingStatus: model.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.docs.UpsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("service.Ingest: create document: %w", err)
	}

	if err := s.run(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Reingest replaces an existing Document's chunks atomically, implementing
// the idempotent-re-ingestion guarantee: same file_id, same content in,
// same chunk_count and chunk texts out, chunks replaced rather than
// duplicated.
func (s *IngestionOrchestratorService) Reingest(ctx context.Context, doc *model.Document, rawText string) error {
	cleaned := normalize.Clean(rawText)
	doc.RawText = rawText
	doc.CleanedText = cleaned.Text
	doc.Language = cleaned.Language
	doc.WordCount = cleaned.WordCount
	doc.CharCount = cleaned.CharCount
	doc.UpdatedAt = time.Now().UTC()

	if err := s.docs.UpsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("service.Reingest: update document: %w", err)
	}
	return s.run(ctx, doc)
}

func (s *IngestionOrchestratorService) run(ctx context.Context, doc *model.Document) error {
	ingestingMu.Lock()
	if ingesting[doc.ID] {
		ingestingMu.Unlock()
		return fmt.Errorf("service.run: document %s is already being ingested", doc.ID)
	}
	ingesting[doc.ID] = true
	ingestingMu.Unlock()

	defer func() {
		ingestingMu.Lock()
		delete(ingesting, doc.ID)
		ingestingMu.Unlock()
	}()

	slog.Info("ingestion starting", "document_id", doc.ID, "file_type", doc.FileType)

	if err := s.docs.SetStatus(ctx, doc.ID, model.StatusProcessing); err != nil {
		return fmt.Errorf("service.run: set processing: %w", err)
	}

	// Step: chunk + classify (ChunkerService assigns section_type inline).
	chunks, err := s.chunker.Chunk(ctx, doc.CleanedText, doc.ID, doc.FileType)
	if err != nil {
		slog.Error("ingestion chunking failed", "document_id", doc.ID, "error", err)
		s.fail(ctx, doc.ID)
		return fmt.Errorf("service.run: chunk: %w", err)
	}
	slog.Info("ingestion chunked", "document_id", doc.ID, "chunk_count", len(chunks))

	// Step: embed.
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.vectors.Embed(ctx, texts)
	if err != nil {
		slog.Error("ingestion embedding failed", "document_id", doc.ID, "error", err)
		s.fail(ctx, doc.ID)
		return fmt.Errorf("service.run: embed: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
		chunks[i].EmbeddingModel = llmclient.EmbeddingModelTag
	}

	// Step: insert — delete-then-insert in one transaction so re-ingestion
	// never leaves a mixed old/new chunk set.
	if err := s.docs.ReplaceDocumentChunks(ctx, doc.ID, func(ctx context.Context, tx pgx.Tx) error {
		return s.inserts.InsertChunksTx(ctx, tx, chunks)
	}); err != nil {
		slog.Error("ingestion insert failed", "document_id", doc.ID, "error", err)
		s.fail(ctx, doc.ID)
		return fmt.Errorf("service.run: insert chunks: %w", err)
	}

	if err := s.docs.UpdateChunkCount(ctx, doc.ID, len(chunks)); err != nil {
		slog.Warn("ingestion failed to update chunk count", "document_id", doc.ID, "error", err)
	}
	doc.ChunkCount = len(chunks)

	if err := s.docs.SetStatus(ctx, doc.ID, model.StatusCompleted); err != nil {
		return fmt.Errorf("service.run: set completed: %w", err)
	}
	doc.EmbeddingStatus = model.StatusCompleted

	slog.Info("ingestion completed", "document_id", doc.ID, "chunk_count", len(chunks))
	return nil
}

func (s *IngestionOrchestratorService) fail(ctx context.Context, docID string) {
	if err := s.docs.SetStatus(ctx, docID, model.StatusFailed); err != nil {
		slog.Error("ingestion failed to set failed status", "document_id", docID, "error", err)
	}
}
