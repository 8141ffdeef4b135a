package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/resumatch/internal/model"
	"github.com/connexus-ai/resumatch/internal/service"
)

// DocumentRepo implements service.DocumentRepository with pgx, backing the
// Vector Store's document-lifecycle operations (upsert_document,
// set_status, get_document, delete_document).
type DocumentRepo struct {
	pool *pgxpool.Pool
}

// NewDocumentRepo creates a DocumentRepo.
func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

var _ service.DocumentRepository = (*DocumentRepo)(nil)

// UpsertDocument inserts a new document row, or — when a row with the same
// id already exists — updates that row in place. Chunks are not touched
// here; ReplaceDocumentChunks replaces them.
func (r *DocumentRepo) UpsertDocument(ctx context.Context, doc *model.Document) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (
			id, file_id, filename, file_type, raw_text, cleaned_text, language,
			word_count, char_count, page_count, embedding_status, chunk_count,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			raw_text = EXCLUDED.raw_text,
			cleaned_text = EXCLUDED.cleaned_text,
			language = EXCLUDED.language,
			word_count = EXCLUDED.word_count,
			char_count = EXCLUDED.char_count,
			page_count = EXCLUDED.page_count,
			embedding_status = EXCLUDED.embedding_status,
			chunk_count = EXCLUDED.chunk_count,
			updated_at = EXCLUDED.updated_at`,
		doc.ID, doc.FileID, doc.Filename, string(doc.FileType), doc.RawText, doc.CleanedText,
		doc.Language, doc.WordCount, doc.CharCount, doc.PageCount, string(doc.EmbeddingStatus),
		doc.ChunkCount, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.UpsertDocument: %w", err)
	}
	return nil
}

// GetDocument fetches a document by its document_id.
func (r *DocumentRepo) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	doc := &model.Document{}
	var fileType, status string

	err := r.pool.QueryRow(ctx, `
		SELECT id, file_id, filename, file_type, cleaned_text, language,
			word_count, char_count, page_count, embedding_status, chunk_count,
			created_at, updated_at
		FROM documents WHERE id = $1`, id,
	).Scan(
		&doc.ID, &doc.FileID, &doc.Filename, &fileType, &doc.CleanedText, &doc.Language,
		&doc.WordCount, &doc.CharCount, &doc.PageCount, &status, &doc.ChunkCount,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.GetDocument: %w", err)
	}
	doc.FileType = model.FileType(fileType)
	doc.EmbeddingStatus = model.EmbeddingStatus(status)
	return doc, nil
}

// GetByFileID fetches the most recently created document for a client-
// visible file_id, used by the status-polling endpoint.
func (r *DocumentRepo) GetByFileID(ctx context.Context, fileID string) (*model.Document, error) {
	doc := &model.Document{}
	var fileType, status string

	err := r.pool.QueryRow(ctx, `
		SELECT id, file_id, filename, file_type, cleaned_text, language,
			word_count, char_count, page_count, embedding_status, chunk_count,
			created_at, updated_at
		FROM documents WHERE file_id = $1 ORDER BY created_at DESC LIMIT 1`, fileID,
	).Scan(
		&doc.ID, &doc.FileID, &doc.Filename, &fileType, &doc.CleanedText, &doc.Language,
		&doc.WordCount, &doc.CharCount, &doc.PageCount, &status, &doc.ChunkCount,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.GetByFileID: %w", err)
	}
	doc.FileType = model.FileType(fileType)
	doc.EmbeddingStatus = model.EmbeddingStatus(status)
	return doc, nil
}

// SetStatus updates a document's embedding_status.
func (r *DocumentRepo) SetStatus(ctx context.Context, id string, status model.EmbeddingStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET embedding_status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository.SetStatus: %w", err)
	}
	return nil
}

// UpdateChunkCount records how many chunks a document ended up with once
// ingestion completes.
func (r *DocumentRepo) UpdateChunkCount(ctx context.Context, id string, count int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET chunk_count = $1, updated_at = $2 WHERE id = $3`,
		count, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository.UpdateChunkCount: %w", err)
	}
	return nil
}

// DeleteDocument removes a document and its chunks. Deletion cascades via
// the chunks table's foreign key.
func (r *DocumentRepo) DeleteDocument(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository.DeleteDocument: %w", err)
	}
	return nil
}

// ReplaceDocumentChunks deletes any existing chunks for id and inserts
// newChunks, all within a single transaction, so idempotent re-ingestion
// never leaves a document in a mixed old/new chunk state.
func (r *DocumentRepo) ReplaceDocumentChunks(ctx context.Context, id string, insert func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository.ReplaceDocumentChunks: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("repository.ReplaceDocumentChunks: delete: %w", err)
	}

	if err := insert(ctx, tx); err != nil {
		return fmt.Errorf("repository.ReplaceDocumentChunks: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository.ReplaceDocumentChunks: commit: %w", err)
	}
	return nil
}
