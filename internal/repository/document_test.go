package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/connexus-ai/resumatch/internal/model"
)

func setupDocRepo(t *testing.T) (*DocumentRepo, func()) {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, dbURL, 5)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	migrationSQL, err := os.ReadFile("../../migrations/001_initial_schema.up.sql")
	if err != nil {
		pool.Close()
		t.Fatalf("read migration: %v", err)
	}

	// Retry because migration tests in the migrations package may
	// concurrently drop/recreate tables.
	for attempt := 0; attempt < 5; attempt++ {
		_, err = pool.Exec(ctx, string(migrationSQL))
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempt+1) * time.Second)
	}
	if err != nil {
		pool.Close()
		t.Fatalf("setup schema after retries: %v", err)
	}

	return NewDocumentRepo(pool), func() { pool.Close() }
}

func newTestDocument(fileType model.FileType) *model.Document {
	now := time.Now().UTC()
	return &model.Document{
		ID:              uuid.New().String(),
		FileID:          uuid.New().String(),
		Filename:        "resume.pdf",
		FileType:        fileType,
		RawText:         "Jane Doe\nSoftware Engineer",
		CleanedText:     "jane doe software engineer",
		Language:        "en",
		WordCount:       4,
		CharCount:       26,
		PageCount:       1,
		EmbeddingStatus: model.StatusPending,
		ChunkCount:      0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestDocumentRepo_UpsertAndGet(t *testing.T) {
	repo, cleanup := setupDocRepo(t)
	defer cleanup()

	ctx := context.Background()
	doc := newTestDocument(model.FileTypeResume)

	if err := repo.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument() error: %v", err)
	}

	got, err := repo.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument() error: %v", err)
	}
	if got.ID != doc.ID {
		t.Errorf("ID = %q, want %q", got.ID, doc.ID)
	}
	if got.FileType != model.FileTypeResume {
		t.Errorf("FileType = %q, want %q", got.FileType, model.FileTypeResume)
	}
	if got.EmbeddingStatus != model.StatusPending {
		t.Errorf("EmbeddingStatus = %q, want %q", got.EmbeddingStatus, model.StatusPending)
	}
}

func TestDocumentRepo_UpsertIsIdempotentByID(t *testing.T) {
	repo, cleanup := setupDocRepo(t)
	defer cleanup()

	ctx := context.Background()
	doc := newTestDocument(model.FileTypeJD)

	if err := repo.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument() error: %v", err)
	}

	doc.CleanedText = "updated cleaned text"
	doc.EmbeddingStatus = model.StatusCompleted
	doc.ChunkCount = 7
	if err := repo.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument() re-upsert error: %v", err)
	}

	got, err := repo.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument() error: %v", err)
	}
	if got.CleanedText != "updated cleaned text" {
		t.Errorf("CleanedText = %q, want updated text", got.CleanedText)
	}
	if got.EmbeddingStatus != model.StatusCompleted {
		t.Errorf("EmbeddingStatus = %q, want %q", got.EmbeddingStatus, model.StatusCompleted)
	}
	if got.ChunkCount != 7 {
		t.Errorf("ChunkCount = %d, want 7", got.ChunkCount)
	}
}

func TestDocumentRepo_GetByFileID_ReturnsMostRecent(t *testing.T) {
	repo, cleanup := setupDocRepo(t)
	defer cleanup()

	ctx := context.Background()

	first := newTestDocument(model.FileTypeResume)
	if err := repo.UpsertDocument(ctx, first); err != nil {
		t.Fatalf("UpsertDocument() error: %v", err)
	}

	second := newTestDocument(model.FileTypeResume)
	second.FileID = first.FileID
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	if err := repo.UpsertDocument(ctx, second); err != nil {
		t.Fatalf("UpsertDocument() error: %v", err)
	}

	got, err := repo.GetByFileID(ctx, first.FileID)
	if err != nil {
		t.Fatalf("GetByFileID() error: %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("GetByFileID returned %q, want most recent %q", got.ID, second.ID)
	}
}

func TestDocumentRepo_SetStatus(t *testing.T) {
	repo, cleanup := setupDocRepo(t)
	defer cleanup()

	ctx := context.Background()
	doc := newTestDocument(model.FileTypeResume)
	if err := repo.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument() error: %v", err)
	}

	if err := repo.SetStatus(ctx, doc.ID, model.StatusProcessing); err != nil {
		t.Fatalf("SetStatus() error: %v", err)
	}

	got, err := repo.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument() error: %v", err)
	}
	if got.EmbeddingStatus != model.StatusProcessing {
		t.Errorf("EmbeddingStatus = %q, want %q", got.EmbeddingStatus, model.StatusProcessing)
	}
}

func TestDocumentRepo_UpdateChunkCount(t *testing.T) {
	repo, cleanup := setupDocRepo(t)
	defer cleanup()

	ctx := context.Background()
	doc := newTestDocument(model.FileTypeResume)
	if err := repo.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument() error: %v", err)
	}

	if err := repo.UpdateChunkCount(ctx, doc.ID, 12); err != nil {
		t.Fatalf("UpdateChunkCount() error: %v", err)
	}

	got, err := repo.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument() error: %v", err)
	}
	if got.ChunkCount != 12 {
		t.Errorf("ChunkCount = %d, want 12", got.ChunkCount)
	}
}

func TestDocumentRepo_DeleteDocument(t *testing.T) {
	repo, cleanup := setupDocRepo(t)
	defer cleanup()

	ctx := context.Background()
	doc := newTestDocument(model.FileTypeResume)
	if err := repo.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument() error: %v", err)
	}

	if err := repo.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteDocument() error: %v", err)
	}

	if _, err := repo.GetDocument(ctx, doc.ID); err == nil {
		t.Error("expected GetDocument to error after delete")
	}
}

func TestDocumentRepo_GetDocument_NotFound(t *testing.T) {
	repo, cleanup := setupDocRepo(t)
	defer cleanup()

	_, err := repo.GetDocument(context.Background(), uuid.New().String())
	if err == nil {
		t.Fatal("expected error for non-existent document")
	}
}

func TestDocumentRepo_ReplaceDocumentChunks(t *testing.T) {
	repo, cleanup := setupDocRepo(t)
	defer cleanup()

	ctx := context.Background()
	doc := newTestDocument(model.FileTypeResume)
	if err := repo.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument() error: %v", err)
	}

	inserted := 0
	err := repo.ReplaceDocumentChunks(ctx, doc.ID, func(ctx context.Context, tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, `
			INSERT INTO document_chunks (id, document_id, chunk_index, content, section_type, char_count, token_count, embedding_model, created_at)
			VALUES ($1, $2, 0, 'first chunk', 'summary', 11, 2, '', now())`,
			uuid.New().String(), doc.ID,
		)
		if execErr == nil {
			inserted++
		}
		return execErr
	})
	if err != nil {
		t.Fatalf("ReplaceDocumentChunks() error: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("expected 1 chunk inserted, got %d", inserted)
	}
}
