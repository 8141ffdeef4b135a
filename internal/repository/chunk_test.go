package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/connexus-ai/resumatch/internal/model"
)

func setupChunkRepo(t *testing.T) (*ChunkRepo, *DocumentRepo, func()) {
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

	return NewChunkRepo(pool), NewDocumentRepo(pool), func() { pool.Close() }
}

// createTestDocument creates a document chunks can reference via FK.
func createTestDocument(t *testing.T, docRepo *DocumentRepo, fileType model.FileType) *model.Document {
	t.Helper()
	now := time.Now().UTC()
	doc := &model.Document{
		ID:              uuid.New().String(),
		FileID:          uuid.New().String(),
		Filename:        "doc.pdf",
		FileType:        fileType,
		EmbeddingStatus: model.StatusProcessing,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := docRepo.UpsertDocument(context.Background(), doc); err != nil {
		t.Fatalf("UpsertDocument() error: %v", err)
	}
	return doc
}

// vecAt returns a 1536-dim vector with 1.0 at the given axis, for
// predictable cosine-similarity relationships between test vectors.
func vecAt(axis int) []float32 {
	v := make([]float32, 1536)
	v[axis] = 1.0
	return v
}

func TestChunkRepo_InsertAndCountEmbedded(t *testing.T) {
	repo, docRepo, cleanup := setupChunkRepo(t)
	defer cleanup()

	doc := createTestDocument(t, docRepo, model.FileTypeResume)
	ctx := context.Background()

	chunks := []model.Chunk{
		{DocumentID: doc.ID, ChunkIndex: 0, Content: "first", SectionType: model.SectionSummary, Embedding: vecAt(10)},
		{DocumentID: doc.ID, ChunkIndex: 1, Content: "second", SectionType: model.SectionSkills, Embedding: vecAt(20)},
		{DocumentID: doc.ID, ChunkIndex: 2, Content: "third, not yet embedded", SectionType: model.SectionOther},
	}

	if err := repo.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("InsertChunks() error: %v", err)
	}

	count, err := repo.CountEmbedded(ctx, doc.ID)
	if err != nil {
		t.Fatalf("CountEmbedded() error: %v", err)
	}
	if count != 2 {
		t.Errorf("CountEmbedded() = %d, want 2", count)
	}
}

func TestChunkRepo_InsertChunks_Empty(t *testing.T) {
	repo, _, cleanup := setupChunkRepo(t)
	defer cleanup()

	if err := repo.InsertChunks(context.Background(), nil); err != nil {
		t.Fatalf("InsertChunks(nil) should succeed: %v", err)
	}
}

func TestChunkRepo_DeleteByDocumentID(t *testing.T) {
	repo, docRepo, cleanup := setupChunkRepo(t)
	defer cleanup()

	doc := createTestDocument(t, docRepo, model.FileTypeResume)
	ctx := context.Background()

	chunks := []model.Chunk{
		{DocumentID: doc.ID, ChunkIndex: 0, Content: "delete me", SectionType: model.SectionOther, Embedding: vecAt(30)},
	}
	if err := repo.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("InsertChunks() error: %v", err)
	}

	if err := repo.DeleteByDocumentID(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteByDocumentID() error: %v", err)
	}

	count, err := repo.CountEmbedded(ctx, doc.ID)
	if err != nil {
		t.Fatalf("CountEmbedded() error: %v", err)
	}
	if count != 0 {
		t.Errorf("count after delete = %d, want 0", count)
	}
}

func TestChunkRepo_MatchDocuments(t *testing.T) {
	repo, docRepo, cleanup := setupChunkRepo(t)
	defer cleanup()

	ctx := context.Background()
	resume := createTestDocument(t, docRepo, model.FileTypeResume)
	jd := createTestDocument(t, docRepo, model.FileTypeJD)

	// Resume chunk at axis 100 should match the JD chunk at axis 100
	// exactly (similarity 1) and be far from the one at axis 500.
	if err := repo.InsertChunks(ctx, []model.Chunk{
		{DocumentID: resume.ID, ChunkIndex: 0, Content: "resume skill", SectionType: model.SectionSkills, Embedding: vecAt(100)},
	}); err != nil {
		t.Fatalf("InsertChunks(resume) error: %v", err)
	}
	if err := repo.InsertChunks(ctx, []model.Chunk{
		{DocumentID: jd.ID, ChunkIndex: 0, Content: "jd requirement", SectionType: model.SectionRequirements, Embedding: vecAt(100)},
		{DocumentID: jd.ID, ChunkIndex: 1, Content: "jd unrelated", SectionType: model.SectionBenefits, Embedding: vecAt(500)},
	}); err != nil {
		t.Fatalf("InsertChunks(jd) error: %v", err)
	}

	pairs, err := repo.MatchDocuments(ctx, resume.ID, jd.ID, 1)
	if err != nil {
		t.Fatalf("MatchDocuments() error: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("len(pairs) = %d, want 1", len(pairs))
	}
	if pairs[0].JDSection != model.SectionRequirements {
		t.Errorf("top match section = %q, want %q", pairs[0].JDSection, model.SectionRequirements)
	}
	if pairs[0].Similarity < 0.99 {
		t.Errorf("similarity = %f, want ~1.0", pairs[0].Similarity)
	}
}

func TestChunkRepo_OverallSimilarity_NoEmbeddedChunks(t *testing.T) {
	repo, docRepo, cleanup := setupChunkRepo(t)
	defer cleanup()

	ctx := context.Background()
	resume := createTestDocument(t, docRepo, model.FileTypeResume)
	jd := createTestDocument(t, docRepo, model.FileTypeJD)

	sim, err := repo.OverallSimilarity(ctx, resume.ID, jd.ID)
	if err != nil {
		t.Fatalf("OverallSimilarity() error: %v", err)
	}
	if sim != 0 {
		t.Errorf("OverallSimilarity() = %f, want 0 for documents with no embedded chunks", sim)
	}
}

func TestChunkRepo_OverallSimilarity_IdenticalCentroids(t *testing.T) {
	repo, docRepo, cleanup := setupChunkRepo(t)
	defer cleanup()

	ctx := context.Background()
	resume := createTestDocument(t, docRepo, model.FileTypeResume)
	jd := createTestDocument(t, docRepo, model.FileTypeJD)

	if err := repo.InsertChunks(ctx, []model.Chunk{
		{DocumentID: resume.ID, ChunkIndex: 0, Content: "a", SectionType: model.SectionSkills, Embedding: vecAt(200)},
	}); err != nil {
		t.Fatalf("InsertChunks(resume) error: %v", err)
	}
	if err := repo.InsertChunks(ctx, []model.Chunk{
		{DocumentID: jd.ID, ChunkIndex: 0, Content: "b", SectionType: model.SectionTechnical, Embedding: vecAt(200)},
	}); err != nil {
		t.Fatalf("InsertChunks(jd) error: %v", err)
	}

	sim, err := repo.OverallSimilarity(ctx, resume.ID, jd.ID)
	if err != nil {
		t.Fatalf("OverallSimilarity() error: %v", err)
	}
	if sim < 0.99 {
		t.Errorf("OverallSimilarity() = %f, want ~1.0 for identical centroids", sim)
	}
}

func TestChunkRepo_ChunksBySection_OrderedByIndex(t *testing.T) {
	repo, docRepo, cleanup := setupChunkRepo(t)
	defer cleanup()

	ctx := context.Background()
	doc := createTestDocument(t, docRepo, model.FileTypeResume)

	if err := repo.InsertChunks(ctx, []model.Chunk{
		{DocumentID: doc.ID, ChunkIndex: 2, Content: "third", SectionType: model.SectionOther},
		{DocumentID: doc.ID, ChunkIndex: 0, Content: "first", SectionType: model.SectionSummary},
		{DocumentID: doc.ID, ChunkIndex: 1, Content: "second", SectionType: model.SectionExperience},
	}); err != nil {
		t.Fatalf("InsertChunks() error: %v", err)
	}

	chunks, err := repo.ChunksBySection(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ChunksBySection() error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunks[%d].ChunkIndex = %d, want %d", i, c.ChunkIndex, i)
		}
	}
}

func TestChunkRepo_MatchQuery(t *testing.T) {
	repo, docRepo, cleanup := setupChunkRepo(t)
	defer cleanup()

	ctx := context.Background()
	resume := createTestDocument(t, docRepo, model.FileTypeResume)

	if err := repo.InsertChunks(ctx, []model.Chunk{
		{DocumentID: resume.ID, ChunkIndex: 0, Content: "python engineer", SectionType: model.SectionSkills, Embedding: vecAt(700)},
	}); err != nil {
		t.Fatalf("InsertChunks() error: %v", err)
	}

	matches, err := repo.MatchQuery(ctx, vecAt(700), 5, string(model.FileTypeResume), "", 0.9)
	if err != nil {
		t.Fatalf("MatchQuery() error: %v", err)
	}

	found := false
	for _, m := range matches {
		if m.DocumentID == resume.ID {
			found = true
		}
	}
	if !found {
		t.Error("expected MatchQuery to find the inserted resume chunk")
	}
}
