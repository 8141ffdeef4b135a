package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/connexus-ai/resumatch/internal/apperr"
	"github.com/connexus-ai/resumatch/internal/model"
)

type fakeExtractor struct {
	result *ExtractResult
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, filename string, data []byte) (*ExtractResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeDocRepo struct {
	byFileID map[string]*model.Document
	byID     map[string]*model.Document
	deleted  []string
	statuses map[string]model.EmbeddingStatus
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{
		byFileID: map[string]*model.Document{},
		byID:     map[string]*model.Document{},
		statuses: map[string]model.EmbeddingStatus{},
	}
}

func (f *fakeDocRepo) UpsertDocument(ctx context.Context, doc *model.Document) error {
	f.byFileID[doc.FileID] = doc
	f.byID[doc.ID] = doc
	return nil
}

func (f *fakeDocRepo) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	doc, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return doc, nil
}

func (f *fakeDocRepo) GetByFileID(ctx context.Context, fileID string) (*model.Document, error) {
	doc, ok := f.byFileID[fileID]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return doc, nil
}

func (f *fakeDocRepo) SetStatus(ctx context.Context, id string, status model.EmbeddingStatus) error {
	f.statuses[id] = status
	if doc, ok := f.byID[id]; ok {
		doc.EmbeddingStatus = status
	}
	return nil
}

func (f *fakeDocRepo) UpdateChunkCount(ctx context.Context, id string, count int) error {
	if doc, ok := f.byID[id]; ok {
		doc.ChunkCount = count
	}
	return nil
}

func (f *fakeDocRepo) DeleteDocument(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.byID, id)
	return nil
}

func (f *fakeDocRepo) ReplaceDocumentChunks(ctx context.Context, id string, insert func(ctx context.Context, tx pgx.Tx) error) error {
	return insert(ctx, nil)
}

type fakeChunker struct{}

func (fakeChunker) Chunk(ctx context.Context, text string, docID string, fileType model.FileType) ([]model.Chunk, error) {
	return []model.Chunk{{DocumentID: docID, ChunkIndex: 0, Content: text, SectionType: model.SectionOther}}, nil
}

type fakeVectorizer struct{}

func (fakeVectorizer) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeInserter struct{}

func (fakeInserter) InsertChunksTx(ctx context.Context, tx pgx.Tx, chunks []model.Chunk) error {
	return nil
}

func newTestDocumentService(extractor TextExtractor, repo *fakeDocRepo) *DocumentService {
	orchestrator := NewIngestionOrchestratorService(repo, fakeChunker{}, fakeVectorizer{}, fakeInserter{})
	return NewDocumentService(extractor, repo, orchestrator)
}

func TestDocumentService_Upload_Success(t *testing.T) {
	extractor := &fakeExtractor{result: &ExtractResult{
		Text: "Experienced engineer with react and postgres skills.", PageCount: 2,
		ParserUsed: "pdfminer", ExtractionTimeMs: 120,
	}}
	repo := newFakeDocRepo()
	svc := newTestDocumentService(extractor, repo)

	result, err := svc.Upload(context.Background(), model.FileTypeResume, "resume.pdf", []byte("%PDF-1.4..."))
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if result.FileID == "" || result.DocumentID == "" {
		t.Error("expected non-empty file_id and document_id")
	}
	if result.WordCount == 0 {
		t.Error("expected non-zero word count")
	}
	if result.ParserUsed != "pdfminer" {
		t.Errorf("ParserUsed = %q, want %q", result.ParserUsed, "pdfminer")
	}

	doc, err := repo.GetDocument(context.Background(), result.DocumentID)
	if err != nil {
		t.Fatalf("expected document to be persisted: %v", err)
	}
	if doc.EmbeddingStatus != model.StatusCompleted {
		t.Errorf("EmbeddingStatus = %q, want %q", doc.EmbeddingStatus, model.StatusCompleted)
	}
}

func TestDocumentService_Upload_ExtractionFailure(t *testing.T) {
	extractor := &fakeExtractor{err: fmt.Errorf("corrupt pdf")}
	repo := newFakeDocRepo()
	svc := newTestDocumentService(extractor, repo)

	_, err := svc.Upload(context.Background(), model.FileTypeResume, "bad.pdf", []byte("junk"))
	if err == nil {
		t.Fatal("expected error for extraction failure")
	}
	if apperr.KindOf(err) != apperr.KindUpstream {
		t.Errorf("KindOf(err) = %s, want %s", apperr.KindOf(err), apperr.KindUpstream)
	}
}

func TestDocumentService_Status_ResolvesByFileID(t *testing.T) {
	repo := newFakeDocRepo()
	now := time.Now().UTC()
	repo.byFileID["file-1"] = &model.Document{
		ID: "doc-1", FileID: "file-1", Filename: "jd.txt", FileType: model.FileTypeJD,
		EmbeddingStatus: model.StatusCompleted, ChunkCount: 4, CreatedAt: now,
	}
	svc := newTestDocumentService(&fakeExtractor{}, repo)

	status, err := svc.Status(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if status.DocumentID != "doc-1" || status.ChunkCount != 4 {
		t.Errorf("got %+v, want document_id=doc-1 chunk_count=4", status)
	}
}

func TestDocumentService_Status_UnknownFileID(t *testing.T) {
	repo := newFakeDocRepo()
	svc := newTestDocumentService(&fakeExtractor{}, repo)

	_, err := svc.Status(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for unknown file_id")
	}
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("KindOf(err) = %s, want %s", apperr.KindOf(err), apperr.KindValidation)
	}
}

func TestDocumentService_Delete_Cascades(t *testing.T) {
	repo := newFakeDocRepo()
	repo.byFileID["file-1"] = &model.Document{ID: "doc-1", FileID: "file-1"}
	repo.byID["doc-1"] = repo.byFileID["file-1"]
	svc := newTestDocumentService(&fakeExtractor{}, repo)

	if err := svc.Delete(context.Background(), "file-1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "doc-1" {
		t.Errorf("deleted = %v, want [doc-1]", repo.deleted)
	}
}
