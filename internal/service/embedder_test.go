package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/connexus-ai/resumatch/internal/model"
)

type fakeEmbedder struct {
	dims int
	err  error
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = make([]float32, f.dims)
	}
	return vecs, nil
}

type fakeChunkStore struct {
	stored []model.Chunk
}

func (f *fakeChunkStore) InsertChunks(ctx context.Context, chunks []model.Chunk) error {
	f.stored = append(f.stored, chunks...)
	return nil
}

func TestEmbedderService_Embed_BatchesRequests(t *testing.T) {
	texts := make([]string, maxBatchSize+5)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}
	svc := NewEmbedderService(&fakeEmbedder{dims: 1536}, &fakeChunkStore{})
	vectors, err := svc.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(texts))
	}
}

func TestEmbedderService_Embed_NoTexts(t *testing.T) {
	svc := NewEmbedderService(&fakeEmbedder{dims: 1536}, &fakeChunkStore{})
	if _, err := svc.Embed(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestEmbedderService_EmbedAndStore_StampsModelTag(t *testing.T) {
	store := &fakeChunkStore{}
	svc := NewEmbedderService(&fakeEmbedder{dims: 1536}, store)
	chunks := []model.Chunk{{DocumentID: "doc-1", Content: "hello"}}
	if err := svc.EmbedAndStore(context.Background(), chunks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.stored) != 1 {
		t.Fatalf("expected 1 stored chunk, got %d", len(store.stored))
	}
	if store.stored[0].EmbeddingModel == "" {
		t.Error("expected EmbeddingModel to be stamped")
	}
	if len(store.stored[0].Embedding) != 1536 {
		t.Errorf("got embedding width %d, want 1536", len(store.stored[0].Embedding))
	}
}

func TestEmbedderService_EmbedAndStore_PropagatesError(t *testing.T) {
	svc := NewEmbedderService(&fakeEmbedder{err: fmt.Errorf("boom")}, &fakeChunkStore{})
	err := svc.EmbedAndStore(context.Background(), []model.Chunk{{Content: "x"}})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
}
