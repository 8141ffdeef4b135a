package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connexus-ai/resumatch/internal/apperr"
	"github.com/connexus-ai/resumatch/internal/model"
)

type fakeMatchStore struct {
	embeddedCount map[string]int
	pairs         []ChunkPair
	overall       float64
	resumeChunks  []model.Chunk
	jdChunks      []model.Chunk
}

func (f *fakeMatchStore) MatchDocuments(ctx context.Context, resumeDocumentID, jdDocumentID string, topK int) ([]ChunkPair, error) {
	return f.pairs, nil
}

func (f *fakeMatchStore) OverallSimilarity(ctx context.Context, resumeDocumentID, jdDocumentID string) (float64, error) {
	return f.overall, nil
}

func (f *fakeMatchStore) CountEmbedded(ctx context.Context, documentID string) (int, error) {
	return f.embeddedCount[documentID], nil
}

func (f *fakeMatchStore) ChunksBySection(ctx context.Context, documentID string) ([]model.Chunk, error) {
	if documentID == "resume-doc" {
		return f.resumeChunks, nil
	}
	return f.jdChunks, nil
}

type fakeDocResolver struct {
	byID map[string]*model.Document
}

func (f *fakeDocResolver) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	doc, ok := f.byID[documentID]
	if !ok {
		return nil, errNotFound
	}
	return doc, nil
}

var errNotFound = fmt.Errorf("document not found")

func TestMatcherService_InsufficientData(t *testing.T) {
	store := &fakeMatchStore{embeddedCount: map[string]int{"resume-doc": 0, "jd-doc": 5}}
	docs := &fakeDocResolver{byID: map[string]*model.Document{
		"resume-doc": {ID: "resume-doc", EmbeddingStatus: model.StatusCompleted},
		"jd-doc":     {ID: "jd-doc", EmbeddingStatus: model.StatusCompleted},
	}}
	svc := NewMatcherService(store, docs)

	result, err := svc.Match(context.Background(), "resume-doc", "jd-doc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.InsufficientData {
		t.Fatal("expected InsufficientData to be true")
	}
	if result.MatchScore != 0 || result.Grade != model.GradeD {
		t.Errorf("got score=%d grade=%s, want 0/D", result.MatchScore, result.Grade)
	}
}

func TestMatcherService_UnknownID_ReturnsValidationError(t *testing.T) {
	store := &fakeMatchStore{}
	docs := &fakeDocResolver{byID: map[string]*model.Document{
		"resume-doc": {ID: "resume-doc", EmbeddingStatus: model.StatusCompleted},
	}}
	svc := NewMatcherService(store, docs)

	_, err := svc.Match(context.Background(), "resume-doc", "missing-doc")
	if err == nil {
		t.Fatal("expected error for unknown jd_document_id")
	}
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("KindOf(err) = %s, want %s", apperr.KindOf(err), apperr.KindValidation)
	}
}

func TestMatcherService_NotCompleted_ReturnsNotReadyError(t *testing.T) {
	store := &fakeMatchStore{}
	docs := &fakeDocResolver{byID: map[string]*model.Document{
		"resume-doc": {ID: "resume-doc", EmbeddingStatus: model.StatusProcessing},
		"jd-doc":     {ID: "jd-doc", EmbeddingStatus: model.StatusCompleted},
	}}
	svc := NewMatcherService(store, docs)

	_, err := svc.Match(context.Background(), "resume-doc", "jd-doc")
	if err == nil {
		t.Fatal("expected error for non-completed resume document")
	}
	if apperr.KindOf(err) != apperr.KindNotReady {
		t.Errorf("KindOf(err) = %s, want %s", apperr.KindOf(err), apperr.KindNotReady)
	}
}

func TestMatcherService_ScoresAndGrades(t *testing.T) {
	store := &fakeMatchStore{
		embeddedCount: map[string]int{"resume-doc": 3, "jd-doc": 2},
		pairs: []ChunkPair{
			{JDChunkID: "jd-1", JDSection: model.SectionRequirements, ResumeChunkID: "r-1", ResumeSection: model.SectionSkills, Similarity: 0.95},
			{JDChunkID: "jd-2", JDSection: model.SectionTechnical, ResumeChunkID: "r-2", ResumeSection: model.SectionExperience, Similarity: 0.85},
		},
		overall: 0.8,
		resumeChunks: []model.Chunk{
			{Content: "Built services with go and kubernetes and postgres"},
		},
		jdChunks: []model.Chunk{
			{Content: "Requires react and fastapi and mysql experience"},
		},
	}
	docs := &fakeDocResolver{byID: map[string]*model.Document{
		"resume-doc": {ID: "resume-doc", EmbeddingStatus: model.StatusCompleted},
		"jd-doc":     {ID: "jd-doc", EmbeddingStatus: model.StatusCompleted},
	}}
	svc := NewMatcherService(store, docs)

	result, err := svc.Match(context.Background(), "resume-doc", "jd-doc")
	require.NoError(t, err)
	assert.False(t, result.InsufficientData)
	assert.Len(t, result.SectionScores, 2)
	assert.Greater(t, result.MatchScore, 0)
	assert.LessOrEqual(t, result.MatchScore, 100)
	assert.NotEmpty(t, result.SimilarTechHits, "expected a similar-tech hit for mysql~postgres")
	assert.InDelta(t, 0.8, result.OverallSimilarity, 1e-9)
}

func TestGradeFor(t *testing.T) {
	cases := []struct {
		score int
		want  model.Grade
	}{
		{95, model.GradeS},
		{90, model.GradeS},
		{85, model.GradeA},
		{80, model.GradeA},
		{75, model.GradeB},
		{70, model.GradeB},
		{60, model.GradeC},
		{55, model.GradeC},
		{40, model.GradeD},
	}
	for _, c := range cases {
		if got := gradeFor(c.score); got != c.want {
			t.Errorf("gradeFor(%d) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestClampScore(t *testing.T) {
	if got := clampScore(-5); got != 0 {
		t.Errorf("clampScore(-5) = %d, want 0", got)
	}
	if got := clampScore(150); got != 100 {
		t.Errorf("clampScore(150) = %d, want 100", got)
	}
	if got := clampScore(73.6); got != 74 {
		t.Errorf("clampScore(73.6) = %d, want 74", got)
	}
}

func TestSimilarTechBonus_CapsAtTen(t *testing.T) {
	resumeChunks := []model.Chunk{{Content: "postgres mysql mariadb flask django express koa"}}
	jdChunks := []model.Chunk{{Content: "requires fastapi and nestjs and mariadb and koa"}}
	bonus, hits := similarTechBonus(resumeChunks, jdChunks)
	if bonus > 10 {
		t.Errorf("bonus %d exceeds cap of 10", bonus)
	}
	if len(hits) == 0 {
		t.Error("expected at least one similar-tech hit")
	}
}
