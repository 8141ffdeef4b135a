package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/resumatch/internal/apperr"
	"github.com/connexus-ai/resumatch/internal/model"
)

// pairTopK is how many candidate JD chunks match_documents_by_file
// returns per resume chunk.
const pairTopK = 3

// maxTopMatchesPerSection caps how many chunk matches are retained per
// section in the returned MatchResult, per section_score step 2.
const maxTopMatchesPerSection = 5

// sectionWeights is the fixed weight table from the Matching Engine's
// section-scoring step, renormalized over sections actually present.
var sectionWeights = map[model.SectionType]float64{
	model.SectionRequirements:    0.45,
	model.SectionTechnical:       0.25,
	model.SectionPreferred:       0.15,
	model.SectionResponsibilities: 0.10,
	model.SectionBenefits:        0.00,
	model.SectionOther:           0.05,
}

// SimilarTechGroup is an undirected equivalence group of keywords treated as
// interchangeable when a JD keyword is absent verbatim from the résumé,
// tagged with the relationship that justifies the substitution.
type SimilarTechGroup struct {
	Members      []string
	Relationship string
}

// similarTechGroups is the static Similar-Tech Table.
var similarTechGroups = []SimilarTechGroup{
	{Members: []string{"react", "next.js", "nextjs", "remix"}, Relationship: "framework family"},
	{Members: []string{"vue", "nuxt", "nuxt.js"}, Relationship: "framework family"},
	{Members: []string{"angular", "angularjs"}, Relationship: "framework family"},
	{Members: []string{"fastapi", "flask", "django"}, Relationship: "same language ecosystem"},
	{Members: []string{"express", "koa", "fastify", "nestjs"}, Relationship: "same language ecosystem"},
	{Members: []string{"postgres", "postgresql", "mysql", "mariadb"}, Relationship: "same database family"},
	{Members: []string{"mongodb", "dynamodb", "couchbase"}, Relationship: "same database family"},
	{Members: []string{"redis", "memcached"}, Relationship: "same caching family"},
	{Members: []string{"kafka", "rabbitmq", "sqs", "pubsub"}, Relationship: "same messaging family"},
	{Members: []string{"docker", "podman"}, Relationship: "same containerization family"},
	{Members: []string{"kubernetes", "k8s", "nomad", "ecs"}, Relationship: "same orchestration family"},
	{Members: []string{"terraform", "pulumi", "cloudformation"}, Relationship: "same infrastructure-as-code family"},
	{Members: []string{"aws", "gcp", "azure"}, Relationship: "same cloud-provider family"},
	{Members: []string{"jest", "mocha", "vitest"}, Relationship: "same language ecosystem"},
	{Members: []string{"pytest", "unittest"}, Relationship: "same language ecosystem"},
	{Members: []string{"tensorflow", "pytorch", "jax"}, Relationship: "same machine-learning family"},
	{Members: []string{"graphql", "grpc"}, Relationship: "same API-paradigm family"},
	{Members: []string{"tailwind", "tailwindcss", "bootstrap", "chakra"}, Relationship: "same styling family"},
}

// ChunkPair is a single (jd_chunk, resume_chunk, similarity) tuple
// returned by match_documents_by_file's top_k lookup.
type ChunkPair struct {
	JDChunkID     string
	JDSection     model.SectionType
	ResumeChunkID string
	ResumeSection model.SectionType
	Similarity    float64
}

// MatchStore abstracts the vector store operations the Matching Engine
// needs: pairwise chunk similarity, centroid similarity, and enough chunk
// content to extract keyword sets for the Similar-Tech bonus.
type MatchStore interface {
	MatchDocuments(ctx context.Context, resumeDocumentID, jdDocumentID string, topK int) ([]ChunkPair, error)
	OverallSimilarity(ctx context.Context, resumeDocumentID, jdDocumentID string) (float64, error)
	CountEmbedded(ctx context.Context, documentID string) (int, error)
	ChunksBySection(ctx context.Context, documentID string) ([]model.Chunk, error)
}

// DocumentResolver looks up a document by its server-generated document_id,
// the only identifier the Matching Engine accepts (spec §9: document_id is
// the matching identity, file_id is a client-side handle only).
type DocumentResolver interface {
	GetDocument(ctx context.Context, documentID string) (*model.Document, error)
}

// MatcherService implements the Matching Engine (spec section 4.6): the
// seven-step pairwise-match / section-score / similar-tech / grade
// pipeline.
type MatcherService struct {
	store MatchStore
	docs  DocumentResolver
}

// NewMatcherService creates a MatcherService.
func NewMatcherService(store MatchStore, docs DocumentResolver) *MatcherService {
	return &MatcherService{store: store, docs: docs}
}

// Match runs the full matching pipeline for a résumé/JD document_id pair.
// Both ids must resolve to a document whose embedding_status is completed:
// an unknown id returns an apperr.Validation error and a document that is
// not completed returns an apperr.NotReady error (both map to 422, never a
// crash or a silent zero).
func (s *MatcherService) Match(ctx context.Context, resumeDocumentID, jdDocumentID string) (*model.MatchResult, error) {
	resumeDoc, err := s.docs.GetDocument(ctx, resumeDocumentID)
	if err != nil {
		return nil, apperr.Validation("resume_document_id not found", err)
	}
	jdDoc, err := s.docs.GetDocument(ctx, jdDocumentID)
	if err != nil {
		return nil, apperr.Validation("jd_document_id not found", err)
	}
	if resumeDoc.EmbeddingStatus != model.StatusCompleted {
		return nil, apperr.NotReady("resume document is not ready: embedding_status="+string(resumeDoc.EmbeddingStatus), nil)
	}
	if jdDoc.EmbeddingStatus != model.StatusCompleted {
		return nil, apperr.NotReady("jd document is not ready: embedding_status="+string(jdDoc.EmbeddingStatus), nil)
	}

	var resumeEmbedded, jdEmbedded int
	{
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			resumeEmbedded, err = s.store.CountEmbedded(gctx, resumeDoc.ID)
			return err
		})
		g.Go(func() (err error) {
			jdEmbedded, err = s.store.CountEmbedded(gctx, jdDoc.ID)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, apperr.Upstream("count embedded chunks failed", err)
		}
	}

	// Step 7: failure semantics — never throw on sparse data.
	if resumeEmbedded == 0 || jdEmbedded == 0 {
		return &model.MatchResult{
			ResumeDocumentID: resumeDoc.ID,
			JDDocumentID:     jdDoc.ID,
			MatchScore:       0,
			Grade:            model.GradeD,
			InsufficientData: true,
		}, nil
	}

	// Steps 1, 4 and the chunk fetches for step 5 are independent outbound
	// RPCs — fan them out concurrently (spec section 5's bounded-parallelism
	// requirement) while keeping deterministic downstream ordering.
	var pairs []ChunkPair
	var overall float64
	var resumeChunks, jdChunks []model.Chunk
	{
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			pairs, err = s.store.MatchDocuments(gctx, resumeDoc.ID, jdDoc.ID, pairTopK)
			if err != nil {
				return apperr.Upstream("vector store match_documents_by_file failed", err)
			}
			return nil
		})
		g.Go(func() (err error) {
			overall, err = s.store.OverallSimilarity(gctx, resumeDoc.ID, jdDoc.ID)
			if err != nil {
				return apperr.Upstream("calculate_overall_similarity failed", err)
			}
			return nil
		})
		g.Go(func() (err error) {
			resumeChunks, err = s.store.ChunksBySection(gctx, resumeDoc.ID)
			if err != nil {
				return apperr.Upstream("fetch resume chunks failed", err)
			}
			return nil
		})
		g.Go(func() (err error) {
			jdChunks, err = s.store.ChunksBySection(gctx, jdDoc.ID)
			if err != nil {
				return apperr.Upstream("fetch jd chunks failed", err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	// Step 2: section scoring.
	sectionScores, chunkMatches := scoreSections(pairs)

	// Step 3: apply weight table, renormalized over present sections.
	weightedSimilarity := weightedSimilarity(sectionScores)

	// Step 5: similar-tech bonus.
	bonus, techHits := similarTechBonus(resumeChunks, jdChunks)

	// Step 6: match score and grade.
	score := clampScore(100*weightedSimilarity + float64(bonus))
	grade := gradeFor(score)

	return &model.MatchResult{
		ResumeDocumentID:  resumeDoc.ID,
		JDDocumentID:      jdDoc.ID,
		MatchScore:        score,
		Grade:             grade,
		SectionScores:     sectionScores,
		ChunkMatches:      chunkMatches,
		SimilarTechBonus:  float64(bonus),
		SimilarTechHits:   techHits,
		OverallSimilarity: overall,
		InsufficientData:  false,
	}, nil
}

// scoreSections implements step 2: for each JD section present, the
// mean of each JD chunk's best resume-match similarity.
func scoreSections(pairs []ChunkPair) ([]model.SectionScore, []model.ChunkMatch) {
	type agg struct {
		sumBest float64
		chunks  int
		top     []model.ChunkMatch
	}
	bySection := make(map[model.SectionType]*agg)
	bestPerJDChunk := make(map[string]ChunkPair)

	for _, p := range pairs {
		cur, ok := bestPerJDChunk[p.JDChunkID]
		if !ok || p.Similarity > cur.Similarity {
			bestPerJDChunk[p.JDChunkID] = p
		}
	}

	for _, best := range bestPerJDChunk {
		a, ok := bySection[best.JDSection]
		if !ok {
			a = &agg{}
			bySection[best.JDSection] = a
		}
		a.sumBest += best.Similarity
		a.chunks++
		a.top = append(a.top, model.ChunkMatch{
			ResumeChunkID: best.ResumeChunkID,
			JDChunkID:     best.JDChunkID,
			Similarity:    best.Similarity,
		})
	}

	var scores []model.SectionScore
	var allMatches []model.ChunkMatch
	for section, a := range bySection {
		sort.Slice(a.top, func(i, j int) bool { return a.top[i].Similarity > a.top[j].Similarity })
		if len(a.top) > maxTopMatchesPerSection {
			a.top = a.top[:maxTopMatchesPerSection]
		}
		scores = append(scores, model.SectionScore{
			Section:   section,
			Score:     a.sumBest / float64(a.chunks),
			Weight:    sectionWeights[section],
			ChunkCount: a.chunks,
		})
		allMatches = append(allMatches, a.top...)
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Weight != scores[j].Weight {
			return scores[i].Weight > scores[j].Weight
		}
		return scores[i].Score > scores[j].Score
	})
	sort.Slice(allMatches, func(i, j int) bool { return allMatches[i].Similarity > allMatches[j].Similarity })

	return scores, allMatches
}

// weightedSimilarity implements step 3: the weight table applied to
// present sections, renormalized so weights sum to 1.
func weightedSimilarity(scores []model.SectionScore) float64 {
	var weightSum float64
	for _, s := range scores {
		weightSum += s.Weight
	}
	if weightSum == 0 {
		return 0
	}

	var total float64
	for _, s := range scores {
		total += (s.Weight / weightSum) * s.Score
	}
	return total
}

// clampScore implements step 6's clamp(..., 0, 100) rounded to int.
func clampScore(raw float64) int {
	if raw < 0 {
		raw = 0
	}
	if raw > 100 {
		raw = 100
	}
	return int(math.Round(raw))
}

// gradeFor maps a match_score to its letter grade via the fixed
// inclusive-lower-bound thresholds.
func gradeFor(score int) model.Grade {
	switch {
	case score >= 90:
		return model.GradeS
	case score >= 80:
		return model.GradeA
	case score >= 70:
		return model.GradeB
	case score >= 55:
		return model.GradeC
	default:
		return model.GradeD
	}
}

// similarTechBonus implements step 5: keyword extraction, verbatim-miss
// detection, and equivalence-group lookup against the Similar-Tech Table.
func similarTechBonus(resumeChunks, jdChunks []model.Chunk) (int, []model.SimilarTechMatch) {
	resumeKeywords := keywordSet(resumeChunks)
	jdKeywords := keywordSet(jdChunks)

	// perHitBonus is the uncapped contribution of a single similar-tech hit;
	// the aggregate bonus returned to the caller is clamped to bonusCap.
	const perHitBonus = 2.0
	const bonusCap = 10

	groupOf := make(map[string]int)
	for gi, group := range similarTechGroups {
		for _, kw := range group.Members {
			groupOf[kw] = gi
		}
	}

	var hits []model.SimilarTechMatch
	seen := make(map[string]bool)

	for jdKW := range jdKeywords {
		if resumeKeywords[jdKW] {
			continue
		}
		gi, ok := groupOf[jdKW]
		if !ok {
			continue
		}
		for resumeKW := range resumeKeywords {
			rgi, inGroup := groupOf[resumeKW]
			if !inGroup || rgi != gi || resumeKW == jdKW {
				continue
			}
			key := jdKW + "|" + resumeKW
			if seen[key] {
				continue
			}
			seen[key] = true
			hits = append(hits, model.SimilarTechMatch{
				JDKeyword:         jdKW,
				ResumeKeyword:     resumeKW,
				Relationship:      similarTechGroups[gi].Relationship,
				BonusContribution: perHitBonus,
			})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].JDKeyword < hits[j].JDKeyword })

	bonus := perHitBonus * float64(len(hits))
	if bonus > bonusCap {
		bonus = bonusCap
	}
	return int(bonus), hits
}

// stopWords are common English function words dropped by keywordSet.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "or": true, "the": true, "of": true,
	"to": true, "in": true, "on": true, "at": true, "by": true, "for": true,
	"with": true, "from": true, "as": true, "is": true, "are": true, "be": true,
	"this": true, "that": true, "will": true, "we": true, "you": true,
	"our": true, "your": true,
}

// keywordSet extracts a normalized (lowercase, trimmed) keyword set from a
// set of chunks, dropping stopWords. Short technical tokens (e.g. "go",
// "aws") are kept, since the Similar-Tech Table matches on them.
func keywordSet(chunks []model.Chunk) map[string]bool {
	set := make(map[string]bool)
	for _, c := range chunks {
		for _, w := range strings.Fields(c.Content) {
			cleaned := strings.TrimFunc(w, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '+' && r != '#'
			})
			lower := strings.ToLower(cleaned)
			if lower == "" || stopWords[lower] {
				continue
			}
			set[lower] = true
		}
	}
	return set
}
