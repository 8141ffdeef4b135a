package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/connexus-ai/resumatch/internal/model"
	"github.com/connexus-ai/resumatch/internal/service"
)

// ChunkRepo implements service.ChunkStore and the Matching Engine's vector
// store queries (match_documents, match_documents_by_file,
// calculate_overall_similarity).
type ChunkRepo struct {
	pool *pgxpool.Pool
}

// NewChunkRepo creates a ChunkRepo.
func NewChunkRepo(pool *pgxpool.Pool) *ChunkRepo {
	return &ChunkRepo{pool: pool}
}

var _ service.ChunkStore = (*ChunkRepo)(nil)

// InsertChunks stores chunks with their embedding vectors using pgx
// batching. Chunks without an embedding (Embedding == nil) are still
// persisted so chunk_count reflects the full document, but are written
// with a NULL vector and are never returned by the similarity queries
// below.
func (r *ChunkRepo) InsertChunks(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.insertChunksTx(ctx, r.pool, chunks)
}

// InsertChunksTx is the transaction-scoped variant used by
// DocumentRepo.ReplaceDocumentChunks for idempotent re-ingestion.
func (r *ChunkRepo) InsertChunksTx(ctx context.Context, tx pgx.Tx, chunks []model.Chunk) error {
	return r.insertChunksTx(ctx, tx, chunks)
}

type batchExecer interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func (r *ChunkRepo) insertChunksTx(ctx context.Context, execer batchExecer, chunks []model.Chunk) error {
	batch := &pgx.Batch{}

	for _, c := range chunks {
		id := uuid.New().String()
		var embedding interface{}
		if c.Embedding != nil {
			embedding = pgvector.NewVector(c.Embedding)
		}

		batch.Queue(`
			INSERT INTO document_chunks (id, document_id, chunk_index, content, section_type, char_count, token_count, embedding, embedding_model, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())`,
			id, c.DocumentID, c.ChunkIndex, c.Content, string(c.SectionType), c.CharCount, c.TokenCount, embedding, c.EmbeddingModel,
		)
	}

	br := execer.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(chunks); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("repository.InsertChunks: chunk %d: %w", i, err)
		}
	}

	return nil
}

// QueryMatch is one row returned by MatchQuery.
type QueryMatch struct {
	ChunkID     string
	DocumentID  string
	SectionType model.SectionType
	Similarity  float64
}

// MatchQuery calls the match_documents stored procedure: general kNN search
// over embedded chunks, optionally scoped to a file_type and/or file_id,
// with a similarity floor. Exposed for operational/debugging use — the six
// REST operations only ever compare one resume against one JD, which goes
// through MatchDocuments instead.
func (r *ChunkRepo) MatchQuery(ctx context.Context, queryVec []float32, k int, filterFileType, filterFileID string, minSimilarity float64) ([]QueryMatch, error) {
	var fileType, fileID interface{}
	if filterFileType != "" {
		fileType = filterFileType
	}
	if filterFileID != "" {
		fileID = filterFileID
	}

	rows, err := r.pool.Query(ctx,
		`SELECT chunk_id, document_id, section_type, similarity
		FROM match_documents($1, $2, $3, $4, $5)`,
		pgvector.NewVector(queryVec), k, fileType, fileID, minSimilarity,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.MatchQuery: %w", err)
	}
	defer rows.Close()

	var matches []QueryMatch
	for rows.Next() {
		var m QueryMatch
		var sec string
		if err := rows.Scan(&m.ChunkID, &m.DocumentID, &sec, &m.Similarity); err != nil {
			return nil, fmt.Errorf("repository.MatchQuery: scan: %w", err)
		}
		m.SectionType = model.SectionType(sec)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteByDocumentID removes all chunks for a document.
func (r *ChunkRepo) DeleteByDocumentID(ctx context.Context, documentID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("repository.DeleteByDocumentID: %w", err)
	}
	return nil
}

// CountEmbedded returns how many chunks of a document carry a non-null
// embedding — the signal the Matching Engine uses to detect a
// zero-embedded-chunk document and flag InsufficientData.
func (r *ChunkRepo) CountEmbedded(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM document_chunks WHERE document_id = $1 AND embedding IS NOT NULL`,
		documentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository.CountEmbedded: %w", err)
	}
	return count, nil
}

// MatchDocuments calls the match_documents_by_file stored procedure: for
// every embedded chunk of resumeDocumentID, its topK most similar embedded
// chunks of jdDocumentID by cosine similarity. The full set of returned
// tuples is what the Matching Engine's section-scoring step (4.6 step 2)
// reduces over to find each JD chunk's best resume match.
func (r *ChunkRepo) MatchDocuments(ctx context.Context, resumeDocumentID, jdDocumentID string, topK int) ([]service.ChunkPair, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT resume_chunk_id, resume_section, jd_chunk_id, jd_section, similarity
		FROM match_documents_by_file($1, $2, $3)`,
		resumeDocumentID, jdDocumentID, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.MatchDocuments: %w", err)
	}
	defer rows.Close()

	var pairs []service.ChunkPair
	for rows.Next() {
		var p service.ChunkPair
		var resumeSection, jdSection string
		if err := rows.Scan(&p.ResumeChunkID, &resumeSection, &p.JDChunkID, &jdSection, &p.Similarity); err != nil {
			return nil, fmt.Errorf("repository.MatchDocuments: scan: %w", err)
		}
		p.ResumeSection = model.SectionType(resumeSection)
		p.JDSection = model.SectionType(jdSection)
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// OverallSimilarity calls the calculate_overall_similarity stored
// procedure: the cosine similarity between the centroid (mean) embedding of
// each document's chunks. This is reported to the client as a sanity signal
// only — it is never used to compute match_score or grade. The procedure
// itself returns 0 when either document has no embedded chunks.
func (r *ChunkRepo) OverallSimilarity(ctx context.Context, resumeDocumentID, jdDocumentID string) (float64, error) {
	var similarity float64
	err := r.pool.QueryRow(ctx,
		`SELECT calculate_overall_similarity($1, $2)`,
		resumeDocumentID, jdDocumentID,
	).Scan(&similarity)
	if err != nil {
		return 0, fmt.Errorf("repository.OverallSimilarity: %w", err)
	}
	return similarity, nil
}

// ChunksBySection returns every chunk's section and content for a
// document, embedded or not, used by the Feedback Generator and Roadmap Planner to ground
// their prompts in the document's actual text.
func (r *ChunkRepo) ChunksBySection(ctx context.Context, documentID string) ([]model.Chunk, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, section_type, char_count, token_count
		FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("repository.ChunksBySection: %w", err)
	}
	defer rows.Close()

	var chunks []model.Chunk
	for rows.Next() {
		var c model.Chunk
		var sec string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &sec, &c.CharCount, &c.TokenCount); err != nil {
			return nil, fmt.Errorf("repository.ChunksBySection: scan: %w", err)
		}
		c.SectionType = model.SectionType(sec)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
