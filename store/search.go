package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ragcore/ragcore"
)

// SearchScope bounds a search query, per section 4.5.
type SearchScope struct {
	LibraryIDs []int64
	ActiveOnly bool
}

// SemanticCandidates returns the top limit records ordered by cosine
// distance ascending (nearest first) within scope, per section 4.5 step 1.
// Binds vector natively via pgvector's literal format, never a string
// blob interpreted by the application.
func (s *Store) SemanticCandidates(ctx context.Context, vector []float32, limit int, scope SearchScope) ([]ScoredEmbedding, error) {
	query := `
		SELECT e.id, e.library_id, e.document_id, e.chapter_id, e.text, e.order_in_chapter,
		       e.embedding_kind, e.metadata_json, e.vector <=> $1 AS distance
		FROM doc_embedding e
		JOIN document d ON d.id = e.document_id
		WHERE e.library_id = ANY($2)`
	if scope.ActiveOnly {
		query += " AND d.active"
	}
	query += " ORDER BY distance ASC LIMIT $3"

	rows, err := s.pool.Query(ctx, query, serializeVector(vector), scope.LibraryIDs, limit)
	if err != nil {
		return nil, classifyWriteErr(err)
	}
	defer rows.Close()
	return scanScored(rows)
}

// LexicalCandidates returns the top limit records ordered by ts_rank
// descending among records whose full_text_vec matches the web-style
// query translated by websearch_to_tsquery under the ragcore_fts
// configuration, per section 4.5 step 2 and section 4.6's custom
// text-search configuration (simple tokenization plus accent folding).
func (s *Store) LexicalCandidates(ctx context.Context, translatedQuery string, limit int, scope SearchScope) ([]ScoredEmbedding, error) {
	query := `
		SELECT e.id, e.library_id, e.document_id, e.chapter_id, e.text, e.order_in_chapter,
		       e.embedding_kind, e.metadata_json,
		       ts_rank(e.full_text_vec, websearch_to_tsquery('ragcore_fts', $1)) AS rank
		FROM doc_embedding e
		JOIN document d ON d.id = e.document_id
		WHERE e.library_id = ANY($2)
		  AND e.full_text_vec @@ websearch_to_tsquery('ragcore_fts', $1)`
	if scope.ActiveOnly {
		query += " AND d.active"
	}
	query += " ORDER BY rank DESC LIMIT $3"

	rows, err := s.pool.Query(ctx, query, translatedQuery, scope.LibraryIDs, limit)
	if err != nil {
		return nil, classifyWriteErr(err)
	}
	defer rows.Close()
	return scanScored(rows)
}

func scanScored(rows pgx.Rows) ([]ScoredEmbedding, error) {
	var out []ScoredEmbedding
	rank := 1
	for rows.Next() {
		var (
			e        DocEmbedding
			metaJSON []byte
			score    float64
		)
		if err := rows.Scan(&e.ID, &e.LibraryID, &e.DocumentID, &e.ChapterID, &e.Text, &e.OrderInChapter,
			&e.EmbeddingKind, &metaJSON, &score); err != nil {
			return nil, classifyWriteErr(err)
		}
		if err := json.Unmarshal(metaJSON, &e.Metadata); err != nil {
			return nil, fmt.Errorf("%w: unmarshalling embedding metadata: %v", ragcore.ErrTransientExternal, err)
		}
		out = append(out, ScoredEmbedding{Embedding: e, Rank: rank, Score: score})
		rank++
	}
	if err := rows.Err(); err != nil {
		return nil, classifyWriteErr(err)
	}
	return out, nil
}
