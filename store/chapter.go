package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ragcore/ragcore"
)

// createChapterTx inserts one Chapter row inside tx, returning it with its
// assigned id. Used exclusively from PersistChapter's per-Chapter
// transaction (section 4.6: "Chapters and embeddings for one Document are
// committed in per-Chapter transactions").
func createChapterTx(ctx context.Context, tx pgx.Tx, ch Chapter) (Chapter, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO chapter (document_id, title, content, order_index, token_count, summary)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		ch.DocumentID, ch.Title, ch.Content, ch.OrderIndex, ch.TokenCount, ch.Summary,
	)
	if err := row.Scan(&ch.ID); err != nil {
		return Chapter{}, classifyWriteErr(err)
	}
	return ch, nil
}

// createEmbeddingTx inserts one DocEmbedding row inside tx, using a native
// vector bind parameter (never a string blob serialized by the
// application beyond pgvector's own literal format).
func createEmbeddingTx(ctx context.Context, tx pgx.Tx, e DocEmbedding) error {
	metaJSON, err := marshalMeta(e.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshalling embedding metadata: %v", ragcore.ErrValidation, err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO doc_embedding
			(library_id, document_id, chapter_id, text, order_in_chapter, embedding_kind, vector, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.LibraryID, e.DocumentID, e.ChapterID, e.Text, e.OrderInChapter, e.EmbeddingKind,
		serializeVector(e.Vector), metaJSON,
	)
	if err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

// PersistChapter commits one Chapter and its embedding records in a single
// transaction, per section 4.6 and section 5's ordering guarantee
// (embedding records are persisted in generated order within a Chapter).
// A failure rolls back only this Chapter's rows; Chapters already
// committed for the same Document are left in place.
func (s *Store) PersistChapter(ctx context.Context, ch Chapter, embeddings []DocEmbedding) (Chapter, error) {
	var saved Chapter
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		saved, err = createChapterTx(ctx, tx, ch)
		if err != nil {
			return err
		}
		for i := range embeddings {
			embeddings[i].ChapterID = &saved.ID
			if err := createEmbeddingTx(ctx, tx, embeddings[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Chapter{}, err
	}
	return saved, nil
}

// ListChaptersByDocument returns a Document's Chapters in source order
// (section 5: "Within a Document, Chapters are persisted in source
// order.").
func (s *Store) ListChaptersByDocument(ctx context.Context, documentID int64) ([]Chapter, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, title, content, order_index, token_count, summary
		FROM chapter WHERE document_id = $1 ORDER BY order_index ASC`, documentID)
	if err != nil {
		return nil, classifyWriteErr(err)
	}
	defer rows.Close()

	var out []Chapter
	for rows.Next() {
		var ch Chapter
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Title, &ch.Content, &ch.OrderIndex, &ch.TokenCount, &ch.Summary); err != nil {
			return nil, classifyWriteErr(err)
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyWriteErr(err)
	}
	return out, nil
}

// CountEmbeddingsByDocument reports how many embedding rows already exist
// for documentID, used by the orchestrator to decide whether re-invoking
// process on a COMPLETED document is a no-op (section 8's idempotence
// law).
func (s *Store) CountEmbeddingsByDocument(ctx context.Context, documentID int64) (int, error) {
	var n int
	row := s.pool.QueryRow(ctx, `SELECT count(*) FROM doc_embedding WHERE document_id = $1`, documentID)
	if err := row.Scan(&n); err != nil {
		return 0, classifyWriteErr(err)
	}
	return n, nil
}
