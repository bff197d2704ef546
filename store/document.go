package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ragcore/ragcore"
)

// CreateDocument inserts a Document in PENDING status. Enforcing the
// at-most-one-active-per-(library,title) invariant is left to the
// partial unique index; a violation surfaces as Conflict.
func (s *Store) CreateDocument(ctx context.Context, doc Document) (Document, error) {
	metaJSON, err := json.Marshal(orEmptyMap(doc.Metadata))
	if err != nil {
		return Document{}, fmt.Errorf("%w: marshalling document metadata: %v", ragcore.ErrValidation, err)
	}
	if doc.ContentType == "" {
		doc.ContentType = "generic"
	}
	doc.Status = DocumentStatusPending

	row := s.pool.QueryRow(ctx, `
		INSERT INTO document (library_id, title, content_markdown, content_type, metadata_json, active, status)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		RETURNING id, created_at, updated_at`,
		doc.LibraryID, doc.Title, doc.ContentMarkdown, doc.ContentType, metaJSON, doc.Status,
	)
	if err := row.Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, classifyWriteErr(err)
	}
	return doc, nil
}

// GetDocument fetches a Document by id.
func (s *Store) GetDocument(ctx context.Context, id int64) (Document, error) {
	var doc Document
	var metaJSON []byte
	row := s.pool.QueryRow(ctx, `
		SELECT id, library_id, title, content_markdown, content_type, metadata_json,
		       active, status, progress, message, total_tokens, created_at, updated_at
		FROM document WHERE id = $1`, id)

	if err := row.Scan(&doc.ID, &doc.LibraryID, &doc.Title, &doc.ContentMarkdown, &doc.ContentType,
		&metaJSON, &doc.Active, &doc.Status, &doc.Progress, &doc.Message, &doc.TotalTokens,
		&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, classifyWriteErr(err)
	}
	if err := json.Unmarshal(metaJSON, &doc.Metadata); err != nil {
		return Document{}, fmt.Errorf("%w: unmarshalling document metadata: %v", ragcore.ErrTransientExternal, err)
	}
	return doc, nil
}

// UpdateDocumentProgress advances the monotonic progress/message fields
// during PROCESSING, per section 5's ordering guarantee: readers must
// never observe progress decrease.
func (s *Store) UpdateDocumentProgress(ctx context.Context, id int64, progress int, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE document SET status = $2, progress = $3, message = $4, updated_at = now()
		WHERE id = $1 AND progress <= $3`,
		id, DocumentStatusProcessing, progress, message)
	if err != nil {
		return classifyWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %d not found or progress regressed", ragcore.ErrNotFound, id)
	}
	return nil
}

// FailDocument transitions a Document to FAILED with a recorded reason.
// Used for non-transient (pipeline-fatal) errors, never retried.
func (s *Store) FailDocument(ctx context.Context, id int64, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE document SET status = $2, message = $3, updated_at = now() WHERE id = $1`,
		id, DocumentStatusFailed, reason)
	if err != nil {
		return classifyWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %d", ragcore.ErrNotFound, id)
	}
	return nil
}

// FinalizeDocument sets active=true, deactivates any prior active
// Document sharing (library, title), records total_tokens, and
// transitions to COMPLETED — all inside one transaction so readers never
// observe two active Documents for the same title.
func (s *Store) FinalizeDocument(ctx context.Context, id, libraryID int64, title string, totalTokens int) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE document SET active = FALSE, updated_at = now()
			WHERE library_id = $1 AND title = $2 AND active AND id != $3`,
			libraryID, title, id); err != nil {
			return classifyWriteErr(err)
		}
		tag, err := tx.Exec(ctx, `
			UPDATE document
			SET active = TRUE, status = $2, progress = 100, total_tokens = $3, updated_at = now()
			WHERE id = $1`,
			id, DocumentStatusCompleted, totalTokens)
		if err != nil {
			return classifyWriteErr(err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: document %d", ragcore.ErrNotFound, id)
		}
		return nil
	})
}

// SetDocumentActive toggles a Document's active flag directly, per the
// `POST /documents/{id}/status?flagVigente=bool` endpoint (section 6).
// Unlike FinalizeDocument this does not deactivate siblings sharing the
// same (library, title); callers activating a Document are expected to
// have already resolved any versioning conflict through FinalizeDocument.
func (s *Store) SetDocumentActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE document SET active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return classifyWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %d", ragcore.ErrNotFound, id)
	}
	return nil
}

// DeleteDocument soft-deletes a Document (active=false); Chapters and
// Embeddings remain for audit but are excluded from active-only search.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE document SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return classifyWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %d", ragcore.ErrNotFound, id)
	}
	return nil
}
