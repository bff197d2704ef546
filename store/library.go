package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ragcore/ragcore"
)

// CreateLibrary inserts a new Library, validating the weight invariant
// (w_sem + w_txt == 1.0) the caller is required to have already satisfied
// at the API boundary; this is a defense against programmer error, not a
// substitute for that validation.
func (s *Store) CreateLibrary(ctx context.Context, lib Library) (Library, error) {
	if lib.UUID == "" {
		lib.UUID = uuid.NewString()
	}
	if sum := lib.WSem + lib.WTxt; sum < 1.0-1e-6 || sum > 1.0+1e-6 {
		return Library{}, fmt.Errorf("%w: w_sem + w_txt must equal 1.0", ragcore.ErrValidation)
	}
	metaJSON, err := json.Marshal(orEmptyMap(lib.Metadata))
	if err != nil {
		return Library{}, fmt.Errorf("%w: marshalling library metadata: %v", ragcore.ErrValidation, err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO library (uuid, name, area, w_sem, w_txt, metadata_json, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id, created_at, updated_at`,
		lib.UUID, lib.Name, lib.Area, lib.WSem, lib.WTxt, metaJSON,
	)

	if err := row.Scan(&lib.ID, &lib.CreatedAt, &lib.UpdatedAt); err != nil {
		return Library{}, classifyWriteErr(err)
	}
	lib.Active = true
	return lib, nil
}

// GetLibraryByUUID fetches a Library by its external identifier.
func (s *Store) GetLibraryByUUID(ctx context.Context, externalID string) (Library, error) {
	var lib Library
	var metaJSON []byte
	row := s.pool.QueryRow(ctx, `
		SELECT id, uuid, name, area, w_sem, w_txt, metadata_json, active, created_at, updated_at
		FROM library WHERE uuid = $1`, externalID)

	if err := row.Scan(&lib.ID, &lib.UUID, &lib.Name, &lib.Area, &lib.WSem, &lib.WTxt, &metaJSON, &lib.Active, &lib.CreatedAt, &lib.UpdatedAt); err != nil {
		return Library{}, classifyWriteErr(err)
	}
	if err := json.Unmarshal(metaJSON, &lib.Metadata); err != nil {
		return Library{}, fmt.Errorf("%w: unmarshalling library metadata: %v", ragcore.ErrTransientExternal, err)
	}
	return lib, nil
}

// GetLibraryByID fetches a Library by internal id. Used by the search
// engine to resolve per-record owning-library weights when a query spans
// multiple libraries without a weight override (section 4.5's
// under-specified-relationship resolution: "the present spec chooses
// per-record owning library's weights").
func (s *Store) GetLibraryByID(ctx context.Context, id int64) (Library, error) {
	var lib Library
	var metaJSON []byte
	row := s.pool.QueryRow(ctx, `
		SELECT id, uuid, name, area, w_sem, w_txt, metadata_json, active, created_at, updated_at
		FROM library WHERE id = $1`, id)

	if err := row.Scan(&lib.ID, &lib.UUID, &lib.Name, &lib.Area, &lib.WSem, &lib.WTxt, &metaJSON, &lib.Active, &lib.CreatedAt, &lib.UpdatedAt); err != nil {
		return Library{}, classifyWriteErr(err)
	}
	if err := json.Unmarshal(metaJSON, &lib.Metadata); err != nil {
		return Library{}, fmt.Errorf("%w: unmarshalling library metadata: %v", ragcore.ErrTransientExternal, err)
	}
	return lib, nil
}

// UpdateLibraryWeights updates a Library's semantic/lexical fusion
// weights in place, enforcing the w_sem + w_txt = 1.0 invariant at the
// call site (the caller validates before calling; this is a defense
// against programmer error, matching CreateLibrary's comment).
func (s *Store) UpdateLibraryWeights(ctx context.Context, id int64, wSem, wTxt float64) error {
	if sum := wSem + wTxt; sum < 1.0-1e-6 || sum > 1.0+1e-6 {
		return fmt.Errorf("%w: w_sem + w_txt must equal 1.0", ragcore.ErrValidation)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE library SET w_sem = $2, w_txt = $3, updated_at = now() WHERE id = $1`,
		id, wSem, wTxt)
	if err != nil {
		return classifyWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: library %d", ragcore.ErrNotFound, id)
	}
	return nil
}

// DeleteLibrary soft-deletes (active=false) or hard-deletes (cascades to
// Documents, Chapters, Embeddings, and associations) a Library.
func (s *Store) DeleteLibrary(ctx context.Context, externalID string, hard bool) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if hard {
		tag, err = s.pool.Exec(ctx, `DELETE FROM library WHERE uuid = $1`, externalID)
	} else {
		tag, err = s.pool.Exec(ctx, `UPDATE library SET active = FALSE, updated_at = now() WHERE uuid = $1`, externalID)
	}
	if err != nil {
		return classifyWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: library %s", ragcore.ErrNotFound, externalID)
	}
	return nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
