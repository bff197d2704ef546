// Package store is the persistence adapter of section 4.6: it
// encapsulates every read and write against the relational/vector store
// and shields the rest of the system from wire formats and SQL.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragcore/ragcore"
)

// Store wraps a pgxpool.Pool with the schema's CRUD and search surface.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and ensures the schema exists for the given
// embedding dimensionality. The dimension is fixed for the whole
// doc_embedding vector column, so every Library shares it; there is no
// per-Library dimension or override.
func Open(ctx context.Context, dsn string, defaultEmbeddingDim int) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging store: %w", err)
	}

	s := &Store{pool: pool}
	if _, err := pool.Exec(ctx, schemaSQL(defaultEmbeddingDim)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// inTx runs fn inside a transaction, committing on success and rolling
// back on any error or panic. Mirrors the per-Chapter transaction
// boundary required by section 4.6: a failure rolls back only the work
// done inside fn.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", ragcore.ErrTransientExternal, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", ragcore.ErrTransientExternal, err)
	}
	return nil
}

// marshalMeta JSON-encodes a metadata bag, substituting an empty object
// for nil so the column's NOT NULL default is never relied upon.
func marshalMeta(m map[string]any) ([]byte, error) {
	return json.Marshal(orEmptyMap(m))
}

// serializeVector renders a float32 slice in pgvector's literal format,
// e.g. "[0.1,0.2,0.3]", for native vector-typed bind parameters.
func serializeVector(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	out := make([]byte, 0, len(v)*8)
	out = append(out, '[')
	for i, f := range v {
		if i > 0 {
			out = append(out, ',')
		}
		out = fmt.Appendf(out, "%g", f)
	}
	out = append(out, ']')
	return string(out)
}

// classifyWriteErr maps a pgx error to the taxonomy sentinel the rest of
// the system expects. pgx.ErrNoRows becomes Not-found; unique-constraint
// violations become Conflict; anything else is treated as
// transient-external since it most often reflects a connection or
// serialization problem rather than a caller mistake.
func classifyWriteErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case err == pgx.ErrNoRows:
		return fmt.Errorf("%w: %v", ragcore.ErrNotFound, err)
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", ragcore.ErrConflict, err)
	default:
		return fmt.Errorf("%w: %v", ragcore.ErrTransientExternal, err)
	}
}
