package store

import "fmt"

// schemaSQL returns the DDL for the full schema, parameterized on the
// vector column's dimensionality, which is one value shared by every
// Library. It assumes the pgvector extension and a
// `ragcore_fts` text-search configuration (simple tokenization plus
// accent folding via unaccent) already exist — provisioned once by
// migration tooling external to this package.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS library (
	id            BIGSERIAL PRIMARY KEY,
	uuid          UUID NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	area          TEXT NOT NULL DEFAULT '',
	w_sem         DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	w_txt         DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	metadata_json JSONB NOT NULL DEFAULT '{}',
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS document (
	id               BIGSERIAL PRIMARY KEY,
	library_id       BIGINT NOT NULL REFERENCES library(id) ON DELETE CASCADE,
	title            TEXT NOT NULL,
	content_markdown TEXT NOT NULL DEFAULT '',
	content_type     TEXT NOT NULL DEFAULT 'generic',
	metadata_json    JSONB NOT NULL DEFAULT '{}',
	active           BOOLEAN NOT NULL DEFAULT FALSE,
	status           TEXT NOT NULL DEFAULT 'PENDING',
	progress         INT NOT NULL DEFAULT 0,
	message          TEXT NOT NULL DEFAULT '',
	total_tokens     INT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS document_active_title_idx
	ON document (library_id, title) WHERE active;
CREATE INDEX IF NOT EXISTS document_library_idx ON document (library_id);
CREATE INDEX IF NOT EXISTS document_active_idx ON document (active);

CREATE TABLE IF NOT EXISTS chapter (
	id          BIGSERIAL PRIMARY KEY,
	document_id BIGINT NOT NULL REFERENCES document(id) ON DELETE CASCADE,
	title       TEXT NOT NULL,
	content     TEXT NOT NULL,
	order_index INT NOT NULL,
	token_count INT NOT NULL DEFAULT 0,
	summary     TEXT
);

CREATE INDEX IF NOT EXISTS chapter_document_idx ON chapter (document_id);

CREATE TABLE IF NOT EXISTS doc_embedding (
	id               BIGSERIAL PRIMARY KEY,
	library_id       BIGINT NOT NULL REFERENCES library(id) ON DELETE CASCADE,
	document_id      BIGINT NOT NULL REFERENCES document(id) ON DELETE CASCADE,
	chapter_id       BIGINT REFERENCES chapter(id) ON DELETE CASCADE,
	text             TEXT NOT NULL,
	order_in_chapter INT NOT NULL DEFAULT 0,
	embedding_kind   TEXT NOT NULL,
	vector           VECTOR(%d) NOT NULL,
	metadata_json    JSONB NOT NULL DEFAULT '{}',
	full_text_vec    TSVECTOR GENERATED ALWAYS AS (
		setweight(to_tsvector('ragcore_fts', coalesce(metadata_json->>'name', '')), 'A') ||
		setweight(to_tsvector('ragcore_fts', coalesce(metadata_json->>'chapter_title', '')), 'A') ||
		setweight(to_tsvector('ragcore_fts', coalesce(metadata_json->>'description', '')), 'B') ||
		setweight(to_tsvector('ragcore_fts', coalesce(metadata_json->>'keywords', '')), 'C') ||
		setweight(to_tsvector('ragcore_fts', coalesce(metadata_json->>'area', '')), 'C') ||
		setweight(to_tsvector('ragcore_fts', text), 'C') ||
		setweight(to_tsvector('ragcore_fts', coalesce(metadata_json->>'author', '')), 'D')
	) STORED
);

CREATE INDEX IF NOT EXISTS doc_embedding_library_idx ON doc_embedding (library_id);
CREATE INDEX IF NOT EXISTS doc_embedding_document_idx ON doc_embedding (document_id);
CREATE INDEX IF NOT EXISTS doc_embedding_chapter_idx ON doc_embedding (chapter_id);
CREATE INDEX IF NOT EXISTS doc_embedding_fts_idx ON doc_embedding USING GIN (full_text_vec);
CREATE INDEX IF NOT EXISTS doc_embedding_vector_idx ON doc_embedding USING ivfflat (vector vector_cosine_ops);

CREATE TABLE IF NOT EXISTS user_library_association (
	user_id    TEXT NOT NULL,
	library_id BIGINT NOT NULL REFERENCES library(id) ON DELETE CASCADE,
	role       TEXT NOT NULL,
	PRIMARY KEY (user_id, library_id)
);
`, embeddingDim)
}
