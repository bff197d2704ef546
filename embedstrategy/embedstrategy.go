// Package embedstrategy implements the four embedding strategies of
// section 4.3: query, chapter, Q&A, and summary generation, each
// transforming a Chapter (or a free-text query) into one or more
// embedding records via the LLM pool.
package embedstrategy

import (
	"context"

	"github.com/ragcore/ragcore/pool"
)

// RecordKind mirrors DocumentEmbedding.embedding_kind.
type RecordKind string

const (
	RecordKindChapter RecordKind = "chapter"
	RecordKindChunk   RecordKind = "chunk"
	RecordKindQAPair  RecordKind = "qa_pair"
	RecordKindSummary RecordKind = "summary"
)

// Record is one embedding record ready for persistence: text payload,
// kind, vector, order within its chapter, and a metadata bag.
type Record struct {
	Text     string
	Kind     RecordKind
	Vector   []float32
	Order    int
	Metadata map[string]string
}

// ModelResolution carries the uniform model-resolution precedence used by
// every strategy (section 4.3: "explicit request override -> Library
// default -> global default from configuration"), applied independently to
// the embedding model and the completion model — a Q&A or summary call
// resolves a completion model for its Complete call and a separate
// embedding model for the Embed call that follows it, per section 4.3's
// "the resolved embedding and completion model names are placed in the
// request."
type ModelResolution struct {
	EmbeddingOverride       string
	EmbeddingLibraryDefault string
	EmbeddingGlobalDefault  string

	CompletionOverride       string
	CompletionLibraryDefault string
	CompletionGlobalDefault  string
}

// ResolveEmbedding returns the embedding model name the precedence chain
// selects.
func (m ModelResolution) ResolveEmbedding() string {
	return resolve(m.EmbeddingOverride, m.EmbeddingLibraryDefault, m.EmbeddingGlobalDefault)
}

// ResolveCompletion returns the completion model name the precedence chain
// selects.
func (m ModelResolution) ResolveCompletion() string {
	return resolve(m.CompletionOverride, m.CompletionLibraryDefault, m.CompletionGlobalDefault)
}

func resolve(override, libraryDefault, globalDefault string) string {
	if override != "" {
		return override
	}
	if libraryDefault != "" {
		return libraryDefault
	}
	return globalDefault
}

// ChapterMetadata is the subset of Chapter/Document attributes the
// only_metadata and full_text_metadata modes serialize.
type ChapterMetadata struct {
	Title       string
	Area        string
	Keywords    []string
	Description string
}

// Embedder is the pool capability every strategy needs: embedding a batch
// of texts under a resolved model.
type Embedder interface {
	Embed(ctx context.Context, modelName string, texts []string) ([][]float32, error)
}

// Completer is the pool capability the Q&A and Summary strategies need.
type Completer interface {
	Complete(ctx context.Context, req pool.CompletionRequest) (*pool.CompletionResponse, error)
}
