// Package splitter routes a converted Document to a content-type-specific
// splitter variant and decomposes it into an ordered sequence of Chapters,
// each with an ordered list of chunk texts, per section 4.2.
package splitter

import (
	"context"
	"fmt"

	"github.com/ragcore/ragcore"
)

// ContentType values match the tags carried in store.Document.ContentType.
const (
	ContentTypeGeneric       = "generic"
	ContentTypeLegalNorm     = "legal-norm"
	ContentTypeWiki          = "wiki"
	ContentTypeArticle       = "scientific-article"
	ContentTypeTechnicalDocs = "technical-documentation"
)

// Chapter is one node of the document's chapter level, in document order.
type Chapter struct {
	Title      string
	Content    string
	Index      int
	TokenCount int
}

// ChunkKind distinguishes a Chapter emitted whole (its token count is at or
// below the chapter-division threshold) from one subdivided into chunks.
type ChunkKind string

const (
	ChunkKindChapter ChunkKind = "chapter"
	ChunkKindChunk   ChunkKind = "chunk"
)

// Chunk is one chunk-level text unit within a Chapter.
type Chunk struct {
	Text  string
	Index int
	Kind  ChunkKind
}

// Splitter decomposes raw Markdown content into Chapters and, for each
// Chapter, the chunk sequence the token-budget rules demand.
type Splitter interface {
	// SplitChapters cuts the document body into Chapters.
	SplitChapters(ctx context.Context, content string) ([]Chapter, error)

	// SplitChunks applies the chunking algorithm (section 4.2) to a single
	// Chapter's content, returning its chunk-kind decomposition.
	SplitChunks(ctx context.Context, chapter Chapter) ([]Chunk, error)
}

// Router selects a Splitter implementation for a content-type tag.
type Router struct {
	counter TokenCounter
	cfg     ragcore.ChunkConfig
}

// NewRouter builds a Router. counter is typically the resolved LLM's
// tokenizer; pass nil to always use the length-based fallback estimate.
func NewRouter(counter TokenCounter, cfg ragcore.ChunkConfig) *Router {
	if counter == nil {
		counter = fallbackCounter{}
	}
	return &Router{counter: counter, cfg: cfg}
}

// Route returns the Splitter for contentType. Unknown tags fall back to the
// generic splitter, matching the routing table's intent that every
// Document receives some splitter.
func (r *Router) Route(contentType string) Splitter {
	base := chunker{counter: r.counter, cfg: r.cfg}
	switch contentType {
	case ContentTypeLegalNorm:
		return &legalNormSplitter{base}
	case ContentTypeWiki:
		return &wikiSplitter{base}
	case ContentTypeArticle, ContentTypeTechnicalDocs:
		return &articleSplitter{base}
	case ContentTypeGeneric:
		return &genericSplitter{base}
	default:
		return &genericSplitter{base}
	}
}

// Split runs the full document-to-Chapter-to-Chunk decomposition for
// content routed by contentType, applying the failure semantics of
// section 4.2: a splitter yielding zero chapters degrades to the whole
// document as one Chapter with one chunk.
func (r *Router) Split(ctx context.Context, contentType, content string) ([]Chapter, map[int][]Chunk, error) {
	s := r.Route(contentType)

	chapters, err := s.SplitChapters(ctx, content)
	if err != nil {
		return nil, nil, fmt.Errorf("splitting chapters: %w", err)
	}
	if len(chapters) == 0 {
		chapters = []Chapter{{Title: "Document", Content: content, Index: 0, TokenCount: r.counter.Count(content)}}
	}

	chunksByChapter := make(map[int][]Chunk, len(chapters))
	for i := range chapters {
		if chapters[i].TokenCount == 0 {
			chapters[i].TokenCount = r.counter.Count(chapters[i].Content)
		}

		var chunks []Chunk
		if chapters[i].TokenCount <= r.cfg.ChapterSplitThresholdTokens {
			chunks = []Chunk{{Text: chapters[i].Content, Index: 0, Kind: ChunkKindChapter}}
		} else {
			chunks, err = s.SplitChunks(ctx, chapters[i])
			if err != nil {
				return nil, nil, fmt.Errorf("splitting chunks for chapter %q: %w", chapters[i].Title, err)
			}
			if len(chunks) == 0 {
				chunks = []Chunk{{Text: chapters[i].Content, Index: 0, Kind: ChunkKindChapter}}
			}
		}
		chunksByChapter[i] = chunks
	}

	return chapters, chunksByChapter, nil
}
