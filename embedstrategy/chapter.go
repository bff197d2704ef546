package embedstrategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/ragcore/ragcore/splitter"
)

// ChapterMode selects how a Chapter's content is mapped to embedding
// records, per section 4.3.
type ChapterMode string

const (
	ChapterModeOnlyText          ChapterMode = "only_text"
	ChapterModeOnlyMetadata      ChapterMode = "only_metadata"
	ChapterModeFullTextMetadata  ChapterMode = "full_text_metadata"
	ChapterModeSplitTextMetadata ChapterMode = "split_text_metadata"
	ChapterModeAuto              ChapterMode = "auto"
)

// ChapterStrategy embeds a Chapter's body, metadata, or both, per the
// requested mode.
type ChapterStrategy struct {
	embedder              Embedder
	chapterSplitThreshold int
}

// NewChapterStrategy builds a ChapterStrategy. chapterSplitThreshold is
// the same token count (default 2,000) the splitter uses to decide
// whether a Chapter is emitted whole; auto mode reuses it to choose
// between full_text_metadata and split_text_metadata.
func NewChapterStrategy(embedder Embedder, chapterSplitThreshold int) *ChapterStrategy {
	return &ChapterStrategy{embedder: embedder, chapterSplitThreshold: chapterSplitThreshold}
}

// Generate produces the embedding records for one Chapter under mode.
// chunks is the splitter's chunk-level decomposition of chapter, needed
// only by split_text_metadata and auto (when they resolve to it).
func (s *ChapterStrategy) Generate(ctx context.Context, chapter splitter.Chapter, chunks []splitter.Chunk, meta ChapterMetadata, mode ChapterMode, resolution ModelResolution) ([]Record, error) {
	resolved := mode
	if mode == ChapterModeAuto {
		if chapter.TokenCount > s.chapterSplitThreshold {
			resolved = ChapterModeSplitTextMetadata
		} else {
			resolved = ChapterModeFullTextMetadata
		}
	}

	model := resolution.ResolveEmbedding()

	switch resolved {
	case ChapterModeOnlyText:
		return s.embedSingle(ctx, chapter.Content, model)
	case ChapterModeOnlyMetadata:
		return s.embedSingle(ctx, serializeMetadata(meta), model)
	case ChapterModeFullTextMetadata:
		return s.embedSingle(ctx, serializeMetadata(meta)+"\n\n"+chapter.Content, model)
	case ChapterModeSplitTextMetadata:
		return s.embedSplit(ctx, chapter, chunks, meta, model)
	default:
		return nil, fmt.Errorf("embedstrategy: unknown chapter mode %q", mode)
	}
}

func (s *ChapterStrategy) embedSingle(ctx context.Context, text, model string) ([]Record, error) {
	vectors, err := s.embedder.Embed(ctx, model, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding chapter: %w", err)
	}
	return []Record{{Text: text, Kind: RecordKindChapter, Vector: vectors[0], Order: 0}}, nil
}

func (s *ChapterStrategy) embedSplit(ctx context.Context, chapter splitter.Chapter, chunks []splitter.Chunk, meta ChapterMetadata, model string) ([]Record, error) {
	texts := make([]string, 0, len(chunks)+1)
	texts = append(texts, serializeMetadata(meta))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}

	vectors, err := s.embedder.Embed(ctx, model, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding split chapter: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding split chapter: expected %d vectors, got %d", len(texts), len(vectors))
	}

	records := make([]Record, 0, len(texts))
	records = append(records, Record{Text: texts[0], Kind: RecordKindChapter, Vector: vectors[0], Order: 0,
		Metadata: map[string]string{"chapter_title": chapter.Title}})
	for i, c := range chunks {
		records = append(records, Record{
			Text:     c.Text,
			Kind:     RecordKindChunk,
			Vector:   vectors[i+1],
			Order:    c.Index,
			Metadata: map[string]string{"chapter_title": chapter.Title},
		})
	}
	return records, nil
}

// serializeMetadata renders a compact metadata string for embedding: the
// title, area, and keywords carry semantic weight for retrieval; the
// description supplies additional context when present.
func serializeMetadata(meta ChapterMetadata) string {
	var b strings.Builder
	if meta.Title != "" {
		b.WriteString(meta.Title)
		b.WriteString("\n")
	}
	if meta.Area != "" {
		b.WriteString("Area: ")
		b.WriteString(meta.Area)
		b.WriteString("\n")
	}
	if len(meta.Keywords) > 0 {
		b.WriteString("Keywords: ")
		b.WriteString(strings.Join(meta.Keywords, ", "))
		b.WriteString("\n")
	}
	if meta.Description != "" {
		b.WriteString(meta.Description)
	}
	return strings.TrimSpace(b.String())
}
