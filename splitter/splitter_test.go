package splitter

import (
	"context"
	"strings"
	"testing"

	"github.com/ragcore/ragcore"
)

func testConfig() ragcore.ChunkConfig {
	return ragcore.DefaultConfig().Chunk
}

func TestRouteUnknownFallsBackToGeneric(t *testing.T) {
	r := NewRouter(nil, testConfig())
	s := r.Route("does-not-exist")
	if _, ok := s.(*genericSplitter); !ok {
		t.Errorf("Route(unknown) = %T, want *genericSplitter", s)
	}
}

func TestGenericSplitterCutsOnSubheadings(t *testing.T) {
	content := "# Title\n\nintro text\n\n## First\n\nbody one\n\n## Second\n\nbody two\n"
	s := &genericSplitter{chunker{counter: fallbackCounter{}, cfg: testConfig()}}
	chapters, err := s.SplitChapters(context.Background(), content)
	if err != nil {
		t.Fatal(err)
	}
	if len(chapters) != 3 {
		t.Fatalf("got %d chapters, want 3 (intro + First + Second)", len(chapters))
	}
	if chapters[1].Title != "First" || chapters[2].Title != "Second" {
		t.Errorf("titles = %q, %q", chapters[1].Title, chapters[2].Title)
	}
}

func TestWikiSplitterOnlyCutsTopLevel(t *testing.T) {
	content := "# Chapter One\n\n## sub heading kept inline\n\nbody\n\n# Chapter Two\n\nmore body\n"
	s := &wikiSplitter{chunker{counter: fallbackCounter{}, cfg: testConfig()}}
	chapters, err := s.SplitChapters(context.Background(), content)
	if err != nil {
		t.Fatal(err)
	}
	if len(chapters) != 2 {
		t.Fatalf("got %d chapters, want 2", len(chapters))
	}
	if !strings.Contains(chapters[0].Content, "sub heading kept inline") {
		t.Errorf("expected subheading to remain inside chapter content, got %q", chapters[0].Content)
	}
}

func TestLegalNormSplitterCutsOnArticleMarkers(t *testing.T) {
	content := "Título I\n\npreamble\n\nArt. 1\n\nfirst article body\n\nArt. 2\n\nsecond article body\n"
	s := &legalNormSplitter{chunker{counter: fallbackCounter{}, cfg: testConfig()}}
	chapters, err := s.SplitChapters(context.Background(), content)
	if err != nil {
		t.Fatal(err)
	}
	if len(chapters) != 3 {
		t.Fatalf("got %d chapters, want 3 (Título I, Art. 1, Art. 2)", len(chapters))
	}
}

func TestFailureSemanticsYieldSingleChapter(t *testing.T) {
	r := NewRouter(nil, testConfig())
	unstructured := "just a paragraph with no headings or article markers at all."
	chapters, chunks, err := r.Split(context.Background(), ContentTypeLegalNorm, unstructured)
	if err != nil {
		t.Fatal(err)
	}
	if len(chapters) != 1 {
		t.Fatalf("unstructured input produced %d chapters, want 1 (whole document as single chapter)", len(chapters))
	}
	if chapters[0].Content != unstructured {
		t.Errorf("chapter content = %q, want full document body", chapters[0].Content)
	}
	_ = chunks
}

func TestSplitEmitsChapterKindBelowThreshold(t *testing.T) {
	cfg := testConfig()
	r := NewRouter(nil, cfg)
	short := "# Doc\n\na short chapter well under the split threshold.\n"
	_, chunksByChapter, err := r.Split(context.Background(), ContentTypeGeneric, short)
	if err != nil {
		t.Fatal(err)
	}
	chunks := chunksByChapter[0]
	if len(chunks) != 1 || chunks[0].Kind != ChunkKindChapter {
		t.Errorf("chunks = %+v, want single chapter-kind record", chunks)
	}
}

func TestSplitSubdividesAboveThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.ChapterSplitThresholdTokens = 10
	cfg.ChunkIdealTokens = 5
	cfg.ChunkMinTokens = 1
	cfg.ChunkMaxTokens = 20
	r := NewRouter(nil, cfg)

	long := "# Doc\n\n" + strings.Repeat("word ", 200)
	_, chunksByChapter, err := r.Split(context.Background(), ContentTypeGeneric, long)
	if err != nil {
		t.Fatal(err)
	}
	chunks := chunksByChapter[0]
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunk records for long chapter, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.Kind != ChunkKindChunk {
			t.Errorf("chunk kind = %s, want chunk", c.Kind)
		}
	}
}

func TestMergeUndersizedBlocks(t *testing.T) {
	cfg := testConfig()
	c := chunker{counter: fallbackCounter{}, cfg: cfg}
	blocks := []string{"a", "b", strings.Repeat("x", 5000)}
	merged := c.mergeUndersized(blocks)
	if len(merged) == 0 {
		t.Fatal("expected at least one merged block")
	}
	if !strings.HasPrefix(merged[0], "a") {
		t.Errorf("expected first merged block to start with undersized %q, got %q", "a", merged[0][:min(10, len(merged[0]))])
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
