package embedstrategy

import (
	"context"
	"testing"

	"github.com/ragcore/ragcore/pool"
	"github.com/ragcore/ragcore/splitter"
)

type fakeEmbedder struct {
	lastTexts []string
	dim       int
}

func (f *fakeEmbedder) Embed(ctx context.Context, modelName string, texts []string) ([][]float32, error) {
	f.lastTexts = texts
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 0, 0}
	}
	return out, nil
}

type fakeCompleter struct {
	content string
}

func (f *fakeCompleter) Complete(ctx context.Context, req pool.CompletionRequest) (*pool.CompletionResponse, error) {
	return &pool.CompletionResponse{Content: f.content}, nil
}

func TestModelResolutionPrecedence(t *testing.T) {
	tests := []struct {
		name string
		res  ModelResolution
		want string
	}{
		{"override wins", ModelResolution{EmbeddingOverride: "override", EmbeddingLibraryDefault: "lib", EmbeddingGlobalDefault: "global"}, "override"},
		{"library default", ModelResolution{EmbeddingLibraryDefault: "lib", EmbeddingGlobalDefault: "global"}, "lib"},
		{"global fallback", ModelResolution{EmbeddingGlobalDefault: "global"}, "global"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.ResolveEmbedding(); got != tt.want {
				t.Errorf("ResolveEmbedding() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestModelResolutionCompletionIndependentOfEmbedding(t *testing.T) {
	res := ModelResolution{
		EmbeddingGlobalDefault:   "embed-model",
		CompletionGlobalDefault: "chat-model",
	}
	if got := res.ResolveEmbedding(); got != "embed-model" {
		t.Errorf("ResolveEmbedding() = %q, want %q", got, "embed-model")
	}
	if got := res.ResolveCompletion(); got != "chat-model" {
		t.Errorf("ResolveCompletion() = %q, want %q", got, "chat-model")
	}
}

func TestQueryStrategyGenerate(t *testing.T) {
	e := &fakeEmbedder{}
	s := NewQueryStrategy(e)
	vec, err := s.Generate(context.Background(), "what is a chapter", ModelResolution{EmbeddingGlobalDefault: "embed-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 {
		t.Errorf("vector len = %d, want 3", len(vec))
	}
}

func TestChapterStrategyOnlyText(t *testing.T) {
	e := &fakeEmbedder{}
	s := NewChapterStrategy(e, 2000)
	chapter := splitter.Chapter{Title: "Intro", Content: "body text", TokenCount: 100}
	records, err := s.Generate(context.Background(), chapter, nil, ChapterMetadata{}, ChapterModeOnlyText, ModelResolution{EmbeddingGlobalDefault: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Kind != RecordKindChapter {
		t.Fatalf("records = %+v, want single chapter record", records)
	}
	if e.lastTexts[0] != "body text" {
		t.Errorf("embedded text = %q, want chapter body only", e.lastTexts[0])
	}
}

func TestChapterStrategyAutoBelowThreshold(t *testing.T) {
	e := &fakeEmbedder{}
	s := NewChapterStrategy(e, 2000)
	chapter := splitter.Chapter{Title: "Intro", Content: "short", TokenCount: 100}
	records, err := s.Generate(context.Background(), chapter, nil, ChapterMetadata{Title: "Intro"}, ChapterModeAuto, ModelResolution{EmbeddingGlobalDefault: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("auto mode below threshold produced %d records, want 1 (full_text_metadata)", len(records))
	}
}

func TestChapterStrategyAutoAboveThresholdSplits(t *testing.T) {
	e := &fakeEmbedder{}
	s := NewChapterStrategy(e, 2000)
	chapter := splitter.Chapter{Title: "Long", Content: "long content", TokenCount: 5000}
	chunks := []splitter.Chunk{
		{Text: "chunk one", Index: 0, Kind: splitter.ChunkKindChunk},
		{Text: "chunk two", Index: 1, Kind: splitter.ChunkKindChunk},
	}
	records, err := s.Generate(context.Background(), chapter, chunks, ChapterMetadata{Title: "Long"}, ChapterModeAuto, ModelResolution{EmbeddingGlobalDefault: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("auto mode above threshold produced %d records, want 3 (1 chapter + 2 chunks)", len(records))
	}
	if records[0].Kind != RecordKindChapter {
		t.Errorf("first record kind = %s, want chapter", records[0].Kind)
	}
	for _, r := range records[1:] {
		if r.Kind != RecordKindChunk {
			t.Errorf("record kind = %s, want chunk", r.Kind)
		}
	}
}

func TestQAStrategyParsesJSONArray(t *testing.T) {
	c := &fakeCompleter{content: `[{"question":"What is X?","answer":"X is Y."},{"question":"What is Z?","answer":""}]`}
	e := &fakeEmbedder{}
	s := NewQAStrategy(c, e, nil)
	chapter := splitter.Chapter{Title: "T", Content: "content"}
	records, err := s.Generate(context.Background(), chapter, 2, ModelResolution{EmbeddingGlobalDefault: "m", CompletionGlobalDefault: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (empty answer discarded)", len(records))
	}
	if records[0].Metadata["question"] != "What is X?" {
		t.Errorf("question metadata = %q", records[0].Metadata["question"])
	}
}

func TestQAStrategyParsesNumberedMarkdown(t *testing.T) {
	content := "1. What is the capital?\nAnswer: Paris.\n2. What is the currency?\nAnswer: Euro.\n"
	c := &fakeCompleter{content: content}
	e := &fakeEmbedder{}
	s := NewQAStrategy(c, e, nil)
	chapter := splitter.Chapter{Title: "T", Content: "content"}
	records, err := s.Generate(context.Background(), chapter, 2, ModelResolution{EmbeddingGlobalDefault: "m", CompletionGlobalDefault: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestQAStrategyParsesColonLines(t *testing.T) {
	content := "Q: What is the capital?\nA: Paris.\nQ: What is the currency?\nA: Euro.\n"
	c := &fakeCompleter{content: content}
	e := &fakeEmbedder{}
	s := NewQAStrategy(c, e, nil)
	chapter := splitter.Chapter{Title: "T", Content: "content"}
	records, err := s.Generate(context.Background(), chapter, 2, ModelResolution{EmbeddingGlobalDefault: "m", CompletionGlobalDefault: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestQAStrategyRejectsOverlongQuestion(t *testing.T) {
	longQuestion := ""
	for i := 0; i < 2000; i++ {
		longQuestion += "x"
	}
	content := `[{"question":"` + longQuestion + `","answer":"short answer"}]`
	c := &fakeCompleter{content: content}
	e := &fakeEmbedder{}
	s := NewQAStrategy(c, e, nil)
	chapter := splitter.Chapter{Title: "T", Content: "content"}
	records, err := s.Generate(context.Background(), chapter, 1, ModelResolution{EmbeddingGlobalDefault: "m", CompletionGlobalDefault: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("got %d records, want 0 (overlong question rejected)", len(records))
	}
}

func TestSummaryStrategyTruncates(t *testing.T) {
	c := &fakeCompleter{content: "this is a very long summary that exceeds the bound"}
	e := &fakeEmbedder{}
	s := NewSummaryStrategy(c, e)
	chapter := splitter.Chapter{Title: "T", Content: "content"}
	record, err := s.Generate(context.Background(), chapter, 10, "", ModelResolution{EmbeddingGlobalDefault: "m", CompletionGlobalDefault: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if record == nil {
		t.Fatal("expected a summary record")
	}
	if len(record.Text) != 10 {
		t.Errorf("summary length = %d, want 10", len(record.Text))
	}
}

func TestSummaryStrategyTruncatesOnRuneBoundary(t *testing.T) {
	c := &fakeCompleter{content: "café normas constitucionais de 1988"}
	e := &fakeEmbedder{}
	s := NewSummaryStrategy(c, e)
	chapter := splitter.Chapter{Title: "T", Content: "content"}
	record, err := s.Generate(context.Background(), chapter, 4, "", ModelResolution{EmbeddingGlobalDefault: "m", CompletionGlobalDefault: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if record == nil {
		t.Fatal("expected a summary record")
	}
	want := "café"
	if record.Text != want {
		t.Errorf("summary = %q, want %q (rune-bounded, not byte-bounded)", record.Text, want)
	}
	if n := len([]rune(record.Text)); n != 4 {
		t.Errorf("summary rune length = %d, want 4", n)
	}
}

type failingCompleter struct{}

func (failingCompleter) Complete(ctx context.Context, req pool.CompletionRequest) (*pool.CompletionResponse, error) {
	return nil, context.DeadlineExceeded
}

func TestSummaryStrategyDegradesOnFailure(t *testing.T) {
	s := NewSummaryStrategy(failingCompleter{}, &fakeEmbedder{})
	chapter := splitter.Chapter{Title: "T", Content: "content"}
	record, err := s.Generate(context.Background(), chapter, 100, "", ModelResolution{EmbeddingGlobalDefault: "m", CompletionGlobalDefault: "m"})
	if err != nil {
		t.Fatalf("expected non-fatal degradation, got error: %v", err)
	}
	if record != nil {
		t.Error("expected nil record on completion failure")
	}
}
