package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ragcore/ragcore"
	"github.com/ragcore/ragcore/embedstrategy"
	"github.com/ragcore/ragcore/store"
)

type fakeCandidates struct {
	semantic []store.ScoredEmbedding
	lexical  []store.ScoredEmbedding
	lastSem  []float32
	lastLex  string
}

func (f *fakeCandidates) SemanticCandidates(ctx context.Context, vector []float32, limit int, scope store.SearchScope) ([]store.ScoredEmbedding, error) {
	f.lastSem = vector
	return f.semantic, nil
}

func (f *fakeCandidates) LexicalCandidates(ctx context.Context, translatedQuery string, limit int, scope store.SearchScope) ([]store.ScoredEmbedding, error) {
	f.lastLex = translatedQuery
	return f.lexical, nil
}

type fakeLibraries struct {
	weights map[int64][2]float64
}

func (f *fakeLibraries) GetLibraryByID(ctx context.Context, id int64) (store.Library, error) {
	w, ok := f.weights[id]
	if !ok {
		return store.Library{}, errors.New("no such library")
	}
	return store.Library{ID: id, WSem: w[0], WTxt: w[1]}, nil
}

type fakeQueryEmbedder struct{}

func (fakeQueryEmbedder) Generate(ctx context.Context, query string, resolution embedstrategy.ModelResolution) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func emb(id int64, libID int64) store.DocEmbedding {
	return store.DocEmbedding{ID: id, LibraryID: libID}
}

func TestValidateQueryRejectsShortAndLong(t *testing.T) {
	if _, err := ValidateQuery("a"); !errors.Is(err, ragcore.ErrValidation) {
		t.Errorf("short query: err = %v, want ErrValidation", err)
	}
	long := strings.Repeat("x", 501)
	if _, err := ValidateQuery(long); !errors.Is(err, ragcore.ErrValidation) {
		t.Errorf("long query: err = %v, want ErrValidation", err)
	}
}

func TestValidateQueryRejectsReservedTokens(t *testing.T) {
	for _, q := range []string{"cats AND dogs", "cats OR dogs", "NOT cats"} {
		if _, err := ValidateQuery(q); !errors.Is(err, ragcore.ErrValidation) {
			t.Errorf("query %q: err = %v, want ErrValidation", q, err)
		}
	}
}

func TestValidateQueryAllowsWebSearchSyntax(t *testing.T) {
	for _, q := range []string{`"exact phrase"`, "-excluded term", "plain terms here"} {
		if _, err := ValidateQuery(q); err != nil {
			t.Errorf("query %q: unexpected error %v", q, err)
		}
	}
}

func TestFoldAccentsStripsCombiningMarks(t *testing.T) {
	got := foldAccents("café")
	if got != "cafe" {
		t.Errorf("foldAccents(café) = %q, want cafe", got)
	}
}

func TestSearchRequiresLibraryIDs(t *testing.T) {
	e := New(&fakeCandidates{}, &fakeLibraries{}, fakeQueryEmbedder{})
	_, err := e.Search(context.Background(), Request{Query: "hello world"})
	if !errors.Is(err, ragcore.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestSearchRejectsPartialWeightOverride(t *testing.T) {
	wSem := 0.5
	e := New(&fakeCandidates{}, &fakeLibraries{}, fakeQueryEmbedder{})
	_, err := e.Search(context.Background(), Request{Query: "hello world", LibraryIDs: []int64{1}, WSem: &wSem})
	if !errors.Is(err, ragcore.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestSearchHybridFusesAndResolvesLibraryWeights(t *testing.T) {
	cands := &fakeCandidates{
		semantic: []store.ScoredEmbedding{
			{Embedding: emb(1, 100), Rank: 1},
			{Embedding: emb(2, 100), Rank: 2},
		},
		lexical: []store.ScoredEmbedding{
			{Embedding: emb(2, 100), Rank: 1},
			{Embedding: emb(3, 100), Rank: 2},
		},
	}
	libs := &fakeLibraries{weights: map[int64][2]float64{100: {0.7, 0.3}}}
	e := New(cands, libs, fakeQueryEmbedder{})

	results, err := e.Search(context.Background(), Request{
		Query:      "find something useful",
		LibraryIDs: []int64{100},
		Limit:      10,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	// id 2 appears in both candidate sets (rank 2 semantic, rank 1 lexical),
	// so its combined score beats id 1's single top semantic rank and it
	// should come out on top of the fused ranking.
	if results[0].Embedding.ID != 2 {
		t.Errorf("top result id = %d, want 2", results[0].Embedding.ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Final < results[i].Final {
			t.Errorf("results not sorted descending by Final at index %d", i)
		}
	}
}

func TestSearchSemanticOnlySkipsLexicalCandidates(t *testing.T) {
	cands := &fakeCandidates{
		semantic: []store.ScoredEmbedding{{Embedding: emb(1, 100), Rank: 1}},
		lexical:  []store.ScoredEmbedding{{Embedding: emb(9, 100), Rank: 1}},
	}
	libs := &fakeLibraries{weights: map[int64][2]float64{100: {1, 0}}}
	e := New(cands, libs, fakeQueryEmbedder{})

	results, err := e.Search(context.Background(), Request{
		Query:      "find something useful",
		LibraryIDs: []int64{100},
		Mode:       ModeSemantic,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Embedding.ID != 1 {
		t.Fatalf("results = %+v, want only the semantic candidate", results)
	}
}

func TestSearchWeightOverrideWins(t *testing.T) {
	cands := &fakeCandidates{
		semantic: []store.ScoredEmbedding{{Embedding: emb(1, 100), Rank: 1}},
		lexical:  []store.ScoredEmbedding{{Embedding: emb(1, 100), Rank: 1}},
	}
	libs := &fakeLibraries{} // no library registered: override must bypass lookup
	wSem, wTxt := 1.0, 0.0
	e := New(cands, libs, fakeQueryEmbedder{})

	results, err := e.Search(context.Background(), Request{
		Query:      "find something useful",
		LibraryIDs: []int64{100},
		WSem:       &wSem,
		WTxt:       &wTxt,
	})
	if err != nil {
		t.Fatalf("Search: %v (library lookup should have been bypassed)", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestSearchFoldsAccentsBeforeLexicalLookup(t *testing.T) {
	cands := &fakeCandidates{}
	libs := &fakeLibraries{weights: map[int64][2]float64{100: {0.5, 0.5}}}
	e := New(cands, libs, fakeQueryEmbedder{})

	if _, err := e.Search(context.Background(), Request{
		Query:      "café society",
		LibraryIDs: []int64{100},
		Mode:       ModeTextual,
	}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if strings.Contains(cands.lastLex, "é") {
		t.Errorf("lexical query = %q, want accents folded", cands.lastLex)
	}
}
