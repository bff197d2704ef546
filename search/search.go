// Package search implements the hybrid search engine of section 4.5: it
// fuses semantic (vector cosine) and lexical (weighted full-text) signals
// over a multi-library corpus, honoring per-library weight configuration.
package search

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ragcore/ragcore"
	"github.com/ragcore/ragcore/embedstrategy"
	"github.com/ragcore/ragcore/store"
)

// Mode selects which signal(s) contribute to the fused score.
type Mode string

const (
	ModeHybrid   Mode = "hybrid"
	ModeSemantic Mode = "semantic"
	ModeTextual  Mode = "textual"
)

// Request is one search call, per section 4.5's inputs.
type Request struct {
	Query      string
	LibraryIDs []int64
	Limit      int // k, default 10, max 100
	WSem, WTxt *float64
	ActiveOnly bool
	Mode       Mode
	Resolution embedstrategy.ModelResolution
}

// Result is one fused hit: the embedding record plus its partial and
// final scores, per section 4.5 step 5 ("include both partial scores").
type Result struct {
	Embedding store.DocEmbedding
	ScoreSem  float64
	ScoreTxt  float64
	Final     float64
}

// LibraryWeights is the capability the engine needs to resolve a
// record's owning-library weights when a query spans multiple libraries
// with no override supplied.
type LibraryWeights interface {
	GetLibraryByID(ctx context.Context, id int64) (store.Library, error)
}

// Candidates is the capability set the store exposes for retrieving
// ranked candidate sets.
type Candidates interface {
	SemanticCandidates(ctx context.Context, vector []float32, limit int, scope store.SearchScope) ([]store.ScoredEmbedding, error)
	LexicalCandidates(ctx context.Context, translatedQuery string, limit int, scope store.SearchScope) ([]store.ScoredEmbedding, error)
}

// QueryEmbedder is the query-strategy capability: embed a free-text
// query under a resolved model.
type QueryEmbedder interface {
	Generate(ctx context.Context, query string, resolution embedstrategy.ModelResolution) ([]float32, error)
}

// Engine wires the store's candidate queries and the query embedding
// strategy into the fused ranking procedure.
type Engine struct {
	candidates Candidates
	libraries  LibraryWeights
	query      QueryEmbedder
}

// New builds an Engine.
func New(candidates Candidates, libraries LibraryWeights, query QueryEmbedder) *Engine {
	return &Engine{candidates: candidates, libraries: libraries, query: query}
}

const (
	minQueryLen  = 2
	maxQueryLen  = 500
	defaultLimit = 10
	maxLimit     = 100
)

// reservedTokenRe matches the uppercase SQL-ish tokens AND/OR/NOT as
// standalone words, per section 4.5's boundary rule: these are rejected
// with an actionable message directing the caller to web-style syntax
// instead of silently reinterpreting them.
var reservedTokenRe = regexp.MustCompile(`\b(AND|OR|NOT)\b`)

// ValidateQuery enforces section 4.5's and section 8's boundary rules on
// the raw query string: trimmed length in [2, 500], and no standalone
// AND/OR/NOT tokens.
func ValidateQuery(raw string) (string, error) {
	q := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(q)
	if n < minQueryLen || n > maxQueryLen {
		return "", fmt.Errorf("%w: query length must be between %d and %d characters, got %d",
			ragcore.ErrValidation, minQueryLen, maxQueryLen, n)
	}
	if reservedTokenRe.MatchString(q) {
		return "", fmt.Errorf(
			"%w: query must not contain AND/OR/NOT as standalone words; use web-style syntax instead "+
				`("phrase" for an exact phrase, -exclude to exclude a term, space-separated terms for OR)`,
			ragcore.ErrValidation)
	}
	return q, nil
}

// Search runs the fused ranking procedure of section 4.5 and returns the
// top req.Limit results ordered by final score descending.
func (e *Engine) Search(ctx context.Context, req Request) ([]Result, error) {
	q, err := ValidateQuery(req.Query)
	if err != nil {
		return nil, err
	}
	if len(req.LibraryIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one library must be specified", ragcore.ErrValidation)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if req.WSem != nil || req.WTxt != nil {
		if req.WSem == nil || req.WTxt == nil {
			return nil, fmt.Errorf("%w: w_sem and w_txt overrides must both be supplied together", ragcore.ErrValidation)
		}
		if !weightsSumToOne(*req.WSem, *req.WTxt) {
			return nil, fmt.Errorf("%w: w_sem + w_txt must equal 1.0", ragcore.ErrValidation)
		}
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeHybrid
	}

	scope := store.SearchScope{LibraryIDs: req.LibraryIDs, ActiveOnly: req.ActiveOnly}
	candidateLimit := 2 * limit

	var semantic, lexical []store.ScoredEmbedding

	if mode == ModeHybrid || mode == ModeSemantic {
		vector, err := e.query.Generate(ctx, q, req.Resolution)
		if err != nil {
			return nil, fmt.Errorf("embedding query: %w", err)
		}
		semantic, err = e.candidates.SemanticCandidates(ctx, vector, candidateLimit, scope)
		if err != nil {
			return nil, fmt.Errorf("fetching semantic candidates: %w", err)
		}
	}
	if mode == ModeHybrid || mode == ModeTextual {
		lexical, err = e.candidates.LexicalCandidates(ctx, foldAccents(q), candidateLimit, scope)
		if err != nil {
			return nil, fmt.Errorf("fetching lexical candidates: %w", err)
		}
	}

	return e.fuse(ctx, semantic, lexical, limit, req.WSem, req.WTxt)
}

// fuse implements section 4.5 steps 3-5: reciprocal-rank-style
// normalization, weighted combination, top-k selection.
//
//	score_sem(id) = 1 / (k + rank_sem(id))   (0 if absent)
//	score_txt(id) = 1 / (k + rank_txt(id))   (0 if absent)
//	final(id)     = w_sem * score_sem(id) + w_txt * score_txt(id)
func (e *Engine) fuse(ctx context.Context, semantic, lexical []store.ScoredEmbedding, k int, wSemOverride, wTxtOverride *float64) ([]Result, error) {
	byID := make(map[int64]*Result)
	order := make([]int64, 0, len(semantic)+len(lexical))

	get := func(id int64, emb store.DocEmbedding) *Result {
		r, ok := byID[id]
		if !ok {
			r = &Result{Embedding: emb}
			byID[id] = r
			order = append(order, id)
		}
		return r
	}

	for _, c := range semantic {
		r := get(c.Embedding.ID, c.Embedding)
		r.ScoreSem = 1.0 / float64(k+c.Rank)
	}
	for _, c := range lexical {
		r := get(c.Embedding.ID, c.Embedding)
		r.ScoreTxt = 1.0 / float64(k+c.Rank)
	}

	libWeightCache := make(map[int64][2]float64)

	results := make([]Result, 0, len(order))
	for _, id := range order {
		r := *byID[id]

		wSem, wTxt, err := e.resolveWeights(ctx, r.Embedding.LibraryID, wSemOverride, wTxtOverride, libWeightCache)
		if err != nil {
			return nil, err
		}
		r.Final = wSem*r.ScoreSem + wTxt*r.ScoreTxt
		results = append(results, r)
	}

	sortByFinalDesc(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// resolveWeights implements the under-specified relationship between
// per-library override weights and caller-supplied weights when multiple
// libraries are searched: an explicit override always wins; absent one,
// each record uses its own owning library's configured weights (section
// 4.5's "present spec chooses" resolution, also recorded in DESIGN.md).
func (e *Engine) resolveWeights(ctx context.Context, libraryID int64, wSemOverride, wTxtOverride *float64, cache map[int64][2]float64) (float64, float64, error) {
	if wSemOverride != nil && wTxtOverride != nil {
		return *wSemOverride, *wTxtOverride, nil
	}
	if w, ok := cache[libraryID]; ok {
		return w[0], w[1], nil
	}
	lib, err := e.libraries.GetLibraryByID(ctx, libraryID)
	if err != nil {
		return 0, 0, fmt.Errorf("resolving library weights: %w", err)
	}
	cache[libraryID] = [2]float64{lib.WSem, lib.WTxt}
	return lib.WSem, lib.WTxt, nil
}

// foldAccents decomposes the query and drops combining marks (e.g.
// "café" -> "cafe") before it reaches the store's websearch_to_tsquery
// call, so the ragcore_fts configuration's own folding only ever has to
// agree with already-ASCII input. Non-combining runes, including the
// quote/minus/space web-search operators, pass through untouched.
func foldAccents(q string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isCombiningMark))
	folded, _, err := transform.String(t, q)
	if err != nil {
		return q
	}
	return folded
}

func isCombiningMark(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

func weightsSumToOne(wSem, wTxt float64) bool {
	const eps = 1e-6
	sum := wSem + wTxt
	return sum > 1.0-eps && sum < 1.0+eps
}

func sortByFinalDesc(results []Result) {
	sort.Slice(results, func(i, j int) bool { return results[i].Final > results[j].Final })
}
