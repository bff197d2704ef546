// Package ingest implements the ingestion orchestrator of section 4.4: it
// turns a persisted but unprocessed Document into a fully embedded,
// searchable artifact, advancing it through PENDING -> PROCESSING ->
// COMPLETED|FAILED with monotonic progress and a bounded-worker-pool
// async pipeline.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ragcore/ragcore"
	"github.com/ragcore/ragcore/embedstrategy"
	"github.com/ragcore/ragcore/pool"
	"github.com/ragcore/ragcore/splitter"
	"github.com/ragcore/ragcore/store"
)

// qaMinTokens is the fixed per-Chapter threshold from section 4.4 stage 4
// that gates optional Q&A generation — independent of the splitter's
// configurable chapter-split threshold (section 9's open question: "keep
// them independent configuration knobs").
const qaMinTokens = 500

// defaultSummaryMinTokens is the section 4.4/6 default for
// summary.threshold_tokens: a Chapter below this many tokens never gets a
// summary, regardless of the IncludeSummary option. Orchestrator.New falls
// back to this value when constructed with summaryMinTokens <= 0.
const defaultSummaryMinTokens = 2500

// maxStageAttempts and stageRetryDelay implement the orchestrator-level
// retry policy of section 4.4/5: up to 3 total attempts per stage
// invocation, 120s fixed inter-attempt delay, transient failures only.
const (
	maxStageAttempts = 3
	stageRetryDelay  = 120 * time.Second
)

// Options carries the per-call knobs the process endpoint accepts
// (includeQA, includeSummary) plus the Chapter embedding mode, default
// auto per section 4.3.
type Options struct {
	IncludeQA      bool
	IncludeSummary bool
	ChapterMode    embedstrategy.ChapterMode
	QAPairCount    int
	SummaryMaxLen  int
	SummaryFocus   string
	Resolution     embedstrategy.ModelResolution
}

// DefaultOptions returns Options with auto chapter mode and a 5-pair Q&A
// default.
func DefaultOptions() Options {
	return Options{ChapterMode: embedstrategy.ChapterModeAuto, QAPairCount: 5, SummaryMaxLen: 2000}
}

// DocumentStore is the persistence capability the orchestrator needs.
type DocumentStore interface {
	GetDocument(ctx context.Context, id int64) (store.Document, error)
	UpdateDocumentProgress(ctx context.Context, id int64, progress int, message string) error
	FailDocument(ctx context.Context, id int64, reason string) error
	FinalizeDocument(ctx context.Context, id, libraryID int64, title string, totalTokens int) error
	PersistChapter(ctx context.Context, ch store.Chapter, embeddings []store.DocEmbedding) (store.Chapter, error)
	CountEmbeddingsByDocument(ctx context.Context, documentID int64) (int, error)
}

// Orchestrator drives Documents through the ingestion pipeline. One
// Orchestrator serves a bounded worker pool (default 4, per
// ingestion.workers); callers Submit document ids and the pool drains
// them concurrently, each Document processed by a single logical task
// that handles its Chapters one after another, in source order.
type Orchestrator struct {
	docs     DocumentStore
	router   *splitter.Router
	chapters *embedstrategy.ChapterStrategy
	qa       *embedstrategy.QAStrategy
	summary  *embedstrategy.SummaryStrategy

	workers          int
	summaryMinTokens int
	tasks            chan task

	mu        sync.Mutex
	cancelled map[int64]bool

	wg sync.WaitGroup
}

type task struct {
	documentID int64
	opts       Options
}

// New builds an Orchestrator. workers bounds the Document-level worker
// pool (section 5: "a bounded worker pool (default 4)"); the Chapters of
// one Document are processed sequentially. summaryMinTokens is the
// configurable summary.threshold_tokens knob (section 6); a value <= 0
// falls back to defaultSummaryMinTokens.
func New(docs DocumentStore, router *splitter.Router, chapters *embedstrategy.ChapterStrategy, qa *embedstrategy.QAStrategy, summary *embedstrategy.SummaryStrategy, workers int, summaryMinTokens int) *Orchestrator {
	if workers <= 0 {
		workers = 4
	}
	if summaryMinTokens <= 0 {
		summaryMinTokens = defaultSummaryMinTokens
	}
	return &Orchestrator{
		docs:             docs,
		router:           router,
		chapters:         chapters,
		qa:               qa,
		summary:          summary,
		workers:          workers,
		summaryMinTokens: summaryMinTokens,
		tasks:            make(chan task, 64),
		cancelled:        make(map[int64]bool),
	}
}

// Start launches the bounded worker pool. Call Stop (or cancel ctx) to
// drain and shut it down.
func (o *Orchestrator) Start(ctx context.Context) {
	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go o.work(ctx)
	}
}

// Stop closes the task queue and waits for in-flight work to finish.
func (o *Orchestrator) Stop() {
	close(o.tasks)
	o.wg.Wait()
}

// Submit enqueues documentID for asynchronous processing. It returns
// immediately; progress is published through the store only, never
// through an in-memory handle, so a restart resumes cleanly by replaying
// Submit for any Document still PENDING or PROCESSING.
func (o *Orchestrator) Submit(documentID int64, opts Options) {
	o.tasks <- task{documentID: documentID, opts: opts}
}

// Cancel flips the per-Document cancellation flag the orchestrator polls
// before splitting and before each Chapter. An external call already in
// flight is not interrupted and runs to completion; Chapters already
// persisted are left in place to support idempotent re-entry.
func (o *Orchestrator) Cancel(documentID int64) {
	o.mu.Lock()
	o.cancelled[documentID] = true
	o.mu.Unlock()
}

func (o *Orchestrator) isCancelled(documentID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled[documentID]
}

func (o *Orchestrator) clearCancel(documentID int64) {
	o.mu.Lock()
	delete(o.cancelled, documentID)
	o.mu.Unlock()
}

func (o *Orchestrator) work(ctx context.Context) {
	defer o.wg.Done()
	for t := range o.tasks {
		if err := o.Process(ctx, t.documentID, t.opts); err != nil {
			slog.Error("ingest: document processing failed", "document_id", t.documentID, "error", err)
		}
	}
}

// Process runs the full pipeline for documentID synchronously: Convert is
// assumed already done by the upload endpoint (the Document row carries
// its Markdown body on arrival); this orchestrates Route, Split,
// per-Chapter strategy application, Persist, and Finalize, per section
// 4.4's stage list.
func (o *Orchestrator) Process(ctx context.Context, documentID int64, opts Options) error {
	defer o.clearCancel(documentID)

	doc, err := o.docs.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("loading document: %w", err)
	}

	// Idempotence law (section 8): re-invoking process on a COMPLETED
	// document without content change is a no-op.
	if doc.Status == store.DocumentStatusCompleted {
		n, err := o.docs.CountEmbeddingsByDocument(ctx, documentID)
		if err == nil && n > 0 {
			slog.Info("ingest: document already completed, skipping", "document_id", documentID)
			return nil
		}
	}

	if opts.ChapterMode == "" {
		opts.ChapterMode = embedstrategy.ChapterModeAuto
	}

	if err := o.docs.UpdateDocumentProgress(ctx, documentID, 1, "Routing document"); err != nil {
		return fmt.Errorf("updating progress: %w", err)
	}

	if o.isCancelled(documentID) {
		return ragcore.ErrCancelled
	}

	var chapters []splitter.Chapter
	var chunksByChapter map[int][]splitter.Chunk
	err = withRetry(ctx, func() error {
		var err error
		chapters, chunksByChapter, err = o.router.Split(ctx, doc.ContentType, doc.ContentMarkdown)
		return err
	})
	if err != nil {
		o.fail(ctx, documentID, fmt.Sprintf("splitting document: %v", err))
		return err
	}
	if len(chapters) == 0 {
		o.fail(ctx, documentID, "splitter produced zero chapters")
		return fmt.Errorf("%w: splitter produced zero chapters", ragcore.ErrPipelineFatal)
	}

	totalTokens := 0
	for i := range chapters {
		totalTokens += chapters[i].TokenCount
		if o.isCancelled(documentID) {
			return ragcore.ErrCancelled
		}
		if err := o.processChapter(ctx, doc, chapters[i], chunksByChapter[i], opts); err != nil {
			if errors.Is(err, ragcore.ErrCancelled) {
				return err
			}
			o.fail(ctx, documentID, fmt.Sprintf("chapter %q: %v", chapters[i].Title, err))
			return err
		}

		progress := 10 + (85 * (i + 1) / len(chapters))
		msg := fmt.Sprintf("Generating chapter embeddings: %d/%d", i+1, len(chapters))
		if err := o.docs.UpdateDocumentProgress(ctx, documentID, progress, msg); err != nil {
			return fmt.Errorf("updating progress: %w", err)
		}
	}

	if err := o.docs.FinalizeDocument(ctx, documentID, doc.LibraryID, doc.Title, totalTokens); err != nil {
		o.fail(ctx, documentID, fmt.Sprintf("finalizing document: %v", err))
		return err
	}
	return nil
}

// processChapter applies the Chapter strategy (and, when gated in,
// Q&A/summary strategies) to one Chapter and persists the resulting
// embedding records in a single per-Chapter transaction. A single
// embedding call failure aborts the surrounding Chapter's processing
// with a retryable error (section 4.3's failure semantics); a Q&A parse
// failure only discards that pair (handled inside QAStrategy); a summary
// failure degrades to no summary (handled inside SummaryStrategy).
func (o *Orchestrator) processChapter(ctx context.Context, doc store.Document, ch splitter.Chapter, chunks []splitter.Chunk, opts Options) error {
	meta := embedstrategy.ChapterMetadata{Title: ch.Title}

	var records []embedstrategy.Record
	err := withRetry(ctx, func() error {
		var err error
		records, err = o.chapters.Generate(ctx, ch, chunks, meta, opts.ChapterMode, opts.Resolution)
		return err
	})
	if err != nil {
		return fmt.Errorf("generating chapter embeddings: %w", err)
	}

	if opts.IncludeQA && ch.TokenCount >= qaMinTokens && o.qa != nil {
		var qaRecords []embedstrategy.Record
		err := withRetry(ctx, func() error {
			var err error
			qaRecords, err = o.qa.Generate(ctx, ch, opts.QAPairCount, opts.Resolution)
			return err
		})
		if err != nil {
			return fmt.Errorf("generating qa pairs: %w", err)
		}
		records = append(records, qaRecords...)
	}

	var summaryText *string
	if opts.IncludeSummary && ch.TokenCount >= o.summaryMinTokens && o.summary != nil {
		var rec *embedstrategy.Record
		err := withRetry(ctx, func() error {
			var err error
			rec, err = o.summary.Generate(ctx, ch, opts.SummaryMaxLen, opts.SummaryFocus, opts.Resolution)
			return err
		})
		if err != nil {
			return fmt.Errorf("generating summary: %w", err)
		}
		if rec != nil {
			records = append(records, *rec)
			summaryText = &rec.Text
		}
	}

	chapterRow := store.Chapter{
		DocumentID: doc.ID,
		Title:      ch.Title,
		Content:    ch.Content,
		OrderIndex: ch.Index,
		TokenCount: ch.TokenCount,
		Summary:    summaryText,
	}
	embeddings := make([]store.DocEmbedding, 0, len(records))
	for _, r := range records {
		embeddings = append(embeddings, store.DocEmbedding{
			LibraryID:      doc.LibraryID,
			DocumentID:     doc.ID,
			Text:           r.Text,
			OrderInChapter: r.Order,
			EmbeddingKind:  string(r.Kind),
			Vector:         r.Vector,
			Metadata:       metadataToAny(r.Metadata, ch.Title),
		})
	}

	_, err = o.docs.PersistChapter(ctx, chapterRow, embeddings)
	if err != nil {
		return fmt.Errorf("persisting chapter: %w", err)
	}
	return nil
}

func metadataToAny(m map[string]string, chapterTitle string) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	if _, ok := out["chapter_title"]; !ok {
		out["chapter_title"] = chapterTitle
	}
	return out
}

func (o *Orchestrator) fail(ctx context.Context, documentID int64, reason string) {
	if ferr := o.docs.FailDocument(ctx, documentID, reason); ferr != nil {
		slog.Error("ingest: failed to record document failure", "document_id", documentID, "error", ferr)
	}
}

// withRetry runs fn up to maxStageAttempts times with stageRetryDelay
// between attempts, retrying only on transient failures per section 7's
// propagation policy. Each attempt gets a fresh deadline implicitly via
// ctx (callers propagate their own per-call deadlines into fn).
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxStageAttempts; attempt++ {
		if attempt > 1 {
			slog.Warn("ingest: retrying stage", "attempt", attempt, "delay", stageRetryDelay, "error", lastErr)
			select {
			case <-time.After(stageRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: stage failed after %d attempts: %v", ragcore.ErrTransientExternal, maxStageAttempts, lastErr)
}

// isRetryable classifies err for the orchestrator's stage-level retry,
// per section 7: transient-external failures (I/O, timeout, 5xx,
// store-serialization) are retried; everything else is terminal.
func isRetryable(err error) bool {
	return ragcore.Retryable(err) || pool.IsTransient(err) || errors.Is(err, context.DeadlineExceeded)
}
