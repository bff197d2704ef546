package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ragcore/ragcore"
	"github.com/ragcore/ragcore/embedstrategy"
	"github.com/ragcore/ragcore/splitter"
	"github.com/ragcore/ragcore/store"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, modelName string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeDocStore struct {
	mu         sync.Mutex
	docs       map[int64]store.Document
	chapters   map[int64][]store.Chapter
	embeddings map[int64]int
	failed     map[int64]string
	finalized  map[int64]bool
	persistErr error
}

func newFakeDocStore(doc store.Document) *fakeDocStore {
	return &fakeDocStore{
		docs:       map[int64]store.Document{doc.ID: doc},
		chapters:   make(map[int64][]store.Chapter),
		embeddings: make(map[int64]int),
		failed:     make(map[int64]string),
		finalized:  make(map[int64]bool),
	}
}

func (f *fakeDocStore) GetDocument(ctx context.Context, id int64) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return store.Document{}, fmt.Errorf("no such document")
	}
	return d, nil
}

func (f *fakeDocStore) UpdateDocumentProgress(ctx context.Context, id int64, progress int, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.docs[id]
	d.Progress = progress
	d.Message = message
	f.docs[id] = d
	return nil
}

func (f *fakeDocStore) FailDocument(ctx context.Context, id int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = reason
	d := f.docs[id]
	d.Status = store.DocumentStatusFailed
	f.docs[id] = d
	return nil
}

func (f *fakeDocStore) FinalizeDocument(ctx context.Context, id, libraryID int64, title string, totalTokens int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized[id] = true
	d := f.docs[id]
	d.Status = store.DocumentStatusCompleted
	d.TotalTokens = totalTokens
	f.docs[id] = d
	return nil
}

func (f *fakeDocStore) PersistChapter(ctx context.Context, ch store.Chapter, embeddings []store.DocEmbedding) (store.Chapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return store.Chapter{}, f.persistErr
	}
	ch.ID = int64(len(f.chapters[ch.DocumentID]) + 1)
	f.chapters[ch.DocumentID] = append(f.chapters[ch.DocumentID], ch)
	f.embeddings[ch.DocumentID] += len(embeddings)
	return ch, nil
}

func (f *fakeDocStore) CountEmbeddingsByDocument(ctx context.Context, documentID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embeddings[documentID], nil
}

func newTestRouter() *splitter.Router {
	return splitter.NewRouter(nil, ragcore.DefaultConfig().Chunk)
}

func TestProcessCompletesDocument(t *testing.T) {
	doc := store.Document{
		ID:              1,
		LibraryID:       10,
		Title:           "Doc",
		ContentType:     "generic",
		ContentMarkdown: "## First\n\nSome body text that is long enough to chunk.\n\n## Second\n\nMore body text here too.",
		Status:          store.DocumentStatusPending,
	}
	docs := newFakeDocStore(doc)
	router := newTestRouter()
	chapters := embedstrategy.NewChapterStrategy(fakeEmbedder{}, 2000)

	o := New(docs, router, chapters, nil, nil, 1, 0)

	if err := o.Process(context.Background(), 1, DefaultOptions()); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, _ := docs.GetDocument(context.Background(), 1)
	if got.Status != store.DocumentStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got.Status)
	}
	if !docs.finalized[1] {
		t.Error("expected FinalizeDocument to have been called")
	}
	if len(docs.chapters[1]) == 0 {
		t.Error("expected at least one persisted chapter")
	}
	if docs.embeddings[1] == 0 {
		t.Error("expected at least one persisted embedding")
	}
}

func TestProcessSkipsAlreadyCompletedDocument(t *testing.T) {
	doc := store.Document{
		ID:          2,
		LibraryID:   10,
		ContentType: "generic",
		Status:      store.DocumentStatusCompleted,
	}
	docs := newFakeDocStore(doc)
	docs.embeddings[2] = 3
	router := newTestRouter()
	chapters := embedstrategy.NewChapterStrategy(fakeEmbedder{}, 2000)

	o := New(docs, router, chapters, nil, nil, 1, 0)
	if err := o.Process(context.Background(), 2, DefaultOptions()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if docs.finalized[2] {
		t.Error("expected no re-finalization of an already-completed document")
	}
}

func TestProcessFailsWhenPersistChapterErrors(t *testing.T) {
	doc := store.Document{
		ID:              3,
		LibraryID:       10,
		ContentType:     "generic",
		ContentMarkdown: "## One\n\nsome content for the only chapter",
		Status:          store.DocumentStatusPending,
	}
	docs := newFakeDocStore(doc)
	docs.persistErr = fmt.Errorf("write failed")
	router := newTestRouter()
	chapters := embedstrategy.NewChapterStrategy(fakeEmbedder{}, 2000)

	o := New(docs, router, chapters, nil, nil, 1, 0)
	err := o.Process(context.Background(), 3, DefaultOptions())
	if err == nil {
		t.Fatal("expected error when persistence fails")
	}
	if docs.failed[3] == "" {
		t.Error("expected FailDocument to be recorded")
	}
	if docs.finalized[3] {
		t.Error("expected no finalization on persistence failure")
	}
}

func TestSubmitProcessesAsynchronously(t *testing.T) {
	doc := store.Document{
		ID:              5,
		LibraryID:       10,
		ContentType:     "generic",
		ContentMarkdown: "## One\n\nsome body content",
		Status:          store.DocumentStatusPending,
	}
	docs := newFakeDocStore(doc)
	router := newTestRouter()
	chapters := embedstrategy.NewChapterStrategy(fakeEmbedder{}, 2000)

	o := New(docs, router, chapters, nil, nil, 2, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	o.Submit(5, DefaultOptions())
	o.Stop()

	if !docs.finalized[5] {
		t.Error("expected the submitted document to have been processed by a worker")
	}
}

func TestCancelStopsBeforeNextChapter(t *testing.T) {
	doc := store.Document{
		ID:              4,
		LibraryID:       10,
		ContentType:     "generic",
		ContentMarkdown: "## One\n\nbody\n\n## Two\n\nbody",
		Status:          store.DocumentStatusPending,
	}
	docs := newFakeDocStore(doc)
	router := newTestRouter()
	chapters := embedstrategy.NewChapterStrategy(fakeEmbedder{}, 2000)

	o := New(docs, router, chapters, nil, nil, 1, 0)
	o.Cancel(4)

	err := o.Process(context.Background(), 4, DefaultOptions())
	if err != ragcore.ErrCancelled {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
}
