package pool

import (
	"context"
	"testing"
)

func fakeRecord(name string, chatModels []string, embeddingModel string) ProviderRecord {
	return ProviderRecord{
		Name:           name,
		ChatModels:     chatModels,
		EmbeddingModel: embeddingModel,
		svc:            &fakeService{name: name},
	}
}

type fakeService struct {
	name      string
	failN     int
	calls     int
	lastErr   error
	lastModel string
}

func (f *fakeService) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	f.calls++
	if f.calls <= f.failN {
		return nil, f.lastErr
	}
	return &CompletionResponse{Content: "ok from " + f.name, Model: req.Model}, nil
}

func (f *fakeService) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	f.calls++
	f.lastModel = model
	if f.calls <= f.failN {
		return nil, f.lastErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func TestNewPoolNoProviders(t *testing.T) {
	_, err := NewPool(StrategyFailover, nil)
	if err != ErrNoProviders {
		t.Fatalf("err = %v, want ErrNoProviders", err)
	}
}

func TestResolveExactAndPrefixMatch(t *testing.T) {
	p, err := NewPool(StrategyFailover, []ProviderRecord{
		fakeRecord("a", []string{"gpt-4"}, "text-embed"),
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		model   string
		wantErr bool
	}{
		{"gpt-4", false},
		{"gpt-4-turbo", false},
		{"text-embed", false},
		{"claude-3", true},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			_, err := p.Resolve(tt.model)
			if (err != nil) != tt.wantErr {
				t.Errorf("Resolve(%q) err = %v, wantErr %v", tt.model, err, tt.wantErr)
			}
		})
	}
}

func TestSelectPrimaryOnly(t *testing.T) {
	p, _ := NewPool(StrategyPrimaryOnly, []ProviderRecord{
		fakeRecord("primary", nil, "m"),
		fakeRecord("secondary", nil, "m"),
	})
	for i := 0; i < 3; i++ {
		svc, err := p.Select(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if svc.(*fakeService).name != "primary" {
			t.Errorf("Select() = %s, want primary", svc.(*fakeService).name)
		}
	}
}

func TestSelectRoundRobin(t *testing.T) {
	p, _ := NewPool(StrategyRoundRobin, []ProviderRecord{
		fakeRecord("a", nil, "m"),
		fakeRecord("b", nil, "m"),
	})
	var got []string
	for i := 0; i < 4; i++ {
		svc, err := p.Select(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, svc.(*fakeService).name)
	}
	want := []string{"a", "b", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCompleteFailoverAdvancesOnTransientFailure(t *testing.T) {
	first := fakeRecord("first", nil, "m")
	first.svc.(*fakeService).failN = 1
	first.svc.(*fakeService).lastErr = errTransient
	second := fakeRecord("second", nil, "m")

	p, _ := NewPool(StrategyFailover, []ProviderRecord{first, second})

	resp, err := p.Complete(context.Background(), CompletionRequest{User: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "ok from second" {
		t.Errorf("Content = %q, want from second provider", resp.Content)
	}
}

func TestCompleteFailoverStopsOnTerminalError(t *testing.T) {
	terminal := &fakeService{name: "bad", failN: 10, lastErr: ErrModelNotRegistered}
	rec := ProviderRecord{Name: "bad", svc: terminal}
	second := fakeRecord("second", nil, "m")

	p, _ := NewPool(StrategyFailover, []ProviderRecord{rec, second})

	_, err := p.Complete(context.Background(), CompletionRequest{User: "hi"})
	if err == nil {
		t.Fatal("expected terminal error to abort failover chain")
	}
	if terminal.calls != 1 {
		t.Errorf("terminal provider called %d times, want 1 (no failover past non-transient error)", terminal.calls)
	}
}

func TestEmbedThreadsModelName(t *testing.T) {
	rec := fakeRecord("a", nil, "text-embed-3")
	p, _ := NewPool(StrategyFailover, []ProviderRecord{rec})

	if _, err := p.Embed(context.Background(), "text-embed-3", []string{"hi"}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got := rec.svc.(*fakeService).lastModel; got != "text-embed-3" {
		t.Errorf("provider received model %q, want %q", got, "text-embed-3")
	}
}

func TestListModelsDeduplicates(t *testing.T) {
	p, _ := NewPool(StrategyFailover, []ProviderRecord{
		fakeRecord("a", []string{"m1", "m2"}, "e1"),
		fakeRecord("b", []string{"m2", "m3"}, "e1"),
	})
	models := p.ListModels()
	seen := map[string]int{}
	for _, m := range models {
		seen[m]++
	}
	for m, c := range seen {
		if c != 1 {
			t.Errorf("model %q listed %d times, want 1", m, c)
		}
	}
}
