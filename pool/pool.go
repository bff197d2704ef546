package pool

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/ragcore/ragcore"
)

// Strategy names accepted by Config.Pool.Strategy / NewPool.
const (
	StrategyPrimaryOnly = "primary-only"
	StrategyFailover    = "failover"
	StrategyRoundRobin  = "round-robin"
	StrategyModelBased  = "model-based"
)

// ErrNoProviders is returned by NewPool when given an empty provider list.
var ErrNoProviders = fmt.Errorf("pool: no providers configured: %w", ragcore.ErrInvalidConfig)

// ErrModelNotRegistered is returned by Resolve when no provider advertises
// the requested model.
var ErrModelNotRegistered = fmt.Errorf("pool: %w", ragcore.ErrModelNotRegistered)

// Pool is the LLM service pool and router described in section 4.1. It
// holds an ordered, immutable list of providers (the first is primary) and
// dispatches calls either by model name (Resolve) or by the pool-wide
// strategy (Select).
type Pool struct {
	providers []ProviderRecord
	strategy  string
	rrCounter uint64
}

// NewPool builds a Pool from provider records and a routing strategy. The
// first provider in the list is the primary for primary-only/failover.
func NewPool(strategy string, providers []ProviderRecord) (*Pool, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if strategy == "" {
		strategy = StrategyFailover
	}
	return &Pool{providers: providers, strategy: strategy}, nil
}

// Resolve returns the provider advertising modelName, per section 4.1's
// match rule. Used whenever a request names a specific model.
func (p *Pool) Resolve(modelName string) (Service, error) {
	for _, pr := range p.providers {
		if modelName != "" && strings.EqualFold(pr.EmbeddingModel, modelName) {
			return pr.svc, nil
		}
		for _, m := range pr.ChatModels {
			if modelName != "" && strings.EqualFold(m, modelName) {
				return pr.svc, nil
			}
		}
	}
	for _, pr := range p.providers {
		if pr.advertisesModel(modelName) {
			return pr.svc, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrModelNotRegistered, modelName)
}

// Select returns a provider for a model-agnostic call, per the pool's
// configured strategy:
//
//   - primary-only: always the first provider.
//   - failover: the first provider; callers retry against the next on
//     failure via NextAfter.
//   - round-robin: cycles through all providers on successive calls.
//   - model-based: requires a model name, delegates to Resolve.
func (p *Pool) Select(ctx context.Context) (Service, error) {
	switch p.strategy {
	case StrategyPrimaryOnly, StrategyFailover:
		return p.providers[0].svc, nil
	case StrategyRoundRobin:
		idx := atomic.AddUint64(&p.rrCounter, 1) - 1
		return p.providers[idx%uint64(len(p.providers))].svc, nil
	case StrategyModelBased:
		return nil, fmt.Errorf("pool: model-based strategy requires Resolve(modelName), not Select")
	default:
		return p.providers[0].svc, nil
	}
}

// NextAfter returns the provider that follows the one currently at index i
// in the failover chain, or false when the chain is exhausted. Callers
// implementing failover retry hold their own index starting at 0.
func (p *Pool) NextAfter(i int) (Service, int, bool) {
	next := i + 1
	if next >= len(p.providers) {
		return nil, next, false
	}
	return p.providers[next].svc, next, true
}

// ListModels returns every model name advertised by every configured
// provider, deduplicated in provider-then-declaration order.
func (p *Pool) ListModels() []string {
	seen := make(map[string]bool)
	var out []string
	for _, pr := range p.providers {
		if pr.EmbeddingModel != "" && !seen[pr.EmbeddingModel] {
			seen[pr.EmbeddingModel] = true
			out = append(out, pr.EmbeddingModel)
		}
		for _, m := range pr.ChatModels {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// Complete dispatches a completion request. If req.Model is set it resolves
// to the provider advertising that model; otherwise it uses the pool's
// configured strategy, retrying the next provider in the chain on a
// transient failure when the strategy is failover.
func (p *Pool) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if req.Model != "" {
		svc, err := p.Resolve(req.Model)
		if err != nil {
			return nil, err
		}
		return svc.Complete(ctx, req)
	}

	if p.strategy != StrategyFailover {
		svc, err := p.Select(ctx)
		if err != nil {
			return nil, err
		}
		return svc.Complete(ctx, req)
	}

	var lastErr error
	for i := 0; i < len(p.providers); i++ {
		resp, err := p.providers[i].svc.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("pool: all providers exhausted: %w", lastErr)
}

// Embed dispatches an embedding request the same way Complete does, keyed
// on model name when provided via the caller's own resolved provider.
func (p *Pool) Embed(ctx context.Context, modelName string, texts []string) ([][]float32, error) {
	if modelName != "" {
		svc, err := p.Resolve(modelName)
		if err != nil {
			return nil, err
		}
		return svc.Embed(ctx, modelName, texts)
	}

	if p.strategy != StrategyFailover {
		svc, err := p.Select(ctx)
		if err != nil {
			return nil, err
		}
		return svc.Embed(ctx, modelName, texts)
	}

	var lastErr error
	for i := 0; i < len(p.providers); i++ {
		resp, err := p.providers[i].svc.Embed(ctx, modelName, texts)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("pool: all providers exhausted: %w", lastErr)
}
