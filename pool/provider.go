// Package pool implements the LLM service pool and router described in
// section 4.1: given a model name it resolves a concrete provider client;
// given a pool-wide strategy it selects one for model-agnostic calls.
package pool

import "context"

// Service is the capability set every pool member exposes: complete a chat
// request, or embed a batch of texts. Strategies obtain a Service either by
// model name (resolve) or by routing strategy (select), never directly.
type Service interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// CompletionRequest is a chat/completion call.
type CompletionRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// CompletionResponse is the result of a completion call.
type CompletionResponse struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ProviderRecord is one immutable pool member: its tag, endpoint,
// credentials, and the models it advertises for completion and embedding.
// Constructed once from configuration (see Config), never re-parsed at
// call time.
type ProviderRecord struct {
	Name             string
	BaseURL          string
	APIKey           string
	ChatModels       []string
	EmbeddingModel   string
	EmbeddingDim     int
	EmbeddingContext int

	svc Service
}

// NewProviderRecord wraps an HTTP client for an OpenAI-compatible endpoint
// into a ProviderRecord advertising the given models.
func NewProviderRecord(name, baseURL, apiKey string, chatModels []string, embeddingModel string, embeddingDim, embeddingContext int, timeoutSeconds int) ProviderRecord {
	return ProviderRecord{
		Name:             name,
		BaseURL:          baseURL,
		APIKey:           apiKey,
		ChatModels:       chatModels,
		EmbeddingModel:   embeddingModel,
		EmbeddingDim:     embeddingDim,
		EmbeddingContext: embeddingContext,
		svc:              newOpenAICompatClient(baseURL, apiKey, timeoutSeconds, embeddingModel),
	}
}

// advertisesModel reports whether name matches this provider's chat or
// embedding models, using the match rule from section 4.1: exact first,
// then case-insensitive prefix/substring.
func (p ProviderRecord) advertisesModel(name string) bool {
	if matchModel(name, p.EmbeddingModel) {
		return true
	}
	for _, m := range p.ChatModels {
		if matchModel(name, m) {
			return true
		}
	}
	return false
}
