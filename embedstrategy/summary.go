package embedstrategy

import (
	"context"
	"log/slog"

	"github.com/ragcore/ragcore/pool"
	"github.com/ragcore/ragcore/splitter"
)

// SummaryStrategy requests a dense summary of a Chapter, truncates it to a
// character bound, and embeds it. Failures degrade to "no summary" rather
// than aborting the surrounding Chapter.
type SummaryStrategy struct {
	completer Completer
	embedder  Embedder
}

// NewSummaryStrategy builds a SummaryStrategy.
func NewSummaryStrategy(completer Completer, embedder Embedder) *SummaryStrategy {
	return &SummaryStrategy{completer: completer, embedder: embedder}
}

// Generate produces a single summary record, or nil with no error when the
// completion or embedding call fails — the caller logs and moves on.
func (s *SummaryStrategy) Generate(ctx context.Context, chapter splitter.Chapter, maxSummaryLength int, focus string, resolution ModelResolution) (*Record, error) {
	prompt := "Write a dense, information-preserving summary of the following text."
	if focus != "" {
		prompt += " Focus especially on: " + focus + "."
	}
	prompt += "\n\n" + chapter.Content

	resp, err := s.completer.Complete(ctx, pool.CompletionRequest{
		Model:  resolution.ResolveCompletion(),
		System: "You write dense summaries for retrieval indexing.",
		User:   prompt,
	})
	if err != nil {
		slog.Warn("embedstrategy: summary generation failed, degrading to no summary", "chapter", chapter.Title, "error", err)
		return nil, nil
	}

	summary := resp.Content
	if maxSummaryLength > 0 {
		if runes := []rune(summary); len(runes) > maxSummaryLength {
			summary = string(runes[:maxSummaryLength])
		}
	}

	vectors, err := s.embedder.Embed(ctx, resolution.ResolveEmbedding(), []string{summary})
	if err != nil {
		slog.Warn("embedstrategy: summary embedding failed, degrading to no summary", "chapter", chapter.Title, "error", err)
		return nil, nil
	}
	if len(vectors) == 0 {
		slog.Warn("embedstrategy: empty embedding response for summary, degrading to no summary", "chapter", chapter.Title)
		return nil, nil
	}

	return &Record{
		Text:     summary,
		Kind:     RecordKindSummary,
		Vector:   vectors[0],
		Metadata: map[string]string{"summary": summary},
	}, nil
}
