package embedstrategy

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ragcore/ragcore/pool"
	"github.com/ragcore/ragcore/splitter"
)

// codeBlockRe strips markdown code fences from LLM output before parsing.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

const maxQuestionTokens = 300

// QAStrategy generates question/answer pairs grounded in a Chapter and
// embeds each pair as a qa_pair record.
type QAStrategy struct {
	completer Completer
	embedder  Embedder
	counter   splitter.TokenCounter
}

// NewQAStrategy builds a QAStrategy. counter is used only to reject
// overlong questions (> 300 tokens); pass nil to fall back to the
// length-based estimate.
func NewQAStrategy(completer Completer, embedder Embedder, counter splitter.TokenCounter) *QAStrategy {
	return &QAStrategy{completer: completer, embedder: embedder, counter: counter}
}

type qaPair struct {
	Question string
	Answer   string
}

// Generate asks the completion model for k question/answer pairs grounded
// in chapter, parses the response resiliently, and embeds each surviving
// pair. A parse failure for an individual pair discards only that pair; it
// never aborts the whole call.
func (s *QAStrategy) Generate(ctx context.Context, chapter splitter.Chapter, k int, resolution ModelResolution) ([]Record, error) {
	prompt := fmt.Sprintf(
		"Generate exactly %d question/answer pairs grounded strictly in the following text. "+
			"Respond as a JSON array of objects with \"question\" and \"answer\" fields.\n\n%s",
		k, chapter.Content,
	)

	resp, err := s.completer.Complete(ctx, pool.CompletionRequest{
		Model:    resolution.ResolveCompletion(),
		System:   "You produce grounded question/answer pairs for retrieval indexing.",
		User:     prompt,
		JSONMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("generating qa pairs: %w", err)
	}

	pairs := parseQAPairs(resp.Content)

	counter := s.counter
	if counter == nil {
		counter = fallbackCounter{}
	}

	var texts []string
	var valid []qaPair
	for _, p := range pairs {
		if strings.TrimSpace(p.Answer) == "" {
			continue
		}
		if counter.Count(p.Question) > maxQuestionTokens {
			continue
		}
		valid = append(valid, p)
		texts = append(texts, p.Question+"\n"+p.Answer)
	}
	if len(valid) == 0 {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, resolution.ResolveEmbedding(), texts)
	if err != nil {
		return nil, fmt.Errorf("embedding qa pairs: %w", err)
	}

	records := make([]Record, 0, len(valid))
	for i, p := range valid {
		snippet := p.Answer
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		records = append(records, Record{
			Text:   texts[i],
			Kind:   RecordKindQAPair,
			Vector: vectors[i],
			Order:  i,
			Metadata: map[string]string{
				"question":       p.Question,
				"answer_snippet": snippet,
			},
		})
	}
	return records, nil
}

// parseQAPairs accepts, in priority order: a JSON array of
// {question, answer} objects, numbered markdown list items, or Q:/A:
// lines. It returns whatever pairs it can recover; it never errors,
// matching the "discard only that pair" failure semantics upstream.
func parseQAPairs(raw string) []qaPair {
	if pairs, ok := parseQAJSON(raw); ok {
		return pairs
	}
	if pairs := parseQANumberedMarkdown(raw); len(pairs) > 0 {
		return pairs
	}
	return parseQAColonLines(raw)
}

func parseQAJSON(raw string) ([]qaPair, bool) {
	text := raw
	if m := codeBlockRe.FindStringSubmatch(text); len(m) > 1 {
		text = m[1]
	}
	text = strings.TrimSpace(text)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	text = text[start : end+1]

	var raw2 []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(text), &raw2); err != nil {
		return nil, false
	}

	pairs := make([]qaPair, 0, len(raw2))
	for _, r := range raw2 {
		pairs = append(pairs, qaPair{Question: strings.TrimSpace(r.Question), Answer: strings.TrimSpace(r.Answer)})
	}
	return pairs, true
}

var (
	numberedQuestionRe = regexp.MustCompile(`(?m)^\s*\d+[.)]\s*(.+)$`)
	markdownAnswerRe   = regexp.MustCompile(`(?i)^\s*(?:\*\*)?answer(?:\*\*)?[:\-]\s*(.+)$`)
)

func parseQANumberedMarkdown(raw string) []qaPair {
	lines := strings.Split(raw, "\n")
	var pairs []qaPair
	var pending *qaPair

	for _, line := range lines {
		if m := numberedQuestionRe.FindStringSubmatch(line); m != nil {
			if pending != nil && pending.Answer != "" {
				pairs = append(pairs, *pending)
			}
			pending = &qaPair{Question: strings.TrimSpace(m[1])}
			continue
		}
		if m := markdownAnswerRe.FindStringSubmatch(line); m != nil && pending != nil {
			pending.Answer = strings.TrimSpace(m[1])
		}
	}
	if pending != nil && pending.Answer != "" {
		pairs = append(pairs, *pending)
	}
	return pairs
}

var (
	qLineRe = regexp.MustCompile(`(?i)^\s*Q[:\.]\s*(.+)$`)
	aLineRe = regexp.MustCompile(`(?i)^\s*A[:\.]\s*(.+)$`)
)

func parseQAColonLines(raw string) []qaPair {
	lines := strings.Split(raw, "\n")
	var pairs []qaPair
	var pending *qaPair

	for _, line := range lines {
		if m := qLineRe.FindStringSubmatch(line); m != nil {
			if pending != nil && pending.Answer != "" {
				pairs = append(pairs, *pending)
			}
			pending = &qaPair{Question: strings.TrimSpace(m[1])}
			continue
		}
		if m := aLineRe.FindStringSubmatch(line); m != nil && pending != nil {
			pending.Answer = strings.TrimSpace(m[1])
		}
	}
	if pending != nil && pending.Answer != "" {
		pairs = append(pairs, *pending)
	}
	return pairs
}

type fallbackCounter struct{}

func (fallbackCounter) Count(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}
