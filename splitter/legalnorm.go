package splitter

import (
	"context"
	"strings"
)

// legalNormSplitter cuts by article/division markers ("Art. N", "Título",
// "Capítulo", "Seção") rather than Markdown headings, matching how legal
// instruments structure content independent of any Markdown conversion.
type legalNormSplitter struct {
	chunker
}

func (s *legalNormSplitter) SplitChapters(ctx context.Context, content string) ([]Chapter, error) {
	lines := strings.Split(content, "\n")

	var chapters []Chapter
	var title string
	var body strings.Builder
	index := 0

	flush := func() {
		text := strings.TrimSpace(body.String())
		if text == "" {
			return
		}
		if title == "" {
			title = firstNonEmptyLine(text)
		}
		chapters = append(chapters, Chapter{Title: title, Content: text, Index: index})
		index++
		title = ""
		body.Reset()
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isLegalArticleMarker(trimmed) {
			flush()
			title = trimmed
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	if len(chapters) == 0 {
		text := strings.TrimSpace(content)
		if text != "" {
			chapters = append(chapters, Chapter{Title: firstNonEmptyLine(text), Content: text, Index: 0})
		}
	}
	return chapters, nil
}

func (s *legalNormSplitter) SplitChunks(ctx context.Context, chapter Chapter) ([]Chunk, error) {
	return s.chunkContent(chapter.Content), nil
}
