package splitter

import (
	"context"
	"strings"
)

// genericSplitter cuts by ## / ### headings, falling back to paragraph
// packing when the document carries no subheadings at all.
type genericSplitter struct {
	chunker
}

func (s *genericSplitter) SplitChapters(ctx context.Context, content string) ([]Chapter, error) {
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
		if level := headingLevel(line); level == 2 || level == 3 {
			flush()
			title = headingTitle(line)
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

func (s *genericSplitter) SplitChunks(ctx context.Context, chapter Chapter) ([]Chunk, error) {
	return s.chunkContent(chapter.Content), nil
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			trimmed = strings.TrimLeft(trimmed, "#")
			return strings.TrimSpace(trimmed)
		}
	}
	return "Untitled"
}
