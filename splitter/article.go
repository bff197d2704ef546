package splitter

import (
	"context"
	"strings"
)

// articleSplitter targets scientific articles and technical documentation:
// heading-aware like the generic splitter, but cuts at a denser heading
// level (##, ###, and ####) to keep chapters smaller, matching how these
// formats pack many short sections instead of few long ones.
type articleSplitter struct {
	chunker
}

func (s *articleSplitter) SplitChapters(ctx context.Context, content string) ([]Chapter, error) {
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
		if level := headingLevel(line); level >= 2 && level <= 4 {
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

func (s *articleSplitter) SplitChunks(ctx context.Context, chapter Chapter) ([]Chunk, error) {
	return s.chunkContent(chapter.Content), nil
}
