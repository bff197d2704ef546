package splitter

import (
	"context"
	"strings"
)

// wikiSplitter cuts by top-level (#) headings only, treating any ##/###
// subheadings as chunk-level structure rather than chapter boundaries.
type wikiSplitter struct {
	chunker
}

func (s *wikiSplitter) SplitChapters(ctx context.Context, content string) ([]Chapter, error) {
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
		if isTopLevelHeading(line) {
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

func (s *wikiSplitter) SplitChunks(ctx context.Context, chapter Chapter) ([]Chunk, error) {
	return s.chunkContent(chapter.Content), nil
}
