package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// MarkdownParser handles .md files. Markdown is the system's canonical
// post-conversion content format (see spec Document.content), so this
// parser does no structural decomposition of its own: it hands the raw
// body to the splitter layer, which already knows how to read Markdown
// heading markers (#, ##, ###).
type MarkdownParser struct{}

func (p *MarkdownParser) SupportedFormats() []string { return []string{"md", "markdown"} }

func (p *MarkdownParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading markdown file: %w", err)
	}
	content := string(data)
	if content == "" {
		return &ParseResult{Method: "native"}, nil
	}
	return &ParseResult{
		Sections: []Section{{
			Heading: filepath.Base(path),
			Content: content,
			Level:   1,
			Type:    "section",
		}},
		Method: "native",
	}, nil
}
