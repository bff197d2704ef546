package parser

import "strings"

// ToMarkdown renders a ParseResult's section tree to a single Markdown
// body, the canonical post-conversion format every downstream splitter
// reads (section 4.4 stage 1: "source bytes/URL -> Markdown plus
// extracted title if absent"). Each Section becomes an ATX heading at its
// Level (clamped to 1-6) followed by its content; Children are rendered
// recursively directly beneath their parent.
func ToMarkdown(result *ParseResult) (content string, title string) {
	if result == nil || len(result.Sections) == 0 {
		return "", ""
	}

	var b strings.Builder
	for i, s := range result.Sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		writeSectionMarkdown(&b, s)
	}

	title = extractTitle(result.Sections)
	return strings.TrimSpace(b.String()), title
}

func writeSectionMarkdown(b *strings.Builder, s Section) {
	level := s.Level
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	if s.Heading != "" {
		b.WriteString(strings.Repeat("#", level))
		b.WriteString(" ")
		b.WriteString(s.Heading)
		b.WriteString("\n\n")
	}
	if s.Content != "" {
		b.WriteString(s.Content)
	}
	for _, child := range s.Children {
		b.WriteString("\n\n")
		writeSectionMarkdown(b, child)
	}
}

// extractTitle returns the first top-level (Level<=1) section heading, used
// when a Document is uploaded without an explicit title.
func extractTitle(sections []Section) string {
	for _, s := range sections {
		if s.Heading != "" && s.Level <= 1 {
			return s.Heading
		}
	}
	for _, s := range sections {
		if s.Heading != "" {
			return s.Heading
		}
	}
	return ""
}
