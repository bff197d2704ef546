package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/net/html"
)

// HTMLParser handles .html/.htm files. It walks the DOM and emits one
// Section per heading element (h1-h6), attaching the text that follows
// until the next heading as that section's content — the same shape the
// splitters expect from the Markdown-native parsers.
type HTMLParser struct{}

func (p *HTMLParser) SupportedFormats() []string { return []string{"html", "htm"} }

func (p *HTMLParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading HTML file: %w", err)
	}
	return ParseHTMLBytes(data)
}

// ParseHTMLBytes parses raw HTML (e.g. fetched from a URL upload, which
// never touches disk) the same way HTMLParser.Parse does for a file.
func ParseHTMLBytes(data []byte) (*ParseResult, error) {
	doc, err := html.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	body := findElement(doc, "body")
	if body == nil {
		body = doc
	}

	sections := sectionsFromHTML(body)
	if len(sections) == 0 {
		text := strings.TrimSpace(textContent(body))
		if text == "" {
			return &ParseResult{Method: "native"}, nil
		}
		sections = []Section{{Content: text, Type: "paragraph", Level: 1}}
	}

	return &ParseResult{Sections: sections, Method: "native"}, nil
}

var headingTags = map[string]int{"h1": 1, "h2": 2, "h3": 3, "h4": 4, "h5": 5, "h6": 6}

// sectionsFromHTML walks direct content in document order, starting a new
// Section at each heading element and accumulating text nodes and
// non-heading block elements into the current section's content.
func sectionsFromHTML(n *html.Node) []Section {
	var sections []Section
	var cur *Section

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode {
			if level, ok := headingTags[node.Data]; ok {
				if cur != nil {
					cur.Content = strings.TrimSpace(cur.Content)
					sections = append(sections, *cur)
				}
				cur = &Section{Heading: strings.TrimSpace(textContent(node)), Level: level, Type: "section"}
				return
			}
			if node.Data == "script" || node.Data == "style" {
				return
			}
		}
		if node.Type == html.TextNode {
			text := strings.TrimSpace(node.Data)
			if text != "" {
				if cur == nil {
					cur = &Section{Level: 1, Type: "paragraph"}
				}
				if cur.Content != "" {
					cur.Content += " "
				}
				cur.Content += text
			}
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if node.Type == html.ElementNode && (node.Data == "p" || node.Data == "li" || node.Data == "div") {
			if cur != nil {
				cur.Content += "\n\n"
			}
		}
	}
	walk(n)

	if cur != nil {
		cur.Content = strings.TrimSpace(cur.Content)
		sections = append(sections, *cur)
	}
	return sections
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
