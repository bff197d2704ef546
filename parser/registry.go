package parser

import "fmt"

// Registry dispatches a source file to the parser registered for its format.
// It is the upstream half of document-type handling: format (pdf/docx/html/
// markdown/txt) picks the parser here; content-type (legal-norm/wiki/generic/
// scientific-article/technical-documentation) picks the splitter downstream,
// once the parser has produced Markdown.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds a Registry with the built-in parsers registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{
		&PDFParser{},
		&DOCXParser{},
		&HTMLParser{},
		&MarkdownParser{},
		&TextParser{},
	} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

// Get returns the parser registered for format, or an error if none is.
func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("no parser for format: %s", format)
	}
	return p, nil
}

// Register overrides or adds a parser for format.
func (r *Registry) Register(format string, p Parser) {
	r.parsers[format] = p
}
