package parser

import (
	"regexp"
	"strings"
)

// csrfSelectors are tried in order; the first non-empty value wins.
var csrfSelectors = []struct {
	selector string
	attr     string
}{
	{`input[name="_token"]`, "value"},
	{`input[name="csrf_token"]`, "value"},
	{`meta[name="csrf-token"]`, "content"},
}

// Fallback patterns for pages too broken for the HTML parser to yield a tree.
var csrfPatterns = []*regexp.Regexp{
	regexp.MustCompile(`name=["']_token["'][^>]*value=["']([^"']+)["']`),
	regexp.MustCompile(`name=["']csrf_token["'][^>]*value=["']([^"']+)["']`),
	regexp.MustCompile(`<meta[^>]+name=["']csrf-token["'][^>]*content=["']([^"']+)["']`),
}

// CSRFToken returns the first CSRF token found on the page.
func (p *Page) CSRFToken() string {
	for _, s := range csrfSelectors {
		sel := p.doc.Find(s.selector)
		for i := range sel.Nodes {
			if v, ok := sel.Eq(i).Attr(s.attr); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

// ExtractCSRFToken scans raw HTML for a CSRF token. It parses the document
// when possible and falls back to pattern matching otherwise.
func ExtractCSRFToken(body string) string {
	if page, err := ParsePage(body, "http://localhost/"); err == nil {
		if token := page.CSRFToken(); token != "" {
			return token
		}
	}

	for _, re := range csrfPatterns {
		if m := re.FindStringSubmatch(body); len(m) == 2 && m[1] != "" {
			return m[1]
		}
	}
	return ""
}
