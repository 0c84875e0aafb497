package parser

import (
	"regexp"
	"strings"

	"github.com/PentesterFlow/PanelProbe/internal/dedup"
)

// APICall is an HTTP call found in inline JavaScript.
type APICall struct {
	Client string // axios, fetch, jquery
	Method string
	URL    string
}

var apiLiteralPattern = regexp.MustCompile(`["'\x60](/api/[^"'\x60\s]*)["'\x60]`)

var callPatterns = []struct {
	client string
	regex  *regexp.Regexp
	method string
}{
	{"axios", regexp.MustCompile(`axios\.(get|post|put|patch|delete)\s*\(\s*["'\x60]([^"'\x60]+)["'\x60]`), ""},
	{"axios", regexp.MustCompile(`axios\s*\(\s*\{[^}]*url\s*:\s*["'\x60]([^"'\x60]+)["'\x60]`), "GET"},
	{"fetch", regexp.MustCompile(`fetch\s*\(\s*["'\x60]([^"'\x60]+)["'\x60]\s*,\s*\{[^}]*method\s*:\s*["'](\w+)["']`), ""},
	{"fetch", regexp.MustCompile(`fetch\s*\(\s*["'\x60]([^"'\x60]+)["'\x60]`), "GET"},
	{"jquery", regexp.MustCompile(`\$\.(get|post)\s*\(\s*["']([^"']+)["']`), ""},
}

// ExtractAPILiterals returns /api/... string literals, deduplicated in order.
func ExtractAPILiterals(js string) []string {
	matches := apiLiteralPattern.FindAllStringSubmatch(js, -1)
	found := make([]string, 0, len(matches))
	for _, m := range matches {
		found = append(found, m[1])
	}
	return dedup.Unique(found)
}

// ExtractAPICalls returns axios, fetch and jQuery calls with literal URLs.
// A URL is reported once, with the first method seen for it.
func ExtractAPICalls(js string) []APICall {
	seen := dedup.New(8)
	calls := make([]APICall, 0)

	for _, p := range callPatterns {
		for _, m := range p.regex.FindAllStringSubmatch(js, -1) {
			var call APICall
			call.Client = p.client

			switch {
			case p.method != "":
				call.URL, call.Method = m[1], p.method
			case p.client == "fetch":
				call.URL, call.Method = m[1], strings.ToUpper(m[2])
			default:
				call.Method, call.URL = strings.ToUpper(m[1]), m[2]
			}

			if seen.Add(call.URL) {
				calls = append(calls, call)
			}
		}
	}

	return calls
}

// Hints collects everything a login page reveals about its authentication.
type Hints struct {
	FormActions []string  `json:"form_actions,omitempty"`
	APIPaths    []string  `json:"api_paths,omitempty"`
	APICalls    []APICall `json:"api_calls,omitempty"`
	CSRFToken   bool      `json:"csrf_token_found"`
	LoginForm   bool      `json:"login_form"`
	Challenge   string    `json:"challenge,omitempty"`
}

// Empty reports whether nothing useful was found.
func (h *Hints) Empty() bool {
	return len(h.FormActions) == 0 && len(h.APIPaths) == 0 && len(h.APICalls) == 0 &&
		!h.CSRFToken && !h.LoginForm
}

// ExtractHints analyzes a login page body. Script bodies are scanned along
// with the raw document, since bundlers inline API paths in attributes too.
func ExtractHints(body string, pageURL string) (*Hints, error) {
	page, err := ParsePage(body, pageURL)
	if err != nil {
		return nil, err
	}

	hints := &Hints{
		FormActions: page.FormActions(),
		APIPaths:    ExtractAPILiterals(body),
		CSRFToken:   page.CSRFToken() != "",
		LoginForm:   page.HasLoginForm(),
	}

	hints.APICalls = ExtractAPICalls(strings.Join(page.Scripts, "\n"))

	return hints, nil
}
