package prober

import (
	"net/http"
	"strings"

	"github.com/PentesterFlow/PanelProbe/internal/dedup"
)

// defaultJSONEndpoints are tried after every caller and provider candidate.
var defaultJSONEndpoints = []string{
	"/api/auth/login",
	"/api/login",
	"/api/v1/login",
	"/api/v1/auth/login",
	"/auth/login",
	"/login",
	"/admin/login",
}

type candidate struct {
	URL    string
	Method string
}

// isJSONPostStep reports whether a step type names a JSON-POST step.
func isJSONPostStep(stepType string) bool {
	return strings.Contains(strings.ToLower(stepType), "json")
}

// jsonCandidates assembles the JSON-POST endpoint list in priority order,
// keeping the first occurrence of each resolved URL.
func (r *run) jsonCandidates() []candidate {
	type entry struct {
		endpoint string
		method   string
	}
	entries := make([]entry, 0, 16)

	for _, step := range r.req.TestSteps {
		if isJSONPostStep(step.Type) {
			for _, ep := range step.Endpoints {
				entries = append(entries, entry{ep, http.MethodPost})
			}
		}
	}
	for _, step := range r.req.TestSteps {
		if !isJSONPostStep(step.Type) {
			for _, ep := range step.Endpoints {
				entries = append(entries, entry{ep, http.MethodPost})
			}
		}
	}
	if r.req.EndpointPath != "" {
		method := r.req.EndpointMethod
		if method == "" {
			method = http.MethodPost
		}
		entries = append(entries, entry{r.req.EndpointPath, method})
	}
	if r.provider != nil && r.provider.JSONEndpoint != "" {
		entries = append(entries, entry{r.provider.JSONEndpoint, http.MethodPost})
	}
	for _, ep := range defaultJSONEndpoints {
		entries = append(entries, entry{ep, http.MethodPost})
	}

	seen := dedup.New(len(entries))
	out := make([]candidate, 0, len(entries))
	for _, e := range entries {
		u := resolveEndpoint(r.req.BaseURL, e.endpoint)
		if u == "" || !seen.Add(u) {
			continue
		}
		out = append(out, candidate{URL: u, Method: e.method})
	}
	return out
}

// resolveEndpoint joins a path to the base URL. Absolute URLs are kept.
func resolveEndpoint(base, endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	lower := strings.ToLower(endpoint)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return base + endpoint
}
