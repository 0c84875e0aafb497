package prober

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PentesterFlow/PanelProbe/internal/parser"
	"github.com/PentesterFlow/PanelProbe/internal/provider"
	"github.com/PentesterFlow/PanelProbe/internal/transport"
)

// decodeObject parses body as a JSON object regardless of Content-Type.
// Anything else, including HTML served as JSON and truncated payloads, yields nil.
func decodeObject(body []byte) map[string]interface{} {
	body = bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	if len(body) == 0 || body[0] != '{' {
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil
	}
	return obj
}

// lookup resolves a dotted path such as "data.token".
func lookup(obj map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = obj
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func lookupString(obj map[string]interface{}, path string) string {
	v, ok := lookup(obj, path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// =============================================================================
// Xtream
// =============================================================================

// xtreamAccepted reports whether an Xtream response authenticates. The API
// answers 200 for bad credentials too, so the user_info/server_info keys are
// the signal, and an explicit auth flag of 0 overrides them.
func xtreamAccepted(resp *transport.Response) (map[string]interface{}, bool) {
	if !resp.OK() {
		return nil, false
	}
	obj := decodeObject(resp.Body)
	if obj == nil {
		return nil, false
	}

	_, hasUser := obj["user_info"]
	_, hasServer := obj["server_info"]
	if !hasUser && !hasServer {
		return nil, false
	}

	if auth, ok := lookup(obj, "user_info.auth"); ok && isZero(auth) {
		return nil, false
	}
	return obj, true
}

func isZero(v interface{}) bool {
	switch t := v.(type) {
	case float64:
		return t == 0
	case string:
		return t == "0"
	case bool:
		return !t
	}
	return false
}

// =============================================================================
// Form login
// =============================================================================

type formVerdict struct {
	accepted bool
	redirect bool
	location string
}

// classifyFormLogin interprets the login POST response.
func classifyFormLogin(resp *transport.Response, prov *provider.Provider) formVerdict {
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound:
		loc := resp.Location()
		return formVerdict{
			accepted: redirectAccepted(loc, prov.AllowsRootRedirect()),
			redirect: true,
			location: loc,
		}
	case http.StatusOK:
		body := string(resp.Body)
		if parser.ContainsFailureMarker(body) {
			return formVerdict{}
		}
		if page, err := parser.ParsePage(body, "http://localhost/"); err == nil && page.HasPasswordField() {
			return formVerdict{}
		}
		return formVerdict{accepted: true}
	}
	return formVerdict{}
}

// redirectAccepted decides whether a post-login Location means success.
func redirectAccepted(location string, allowRoot bool) bool {
	loc := strings.ToLower(strings.TrimSpace(location))
	switch loc {
	case "", ".", "./":
		return false
	}
	if strings.Contains(loc, "/login") {
		return false
	}
	if isRootPath(loc) {
		return allowRoot
	}
	return true
}

func isRootPath(loc string) bool {
	if loc == "/" {
		return true
	}
	u, err := url.Parse(loc)
	if err != nil || !u.IsAbs() {
		return false
	}
	return (u.Path == "" || u.Path == "/") && u.RawQuery == ""
}

// =============================================================================
// JSON login
// =============================================================================

var tokenPaths = []string{"token", "jwt", "access_token", "data.token", "data.access_token"}

type jsonVerdict struct {
	accepted bool
	token    string
	user     interface{}
}

// classifyJSONLogin applies the JSON login heuristics; the first match wins.
// An explicit success:false always rejects.
func classifyJSONLogin(obj map[string]interface{}) jsonVerdict {
	// success:false outranks the token check; some panels return a stale token alongside it.
	if v, ok := obj["success"].(bool); ok && !v {
		return jsonVerdict{}
	}

	verdict := jsonVerdict{user: accountUser(obj)}

	for _, path := range tokenPaths {
		if token := lookupString(obj, path); token != "" {
			verdict.accepted = true
			verdict.token = token
			return verdict
		}
	}

	if v, ok := obj["success"].(bool); ok && v {
		verdict.accepted = true
		return verdict
	}
	if strings.EqualFold(lookupString(obj, "status"), "ok") {
		verdict.accepted = true
		return verdict
	}
	if u, ok := obj["user"]; ok && u != nil {
		verdict.accepted = true
		return verdict
	}

	switch strings.ToLower(lookupString(obj, "result")) {
	case "success", "ok":
		verdict.accepted = true
	}
	return verdict
}

func accountUser(obj map[string]interface{}) interface{} {
	if u, ok := obj["user"]; ok && u != nil {
		return u
	}
	if u, ok := lookup(obj, "data.user"); ok && u != nil {
		return u
	}
	return nil
}

// =============================================================================
// Failure classification
// =============================================================================

// Failure messages, most specific first.
const (
	MsgCredentialsRejected = "Endpoint found, credentials rejected"
	MsgInvalidCredentials  = "Invalid credentials (HTTP 401)"
	MsgNoLoginEndpoint     = "No known login endpoint (HTTP 404)"
	MsgMethodNotAllowed    = "Method not allowed (HTTP 405)"
	MsgAccessDenied        = "Access denied (HTTP 403), possible WAF/Cloudflare protection"
	MsgAuthFailed          = "Authentication failed: no strategy accepted the credentials"
)

// classifyFailure explains an exhausted probe from its attempts.
func classifyFailure(attempts []Attempt, fallback string) string {
	if fallback == "" {
		fallback = MsgAuthFailed
	}
	if len(attempts) == 0 {
		return fallback
	}

	for _, a := range attempts {
		if respondedAsAuthEndpoint(a.Body) {
			return MsgCredentialsRejected
		}
	}

	last := attempts[len(attempts)-1]
	switch last.Status {
	case http.StatusUnauthorized:
		return MsgInvalidCredentials
	case http.StatusNotFound:
		return MsgNoLoginEndpoint
	case http.StatusMethodNotAllowed:
		return MsgMethodNotAllowed
	case http.StatusForbidden:
		if last.Challenge != "" {
			return fmt.Sprintf("%s (%s challenge)", MsgAccessDenied, last.Challenge)
		}
		return MsgAccessDenied
	}

	if last.Status != 0 && !last.OK {
		return fmt.Sprintf("HTTP %d: %s", last.Status, snippet([]byte(last.Body), 200))
	}
	if last.Error != "" {
		return fmt.Sprintf("%s (last error: %s)", fallback, last.Error)
	}
	return fallback
}

func respondedAsAuthEndpoint(body string) bool {
	return strings.Contains(body, `"result"`) || strings.Contains(body, `"success"`)
}
