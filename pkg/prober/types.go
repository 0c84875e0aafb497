package prober

import (
	"net/url"
	"strings"

	"github.com/PentesterFlow/PanelProbe/internal/errors"
	"github.com/PentesterFlow/PanelProbe/internal/parser"
	"github.com/PentesterFlow/PanelProbe/internal/tokeninfo"
)

// Strategy labels reported in Result.Type.
const (
	TypeXtream          = "Xtream API"
	TypeSessionVerified = "Session Login (verified)"
	TypeSession         = "Session Login"
	TypeJSON            = "JSON API"
	TypeConnectivity    = "Connectivity Check"
)

// Strategy names recorded on attempts.
const (
	StrategyDiscovery    = "discovery"
	StrategyXtream       = "xtream"
	StrategyForm         = "form"
	StrategyVerify       = "verify"
	StrategyJSON         = "json"
	StrategyConnectivity = "connectivity"
)

// Step is a caller-supplied group of candidate endpoints.
type Step struct {
	Type      string   `json:"type" yaml:"type"`
	Endpoints []string `json:"endpoints" yaml:"endpoints"`
}

// Request is the input of one probe.
type Request struct {
	BaseURL        string                 `json:"baseUrl"`
	Username       string                 `json:"username"`
	Password       string                 `json:"password"`
	ProviderID     string                 `json:"providerId,omitempty"`
	ExtraHeaders   map[string]string      `json:"extraHeaders,omitempty"`
	CFClearance    string                 `json:"cf_clearance,omitempty"`
	Cookie         string                 `json:"cookie,omitempty"`
	EndpointPath   string                 `json:"endpointPath,omitempty"`
	EndpointMethod string                 `json:"endpointMethod,omitempty"`
	LoginPayload   map[string]interface{} `json:"loginPayload,omitempty"`
	TestSteps      []Step                 `json:"testSteps,omitempty"`
}

// Validate checks the required fields. It performs no network activity.
func (r *Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.BaseURL) == "" {
		missing = append(missing, "baseUrl")
	}
	if strings.TrimSpace(r.Username) == "" {
		missing = append(missing, "username")
	}
	if r.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return errors.NewValidationError("missing required parameters: " + strings.Join(missing, ", "))
	}

	u, err := url.Parse(normalizeBaseURL(r.BaseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewValidationError("baseUrl must be an absolute http(s) URL")
	}
	return nil
}

// normalized returns a copy with the base URL trimmed of trailing slashes.
func (r Request) normalized() Request {
	r.BaseURL = normalizeBaseURL(r.BaseURL)
	r.Username = strings.TrimSpace(r.Username)
	r.EndpointMethod = strings.ToUpper(strings.TrimSpace(r.EndpointMethod))
	return r
}

func normalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// cookieSeed combines the caller's cookie string and cf_clearance value.
func (r *Request) cookieSeed() string {
	parts := make([]string, 0, 2)
	if c := strings.TrimSpace(r.Cookie); c != "" {
		parts = append(parts, c)
	}
	if cf := strings.TrimSpace(r.CFClearance); cf != "" {
		parts = append(parts, "cf_clearance="+cf)
	}
	return strings.Join(parts, "; ")
}

// Attempt records one outbound HTTP call.
type Attempt struct {
	Strategy   string `json:"strategy"`
	Method     string `json:"method"`
	URL        string `json:"url"`
	Status     int    `json:"status"`
	OK         bool   `json:"ok"`
	Body       string `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
	Challenge  string `json:"challenge,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Account summarizes what the panel revealed about the authenticated user.
type Account struct {
	Status        string          `json:"status"`
	User          interface{}     `json:"user"`
	TokenReceived bool            `json:"token_received"`
	Token         *tokeninfo.Info `json:"token,omitempty"`
}

// Debug describes the last attempt of a failed probe.
type Debug struct {
	URL      string `json:"url"`
	Method   string `json:"method"`
	Status   int    `json:"status"`
	Response string `json:"response"`
}

// Result is the single outcome of a probe.
type Result struct {
	ID         string        `json:"id,omitempty"`
	Success    bool          `json:"success"`
	Endpoint   string        `json:"endpoint,omitempty"`
	Type       string        `json:"type,omitempty"`
	Account    *Account      `json:"account,omitempty"`
	Data       interface{}   `json:"data,omitempty"`
	Details    string        `json:"details,omitempty"`
	Debug      *Debug        `json:"debug,omitempty"`
	Logs       []Attempt     `json:"logs"`
	Discovery  *parser.Hints `json:"discovery,omitempty"`
	DurationMS int64         `json:"duration_ms"`
}

// LastAttempt returns the final recorded attempt, if any.
func (r *Result) LastAttempt() (Attempt, bool) {
	if len(r.Logs) == 0 {
		return Attempt{}, false
	}
	return r.Logs[len(r.Logs)-1], true
}
