package prober

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PentesterFlow/PanelProbe/internal/logger"
	"github.com/PentesterFlow/PanelProbe/internal/metrics"
	"github.com/PentesterFlow/PanelProbe/internal/provider"
)

// =============================================================================
// Helpers
// =============================================================================

// panel is a stub reseller panel that records every request it receives.
type panel struct {
	*httptest.Server
	mux *http.ServeMux

	mu       sync.Mutex
	requests []recorded
}

type recorded struct {
	Method string
	Path   string
	Header http.Header
	Form   map[string][]string
	Body   []byte
}

func newPanel(t *testing.T) *panel {
	t.Helper()
	p := &panel{mux: http.NewServeMux()}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()}
		if r.Header.Get("Content-Type") == "application/x-www-form-urlencoded" {
			r.ParseForm()
			rec.Form = r.PostForm
		} else if r.Body != nil {
			rec.Body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(rec.Body))
		}
		p.mu.Lock()
		p.requests = append(p.requests, rec)
		p.mu.Unlock()
		p.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(p.Close)
	return p
}

func (p *panel) seen() []recorded {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]recorded, len(p.requests))
	copy(out, p.requests)
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newTestProber(t *testing.T, opts ...Option) *Prober {
	t.Helper()
	base := []Option{
		WithLogger(logger.Nop()),
		WithMetrics(metrics.New()),
		WithRateLimit(0, 1),
		WithTimeouts(2*time.Second, 2*time.Second),
	}
	p, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func request(base string) Request {
	return Request{
		BaseURL:  base + "/",
		Username: "reseller",
		Password: "s3cret!",
	}
}

const loginHTML = `<html><head><meta name="csrf-token" content="meta-tok"></head><body>
<form action="/login" method="post">
	<input type="hidden" name="_token" value="csrf-tok">
	<input type="text" name="username">
	<input type="password" name="password">
</form></body></html>`

func serveLoginPage(p *panel, onPost http.HandlerFunc) {
	p.mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.SetCookie(w, &http.Cookie{Name: "panel_session", Value: "abc"})
			http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: "xsrf%3D1"})
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(loginHTML))
			return
		}
		onPost(w, r)
	})
}

func redirectTo(location string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", location)
		w.WriteHeader(http.StatusFound)
	}
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestProbe_Validation(t *testing.T) {
	srv := newPanel(t)
	p := newTestProber(t)

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"missing base", Request{Username: "u", Password: "p"}, "baseUrl"},
		{"missing username", Request{BaseURL: srv.URL, Password: "p"}, "username"},
		{"missing password", Request{BaseURL: srv.URL, Username: "u"}, "password"},
		{"blank username", Request{BaseURL: srv.URL, Username: "  ", Password: "p"}, "username"},
		{"all missing", Request{}, "baseUrl, username, password"},
		{"bad scheme", Request{BaseURL: "ftp://panel.test", Username: "u", Password: "p"}, "http(s)"},
		{"no host", Request{BaseURL: "http://", Username: "u", Password: "p"}, "http(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Probe(context.Background(), tt.req)
			if res.Success {
				t.Fatal("validation failure must not succeed")
			}
			if len(res.Logs) != 0 {
				t.Errorf("len(Logs) = %d, want 0", len(res.Logs))
			}
			if res.Logs == nil {
				t.Error("Logs should be an empty list, not nil")
			}
			if !strings.Contains(res.Details, tt.want) {
				t.Errorf("Details = %q, want it to mention %q", res.Details, tt.want)
			}
		})
	}

	if n := len(srv.seen()); n != 0 {
		t.Errorf("validation failures made %d requests", n)
	}
	if p.Metrics().Snapshot().ProbesInvalid != int64(len(tests)) {
		t.Errorf("ProbesInvalid = %d", p.Metrics().Snapshot().ProbesInvalid)
	}
}

// =============================================================================
// Xtream Tests
// =============================================================================

func TestProbe_XtreamSuccess(t *testing.T) {
	srv := newPanel(t)
	srv.mux.HandleFunc("/player_api.php", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("username") != "reseller" || r.URL.Query().Get("password") != "s3cret!" {
			writeJSON(w, 200, map[string]interface{}{"user_info": map[string]interface{}{"auth": 0}})
			return
		}
		writeJSON(w, 200, map[string]interface{}{
			"user_info":   map[string]interface{}{"status": "Active", "max_connections": "2"},
			"server_info": map[string]interface{}{"url": "panel.test"},
		})
	})

	p := newTestProber(t)
	res := p.Probe(context.Background(), request(srv.URL))

	if !res.Success {
		t.Fatalf("Probe() failed: %s", res.Details)
	}
	if !strings.Contains(res.Type, "Xtream") {
		t.Errorf("Type = %q, want Xtream", res.Type)
	}
	if res.Endpoint != srv.URL+"/player_api.php" {
		t.Errorf("Endpoint = %q", res.Endpoint)
	}
	if res.Account == nil || res.Account.User == nil {
		t.Fatal("account.user should be populated")
	}
	if res.Account.Status != "Active" {
		t.Errorf("Account.Status = %q", res.Account.Status)
	}

	// discovery GET, then the Xtream call
	if len(res.Logs) != 2 {
		t.Fatalf("len(Logs) = %d, want 2: %+v", len(res.Logs), res.Logs)
	}
	xt := res.Logs[1]
	if strings.Contains(xt.URL, "s3cret") {
		t.Errorf("attempt URL leaks the password: %s", xt.URL)
	}
	if !strings.Contains(xt.URL, "REDACTED") || !strings.Contains(xt.URL, "username=reseller") {
		t.Errorf("attempt URL = %s", xt.URL)
	}
	if res.Discovery == nil {
		t.Error("unhinted probes should return discovery hints")
	}
}

func TestProbe_XtreamStatusGate(t *testing.T) {
	srv := newPanel(t)
	srv.mux.HandleFunc("/player_api.php", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"user_info": map[string]interface{}{}})
	})

	p := newTestProber(t)
	req := request(srv.URL)
	req.ProviderID = "xtream"
	res := p.Probe(context.Background(), req)

	if res.Success {
		t.Fatalf("403 with user_info must not succeed: %+v", res)
	}
	if res.Logs[0].Status != http.StatusForbidden || res.Logs[0].Strategy != StrategyXtream {
		t.Errorf("first attempt = %+v", res.Logs[0])
	}
	for _, a := range res.Logs {
		if a.Strategy == StrategyDiscovery {
			t.Error("hinted probes should skip discovery")
		}
	}
}

func TestProbe_XtreamFallsThroughPaths(t *testing.T) {
	srv := newPanel(t)
	srv.mux.HandleFunc("/player_api.php", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("<html>not json</html>"))
	})
	srv.mux.HandleFunc("/panel_api.php", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`{"user_info":{"status":"Active"}}`))
	})

	p := newTestProber(t)
	req := request(srv.URL)
	req.ProviderID = "xui"
	res := p.Probe(context.Background(), req)

	if !res.Success || res.Endpoint != srv.URL+"/panel_api.php" {
		t.Fatalf("expected success on /panel_api.php, got %+v", res)
	}
	if len(res.Logs) != 2 {
		t.Errorf("len(Logs) = %d, want 2", len(res.Logs))
	}
}

// =============================================================================
// Form Login Tests
// =============================================================================

func TestProbe_FormRedirectHeuristic(t *testing.T) {
	plain := provider.Provider{ID: "plainform", Name: "Plain", Dialect: provider.DialectForm}

	tests := []struct {
		name     string
		provider string
		location string
		want     bool
	}{
		{"dashboard", "plainform", "/dashboard", true},
		{"absolute dashboard", "plainform", "https://panel.test/home", true},
		{"back to login", "plainform", "/login", false},
		{"login with error", "plainform", "/Login?error=1", false},
		{"root for root provider", "koffice", "/", true},
		{"root for plain provider", "plainform", "/", false},
		{"empty", "plainform", "", false},
		{"dot", "plainform", "./", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newPanel(t)
			serveLoginPage(srv, redirectTo(tt.location))

			p := newTestProber(t, WithProviders(plain))
			req := request(srv.URL)
			req.ProviderID = tt.provider
			res := p.Probe(context.Background(), req)

			if res.Success != tt.want {
				t.Fatalf("Success = %v, want %v (%s)", res.Success, tt.want, res.Details)
			}
			if tt.want && res.Type != TypeSession {
				t.Errorf("Type = %q, want %q", res.Type, TypeSession)
			}
		})
	}
}

func TestProbe_FormSubmission(t *testing.T) {
	srv := newPanel(t)
	serveLoginPage(srv, redirectTo("/dashboard"))

	p := newTestProber(t)
	req := request(srv.URL)
	req.ProviderID = "koffice"
	req.CFClearance = "cf-value"
	req.ExtraHeaders = map[string]string{"X-Panel-Client": "probe"}

	res := p.Probe(context.Background(), req)
	if !res.Success {
		t.Fatalf("Probe() failed: %s", res.Details)
	}

	var post *recorded
	for _, r := range srv.seen() {
		if r.Method == http.MethodPost && r.Path == "/login" {
			r := r
			post = &r
			break
		}
	}
	if post == nil {
		t.Fatal("no login POST recorded")
	}

	form := post.Form
	for field, want := range map[string]string{
		"try_login":  "1",
		"_token":     "csrf-tok",
		"csrf_token": "csrf-tok",
		"username":   "reseller",
		"password":   "s3cret!",
	} {
		if got := form[field]; len(got) != 1 || got[0] != want {
			t.Errorf("form[%s] = %v, want %q", field, got, want)
		}
	}

	cookie := post.Header.Get("Cookie")
	for _, want := range []string{"cf_clearance=cf-value", "panel_session=abc"} {
		if !strings.Contains(cookie, want) {
			t.Errorf("Cookie = %q, missing %q", cookie, want)
		}
	}
	if post.Header.Get("X-XSRF-TOKEN") != "xsrf=1" {
		t.Errorf("X-XSRF-TOKEN = %q", post.Header.Get("X-XSRF-TOKEN"))
	}
	if post.Header.Get("Origin") != srv.URL {
		t.Errorf("Origin = %q", post.Header.Get("Origin"))
	}
	if post.Header.Get("X-Panel-Client") != "probe" {
		t.Error("extra headers should be merged into every call")
	}
}

func TestProbe_FormOmitTryLogin(t *testing.T) {
	srv := newPanel(t)
	serveLoginPage(srv, redirectTo("/home"))

	omit := provider.Provider{ID: "lean", Dialect: provider.DialectForm, OmitTryLogin: true}
	p := newTestProber(t, WithProviders(omit))
	req := request(srv.URL)
	req.ProviderID = "lean"
	p.Probe(context.Background(), req)

	for _, r := range srv.seen() {
		if r.Method != http.MethodPost || r.Path != "/login" || r.Form == nil {
			continue
		}
		if _, ok := r.Form["try_login"]; ok {
			t.Error("try_login should be omitted")
		}
		if _, ok := r.Form["csrf_token"]; ok {
			t.Error("csrf_token should be omitted")
		}
		if r.Form["_token"][0] != "csrf-tok" {
			t.Errorf("_token = %v", r.Form["_token"])
		}
		return
	}
	t.Fatal("no form POST recorded")
}

func TestProbe_FormVerified(t *testing.T) {
	srv := newPanel(t)
	serveLoginPage(srv, redirectTo("/dashboard"))
	srv.mux.HandleFunc("/dashboard/stats", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Cookie"), "panel_session=abc") ||
			r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, 200, map[string]interface{}{"credits": 120, "username": "reseller"})
	})

	p := newTestProber(t)
	req := request(srv.URL)
	req.ProviderID = "koffice"
	res := p.Probe(context.Background(), req)

	if !res.Success || res.Type != TypeSessionVerified {
		t.Fatalf("expected verified session, got %+v", res)
	}
	user, ok := res.Account.User.(map[string]interface{})
	if !ok || user["username"] != "reseller" {
		t.Errorf("Account.User = %v", res.Account.User)
	}
}

func TestProbe_Form200(t *testing.T) {
	plain := provider.Provider{ID: "plainform", Dialect: provider.DialectForm}

	tests := []struct {
		name   string
		body   string
		verify bool
		want   bool
	}{
		{"failure marker", `<div class="login_error">Invalid password</div>`, true, false},
		{"login form re-rendered", loginHTML, true, false},
		{"clean page verified", `<h1>Welcome back</h1>`, true, true},
		{"clean page unverified", `<h1>Welcome back</h1>`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newPanel(t)
			serveLoginPage(srv, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			if tt.verify {
				srv.mux.HandleFunc("/api/user", func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, 200, map[string]interface{}{"id": 7})
				})
			}

			p := newTestProber(t, WithProviders(plain))
			req := request(srv.URL)
			req.ProviderID = "plainform"
			res := p.Probe(context.Background(), req)

			if res.Success != tt.want {
				t.Fatalf("Success = %v, want %v (%s)", res.Success, tt.want, res.Details)
			}
			if tt.want && res.Type != TypeSessionVerified {
				t.Errorf("Type = %q", res.Type)
			}
		})
	}
}

// =============================================================================
// JSON Login Tests
// =============================================================================

func TestProbe_JSONProviderToken(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "reseller", "exp": time.Now().Add(time.Hour).Unix()})
	raw, err := tok.SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}

	srv := newPanel(t)
	srv.mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "reseller" || body["password"] != "s3cret!" {
			writeJSON(w, 200, map[string]interface{}{"success": false})
			return
		}
		if _, ok := body["twofactor_code"]; !ok {
			t.Error("default payload should carry two-factor fields")
		}
		writeJSON(w, 200, map[string]interface{}{
			"data": map[string]interface{}{
				"token": raw,
				"user":  map[string]interface{}{"id": 1},
			},
		})
	})

	p := newTestProber(t)
	req := request(srv.URL)
	req.ProviderID = "sigma"
	res := p.Probe(context.Background(), req)

	if !res.Success || res.Type != TypeJSON {
		t.Fatalf("expected JSON success, got %+v", res)
	}
	if !res.Account.TokenReceived {
		t.Error("TokenReceived should be true")
	}
	if res.Account.Token == nil || res.Account.Token.Subject != "reseller" {
		t.Errorf("token claims not decoded: %+v", res.Account.Token)
	}
	if res.Account.User == nil {
		t.Error("data.user should populate account.user")
	}
	for _, a := range res.Logs {
		if a.Strategy != StrategyJSON {
			t.Errorf("json providers should only run the JSON strategy, saw %s", a.Strategy)
		}
	}
}

func TestProbe_JSONOverridePayload(t *testing.T) {
	srv := newPanel(t)
	srv.mux.HandleFunc("/custom/signin", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		nested, _ := body["auth"].(map[string]interface{})
		if body["email"] != "reseller" || nested["secret"] != "s3cret!" || body["remember"] != true {
			writeJSON(w, 200, map[string]interface{}{"result": "error"})
			return
		}
		writeJSON(w, 200, map[string]interface{}{"result": "success"})
	})

	p := newTestProber(t)
	req := request(srv.URL)
	req.ProviderID = "club"
	req.EndpointPath = "custom/signin"
	req.EndpointMethod = "put"
	req.LoginPayload = map[string]interface{}{
		"email":    "{{username}}",
		"auth":     map[string]interface{}{"secret": "{{password}}"},
		"remember": true,
	}

	res := p.Probe(context.Background(), req)
	if !res.Success || res.Endpoint != srv.URL+"/custom/signin" {
		t.Fatalf("expected success on override, got %+v", res)
	}
	if res.Logs[0].Method != http.MethodPut {
		t.Errorf("override method = %s, want PUT", res.Logs[0].Method)
	}
}

// =============================================================================
// Failure Classification Tests
// =============================================================================

func TestProbe_FailurePrefersRespondingEndpoint(t *testing.T) {
	srv := newPanel(t)
	srv.mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"result": "error", "message": "bad credentials"})
	})

	p := newTestProber(t)
	req := request(srv.URL)
	req.ProviderID = "club"
	res := p.Probe(context.Background(), req)

	if res.Success {
		t.Fatal("Probe() should fail")
	}
	last, _ := res.LastAttempt()
	if last.Status != http.StatusNotFound {
		t.Fatalf("last attempt status = %d, want 404", last.Status)
	}
	if res.Details != MsgCredentialsRejected {
		t.Errorf("Details = %q, want %q", res.Details, MsgCredentialsRejected)
	}
	if res.Debug == nil || res.Debug.Status != http.StatusNotFound || res.Debug.Method != http.MethodPost {
		t.Errorf("Debug = %+v", res.Debug)
	}
}

func TestProbe_FailureNoEndpoint(t *testing.T) {
	srv := newPanel(t)

	p := newTestProber(t)
	res := p.Probe(context.Background(), request(srv.URL))

	if res.Success {
		t.Fatal("Probe() should fail")
	}
	if res.Details != MsgNoLoginEndpoint {
		t.Errorf("Details = %q", res.Details)
	}
	// discovery + 3 xtream + form GET/POST + 7 JSON defaults
	if len(res.Logs) != 13 {
		t.Errorf("len(Logs) = %d, want 13", len(res.Logs))
	}
}

// =============================================================================
// Timeout Tests
// =============================================================================

func TestProbe_TimeoutProceeds(t *testing.T) {
	srv := newPanel(t)
	srv.mux.HandleFunc("/player_api.php", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	})
	srv.mux.HandleFunc("/panel_api.php", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"user_info": map[string]interface{}{"status": "Active"}})
	})

	p := newTestProber(t, WithTimeouts(200*time.Millisecond, 200*time.Millisecond))
	req := request(srv.URL)
	req.ProviderID = "xtream"

	start := time.Now()
	res := p.Probe(context.Background(), req)
	elapsed := time.Since(start)

	if elapsed > 3*time.Second {
		t.Errorf("Probe() blocked for %v", elapsed)
	}
	if !res.Success || res.Endpoint != srv.URL+"/panel_api.php" {
		t.Fatalf("expected success after timeout, got %+v", res)
	}
	if !strings.Contains(res.Logs[0].Error, "timed out") {
		t.Errorf("first attempt error = %q, want timeout", res.Logs[0].Error)
	}
	if res.Logs[0].Status != 0 || res.Logs[0].OK {
		t.Errorf("timed out attempt = %+v", res.Logs[0])
	}
}

// =============================================================================
// Connectivity Tests
// =============================================================================

func TestProbe_ConnectivityNeverPosts(t *testing.T) {
	srv := newPanel(t)
	serveLoginPage(srv, func(w http.ResponseWriter, r *http.Request) {
		t.Error("connectivity check must not submit credentials")
	})

	p := newTestProber(t)
	req := request(srv.URL)
	req.ProviderID = "clouddy"
	res := p.Probe(context.Background(), req)

	if !res.Success || res.Type != TypeConnectivity {
		t.Fatalf("expected connectivity success, got %+v", res)
	}
	if len(res.Logs) != 1 || res.Logs[0].Method != http.MethodGet {
		t.Errorf("Logs = %+v, want a single GET", res.Logs)
	}
	for _, r := range srv.seen() {
		if r.Method == http.MethodPost {
			t.Errorf("unexpected POST to %s", r.Path)
		}
	}
}

func TestProbe_ConnectivityNoForm(t *testing.T) {
	srv := newPanel(t)
	srv.mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<h1>Maintenance</h1>"))
	})

	p := newTestProber(t)
	req := request(srv.URL)
	req.ProviderID = "clouddy"
	res := p.Probe(context.Background(), req)

	if res.Success {
		t.Fatal("a page without a login form should fail")
	}
	if !strings.Contains(res.Details, "login form") {
		t.Errorf("Details = %q", res.Details)
	}
}

// =============================================================================
// Engine Property Tests
// =============================================================================

func TestProbe_Idempotent(t *testing.T) {
	srv := newPanel(t)
	serveLoginPage(srv, redirectTo("/dashboard"))

	p := newTestProber(t)
	req := request(srv.URL)

	first := p.Probe(context.Background(), req)
	second := p.Probe(context.Background(), req)

	if first.Success != second.Success || first.Endpoint != second.Endpoint || first.Type != second.Type {
		t.Errorf("runs differ: %v %q %q vs %v %q %q",
			first.Success, first.Endpoint, first.Type, second.Success, second.Endpoint, second.Type)
	}
	if len(first.Logs) != len(second.Logs) {
		t.Errorf("attempt counts differ: %d vs %d", len(first.Logs), len(second.Logs))
	}
}

func TestProbe_Concurrent(t *testing.T) {
	srv := newPanel(t)
	srv.mux.HandleFunc("/player_api.php", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("username") == "good" {
			writeJSON(w, 200, map[string]interface{}{"user_info": map[string]interface{}{"status": "Active"}})
			return
		}
		writeJSON(w, 200, map[string]interface{}{"user_info": map[string]interface{}{"auth": 0}})
	})

	p := newTestProber(t)
	var wg sync.WaitGroup
	results := make([]*Result, 10)

	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := request(srv.URL)
			req.ProviderID = "xtream"
			if i%2 == 0 {
				req.Username = "good"
			}
			results[i] = p.Probe(context.Background(), req)
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		if want := i%2 == 0; res.Success != want {
			t.Errorf("probe %d Success = %v, want %v", i, res.Success, want)
		}
	}
}

func TestStream_ObservesAttempts(t *testing.T) {
	srv := newPanel(t)
	p := newTestProber(t)

	var seen []Attempt
	res := p.Stream(context.Background(), request(srv.URL), func(a Attempt) {
		seen = append(seen, a)
	})

	if len(seen) != len(res.Logs) {
		t.Errorf("observed %d attempts, result has %d", len(seen), len(res.Logs))
	}
}

func TestProbe_RecoversInternalErrors(t *testing.T) {
	srv := newPanel(t)
	p := newTestProber(t)

	res := p.Stream(context.Background(), request(srv.URL), func(a Attempt) {
		panic("observer exploded")
	})

	if res.Success {
		t.Fatal("a panicking probe must fail")
	}
	if !strings.HasPrefix(res.Details, "internal error") {
		t.Errorf("Details = %q", res.Details)
	}
	if strings.Contains(res.Details, "goroutine") {
		t.Error("Details must not carry a stack trace")
	}
	if len(res.Logs) != 1 {
		t.Errorf("logs recorded before the failure should be kept, got %d", len(res.Logs))
	}
}

func TestProbe_CancelledContext(t *testing.T) {
	srv := newPanel(t)
	p := newTestProber(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := p.Probe(ctx, request(srv.URL))

	if res.Success {
		t.Fatal("cancelled probe should fail")
	}
	if len(srv.seen()) != 0 {
		t.Errorf("cancelled probe made %d requests", len(srv.seen()))
	}
}

func TestProbe_Metrics(t *testing.T) {
	srv := newPanel(t)
	srv.mux.HandleFunc("/player_api.php", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"server_info": map[string]interface{}{}})
	})

	m := metrics.New()
	p := newTestProber(t, WithMetrics(m))
	req := request(srv.URL)
	req.ProviderID = "xtream"
	p.Probe(context.Background(), req)

	snap := m.Snapshot()
	if snap.ProbesSuccess != 1 || snap.Strategies[TypeXtream] != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.AttemptsTotal != 1 {
		t.Errorf("AttemptsTotal = %d, want 1", snap.AttemptsTotal)
	}
}

// =============================================================================
// Run Logging Tests
// =============================================================================

func bufferLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.New(logger.Config{Level: logger.DebugLevel, Output: buf})
}

func TestRun_LogsOverloadPacing(t *testing.T) {
	p := newPanel(t)
	p.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	var buf bytes.Buffer
	pr := newTestProber(t, WithLogger(bufferLogger(&buf)), WithRateLimit(50, 1))
	req := request(p.URL)
	req.ProviderID = "xtream"

	if res := pr.Probe(context.Background(), req); res.Success {
		t.Fatal("an overloaded panel must not succeed")
	}
	out := buf.String()
	if !strings.Contains(out, `"throttled":`) || !strings.Contains(out, "pacing reduced") {
		t.Errorf("expected pacing warning, log = %s", out)
	}
}

func TestRun_QuietOnHealthyPanel(t *testing.T) {
	p := newPanel(t)
	p.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>maintenance</body></html>"))
	})

	var buf bytes.Buffer
	pr := newTestProber(t, WithLogger(bufferLogger(&buf)))
	pr.Probe(context.Background(), request(p.URL))

	out := buf.String()
	if strings.Contains(out, "pacing reduced") {
		t.Errorf("no overload was signalled, log = %s", out)
	}
	if !strings.Contains(out, "revealed no forms") {
		t.Errorf("empty discovery should be logged, log = %s", out)
	}
	if strings.Contains(out, "Discovery hints") {
		t.Errorf("empty discovery must not report hints, log = %s", out)
	}
}
