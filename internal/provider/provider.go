// Package provider holds the closed catalog of known reseller panel families.
package provider

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Dialect is the authentication style a panel family speaks.
type Dialect string

const (
	// DialectXtream panels answer the Xtream-Codes query-parameter API.
	DialectXtream Dialect = "xtream"
	// DialectForm panels render a server-side login form with CSRF protection.
	DialectForm Dialect = "form"
	// DialectJSON panels expose a JSON REST login endpoint.
	DialectJSON Dialect = "json"
	// DialectConnectivity panels block automated logins; only reachability is checked.
	DialectConnectivity Dialect = "connectivity"
)

// Valid reports whether d is a known dialect.
func (d Dialect) Valid() bool {
	switch d {
	case DialectXtream, DialectForm, DialectJSON, DialectConnectivity:
		return true
	}
	return false
}

// Provider describes one panel family.
type Provider struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	Dialect      Dialect  `yaml:"dialect" json:"dialect"`
	LoginPath    string   `yaml:"login_path,omitempty" json:"login_path,omitempty"`
	JSONEndpoint string   `yaml:"json_endpoint,omitempty" json:"json_endpoint,omitempty"`
	VerifyPaths  []string `yaml:"verify_paths,omitempty" json:"verify_paths,omitempty"`

	// RootRedirectSuccess marks families whose authenticated landing page is "/".
	RootRedirectSuccess bool `yaml:"root_redirect_success,omitempty" json:"root_redirect_success,omitempty"`
	// OmitTryLogin drops try_login and csrf_token from the form submission.
	OmitTryLogin bool `yaml:"omit_try_login,omitempty" json:"omit_try_login,omitempty"`
}

// DefaultLoginPath is used when a provider does not override it.
const DefaultLoginPath = "/login"

// DefaultVerifyPaths are lightweight authenticated endpoints tried after a
// form login when the provider lists none.
var DefaultVerifyPaths = []string{
	"/api/dashboard",
	"/dashboard/stats",
	"/api/user",
}

// Login returns the login page path.
func (p *Provider) Login() string {
	if p == nil || p.LoginPath == "" {
		return DefaultLoginPath
	}
	return p.LoginPath
}

// Verify returns the session verification paths.
func (p *Provider) Verify() []string {
	if p == nil || len(p.VerifyPaths) == 0 {
		return DefaultVerifyPaths
	}
	return p.VerifyPaths
}

// AllowsRootRedirect reports whether a redirect to "/" counts as success.
func (p *Provider) AllowsRootRedirect() bool {
	return p != nil && p.RootRedirectSuccess
}

// Validate checks a catalog entry.
func (p *Provider) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("provider id is required")
	}
	if !p.Dialect.Valid() {
		return fmt.Errorf("provider %s: unknown dialect %q", p.ID, p.Dialect)
	}
	if p.Dialect == DialectJSON && p.JSONEndpoint == "" {
		return fmt.Errorf("provider %s: json dialect requires json_endpoint", p.ID)
	}
	return nil
}

// builtin is the catalog shipped with the binary.
var builtin = []Provider{
	{
		ID:      "xtream",
		Name:    "Xtream Codes",
		Dialect: DialectXtream,
	},
	{
		ID:      "xui",
		Name:    "XUI.one",
		Dialect: DialectXtream,
	},
	{
		ID:                  "koffice",
		Name:                "kOffice",
		Dialect:             DialectForm,
		VerifyPaths:         []string{"/dashboard/stats", "/api/dashboard"},
		RootRedirectSuccess: true,
	},
	{
		ID:           "sigma",
		Name:         "Sigma",
		Dialect:      DialectJSON,
		JSONEndpoint: "/api/auth/login",
	},
	{
		ID:           "club",
		Name:         "Club",
		Dialect:      DialectJSON,
		JSONEndpoint: "/api/login",
	},
	{
		ID:           "clouddy",
		Name:         "Clouddy",
		Dialect:      DialectConnectivity,
		OmitTryLogin: true,
	},
}

// Registry resolves provider hints. Lookups are case-insensitive.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry holding the built-in catalog.
func NewRegistry() *Registry {
	r := &Registry{providers: make(map[string]Provider, len(builtin))}
	for _, p := range builtin {
		r.providers[p.ID] = p
	}
	return r
}

// Lookup resolves a hint. Unknown and empty hints return false.
func (r *Registry) Lookup(id string) (*Provider, bool) {
	key := strings.ToLower(strings.TrimSpace(id))
	if key == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[key]
	if !ok {
		return nil, false
	}
	return &p, true
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) error {
	p.ID = strings.ToLower(strings.TrimSpace(p.ID))
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.providers[p.ID] = p
	r.mu.Unlock()
	return nil
}

// Merge registers every entry, stopping at the first invalid one.
func (r *Registry) Merge(providers []Provider) error {
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// List returns all providers sorted by ID.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type catalogFile struct {
	Providers []Provider `yaml:"providers"`
}

// LoadFile reads extra providers from a YAML file.
func LoadFile(path string) ([]Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse provider catalog: %w", err)
	}
	return file.Providers, nil
}
