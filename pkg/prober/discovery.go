package prober

import (
	"context"
	"net/http"

	"github.com/PentesterFlow/PanelProbe/internal/logger"
	"github.com/PentesterFlow/PanelProbe/internal/parser"
	"github.com/PentesterFlow/PanelProbe/internal/session"
	"github.com/PentesterFlow/PanelProbe/internal/transport"
)

// discover fetches the login page and records what it reveals. It never
// authenticates and never ends the probe; errors are only logged.
func (r *run) discover(ctx context.Context) *Result {
	log := r.log.WithStrategy(StrategyDiscovery)
	loginURL := r.req.BaseURL + "/login"

	resp, err := r.call(ctx, StrategyDiscovery, transport.Request{
		Method:  http.MethodGet,
		URL:     loginURL,
		Header:  http.Header{"Accept": {htmlAccept}},
		Timeout: r.p.config.DiscoveryTimeout,
	})
	if err != nil {
		log.WithError(err).Debug("Discovery failed")
		return nil
	}

	hints, err := parser.ExtractHints(string(resp.Body), loginURL)
	if err != nil {
		log.WithError(err).Debug("Login page could not be parsed")
		return nil
	}
	if c := parser.DetectChallenge(resp.StatusCode, resp.Header, resp.Body); c != parser.ChallengeNone {
		hints.Challenge = c.String()
	}

	r.discovery = hints
	if hints.Empty() {
		log.Debug("Login page revealed no forms, API paths or tokens")
		return nil
	}
	log.Event(logger.InfoLevel).
		Strs("form_actions", hints.FormActions).
		Strs("api_paths", hints.APIPaths).
		Int("api_calls", len(hints.APICalls)).
		Bool("csrf_token", hints.CSRFToken).
		Bool("login_form", hints.LoginForm).
		Msg("Discovery hints")

	return nil
}

// connectivity checks that the login page renders a username/password
// form. Credentials are never submitted.
func (r *run) connectivity(ctx context.Context) *Result {
	loginURL := r.req.BaseURL + r.provider.Login()
	r.fallback = "Login page did not render a recognizable login form"

	sess := session.New()
	sess.Seed(r.req.cookieSeed())
	header := http.Header{"Accept": {htmlAccept}}
	sess.Apply(header)

	resp, err := r.call(ctx, StrategyConnectivity, transport.Request{
		Method:  http.MethodGet,
		URL:     loginURL,
		Header:  header,
		Timeout: r.p.config.DiscoveryTimeout,
	})
	if err != nil || !resp.OK() {
		return nil
	}

	page, err := parser.ParsePage(string(resp.Body), loginURL)
	if err != nil || !page.HasLoginForm() {
		return nil
	}

	r.log.WithStrategy(StrategyConnectivity).Info("Login form reachable")
	return r.success(loginURL, TypeConnectivity, &Account{Status: "reachable"}, map[string]interface{}{
		"title":      page.Title,
		"csrf_token": page.CSRFToken() != "",
	})
}
