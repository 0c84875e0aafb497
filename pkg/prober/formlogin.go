package prober

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PentesterFlow/PanelProbe/internal/parser"
	"github.com/PentesterFlow/PanelProbe/internal/session"
	"github.com/PentesterFlow/PanelProbe/internal/transport"
)

const htmlAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// formLogin performs the two-step CSRF-protected session login.
func (r *run) formLogin(ctx context.Context) *Result {
	log := r.log.WithStrategy(StrategyForm)
	sess := session.New()
	sess.Seed(r.req.cookieSeed())

	loginURL := r.req.BaseURL + r.provider.Login()

	// Step 1: fetch the login page for cookies and a CSRF token.
	getHeader := http.Header{"Accept": {htmlAccept}}
	sess.Apply(getHeader)
	resp, err := r.call(ctx, StrategyForm, transport.Request{
		Method:  http.MethodGet,
		URL:     loginURL,
		Header:  getHeader,
		Timeout: r.p.config.AuthTimeout,
	})
	if err == nil {
		sess.Absorb(resp.Header)
		sess.SetCSRFToken(parser.ExtractCSRFToken(string(resp.Body)))
	} else {
		log.Debug("Login page unavailable, submitting without CSRF token")
	}

	// Step 2: submit the credentials.
	form := r.loginForm(sess.CSRFToken())
	postHeader := http.Header{
		"Content-Type": {"application/x-www-form-urlencoded"},
		"Accept":       {htmlAccept},
		"Origin":       {r.req.BaseURL},
		"Referer":      {loginURL},
	}
	if xsrf := sess.XSRFToken(); xsrf != "" {
		postHeader.Set("X-XSRF-TOKEN", xsrf)
	}
	sess.Apply(postHeader)

	resp, err = r.call(ctx, StrategyForm, transport.Request{
		Method:  http.MethodPost,
		URL:     loginURL,
		Header:  postHeader,
		Body:    []byte(form.Encode()),
		Timeout: r.p.config.AuthTimeout,
	})
	if err != nil {
		return nil
	}
	sess.Absorb(resp.Header)

	verdict := classifyFormLogin(resp, r.provider)
	if !verdict.accepted {
		log.Debugf("Login rejected (status %d)", resp.StatusCode)
		return nil
	}

	if payload, endpoint, ok := r.verifySession(ctx, sess); ok {
		log.Infof("Session verified at %s", endpoint)
		return r.success(loginURL, TypeSessionVerified, &Account{User: payload}, payload)
	}

	if !verdict.redirect {
		log.Debug("Login page answered 200 but the session could not be verified")
		return nil
	}

	log.Infof("Login redirected to %s, verification inconclusive", verdict.location)
	return r.success(loginURL, TypeSession, &Account{}, map[string]interface{}{
		"redirect": verdict.location,
		"cookies":  sess.Len(),
	})
}

// loginForm builds the urlencoded credential submission.
func (r *run) loginForm(csrfToken string) url.Values {
	form := url.Values{}
	omit := r.provider != nil && r.provider.OmitTryLogin
	if !omit {
		form.Set("try_login", "1")
		if csrfToken != "" {
			form.Set("csrf_token", csrfToken)
		}
	}
	if csrfToken != "" {
		form.Set("_token", csrfToken)
	}
	form.Set("username", r.req.Username)
	form.Set("password", r.req.Password)
	return form
}

// verifySession queries authenticated endpoints with the session cookies.
// The first 2xx JSON object wins.
func (r *run) verifySession(ctx context.Context, sess *session.Session) (map[string]interface{}, string, bool) {
	for _, path := range r.provider.Verify() {
		endpoint := r.req.BaseURL + "/" + strings.TrimPrefix(path, "/")

		header := http.Header{
			"Accept":           {"application/json, text/plain, */*"},
			"X-Requested-With": {"XMLHttpRequest"},
			"Referer":          {r.req.BaseURL + "/"},
		}
		if xsrf := sess.XSRFToken(); xsrf != "" {
			header.Set("X-XSRF-TOKEN", xsrf)
		}
		sess.Apply(header)

		resp, err := r.call(ctx, StrategyVerify, transport.Request{
			Method:  http.MethodGet,
			URL:     endpoint,
			Header:  header,
			Timeout: r.p.config.DiscoveryTimeout,
		})
		if err != nil || !resp.OK() {
			continue
		}
		if obj := decodeObject(resp.Body); obj != nil {
			return obj, endpoint, true
		}
	}
	return nil, "", false
}
