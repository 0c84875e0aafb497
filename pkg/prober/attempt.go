package prober

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PentesterFlow/PanelProbe/internal/errors"
	"github.com/PentesterFlow/PanelProbe/internal/parser"
	"github.com/PentesterFlow/PanelProbe/internal/transport"
)

// sensitiveParams are masked in recorded URLs.
var sensitiveParams = []string{"password", "pass", "pwd"}

const redacted = "REDACTED"

// call executes one outbound request and appends its attempt record.
// Transport errors are recorded and returned; they never abort the probe.
func (r *run) call(ctx context.Context, strategy string, req transport.Request) (*transport.Response, error) {
	header := make(http.Header, len(r.req.ExtraHeaders)+len(req.Header))
	for k, v := range r.req.ExtraHeaders {
		header.Set(k, v)
	}
	for k, values := range req.Header {
		header[http.CanonicalHeaderKey(k)] = values
	}
	req.Header = header
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	attempt := Attempt{
		Strategy: strategy,
		Method:   req.Method,
		URL:      redactURL(req.URL),
	}

	if err := r.limiter.Wait(ctx); err != nil {
		perr := errors.NewCancelledError(req.URL, "rate_limit")
		attempt.Error = perr.Short()
		r.record(attempt, errors.Cancelled.String())
		return nil, perr
	}

	start := time.Now()
	resp, err := r.p.client.Do(ctx, req)
	if err != nil {
		perr := errors.Categorize(err, req.URL)
		attempt.Error = perr.Short()
		attempt.DurationMS = time.Since(start).Milliseconds()
		r.record(attempt, perr.Type.String())
		return nil, perr
	}

	attempt.Status = resp.StatusCode
	attempt.OK = resp.OK()
	attempt.Body = snippet(resp.Body, r.p.config.SnippetLength)
	attempt.DurationMS = resp.Duration.Milliseconds()

	if c := parser.DetectChallenge(resp.StatusCode, resp.Header, resp.Body); c != parser.ChallengeNone {
		attempt.Challenge = c.String()
		r.p.metrics.RecordChallenge()
	}

	r.limiter.Observe(resp.StatusCode)
	r.record(attempt, "")
	return resp, nil
}

func (r *run) record(a Attempt, errorType string) {
	r.attempts = append(r.attempts, a)

	r.p.metrics.RecordAttempt(a.Status, time.Duration(a.DurationMS)*time.Millisecond, errorType)

	var err error
	if a.Error != "" {
		err = errors.NewProbeError(errors.Unknown, a.URL, a.Strategy, a.Error, nil)
	}
	r.log.AttemptEvent(a.Strategy, a.Method, a.URL, a.Status, time.Duration(a.DurationMS)*time.Millisecond, err)

	if r.observe != nil {
		r.observe(a)
	}
}

// redactURL masks credential query parameters.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	q := u.Query()
	changed := false
	for _, name := range sensitiveParams {
		if q.Has(name) {
			q.Set(name, redacted)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// snippet returns at most n characters of body as valid UTF-8.
func snippet(body []byte, n int) string {
	if len(body) > n*utf8.UTFMax {
		body = body[:n*utf8.UTFMax]
	}
	s := strings.ToValidUTF8(string(body), "\uFFFD")

	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
