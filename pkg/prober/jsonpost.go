package prober

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/PentesterFlow/PanelProbe/internal/transport"
)

// jsonPost tries every candidate endpoint with a JSON credential payload.
func (r *run) jsonPost(ctx context.Context) *Result {
	log := r.log.WithStrategy(StrategyJSON)

	body, err := json.Marshal(r.loginPayload())
	if err != nil {
		log.WithError(err).Warn("Login payload is not serializable")
		return nil
	}

	for _, c := range r.jsonCandidates() {
		req := transport.Request{
			Method: c.Method,
			URL:    c.URL,
			Header: http.Header{
				"Content-Type": {"application/json"},
				"Accept":       {"application/json, text/plain, */*"},
				"Origin":       {r.req.BaseURL},
				"Referer":      {r.req.BaseURL + "/"},
			},
			Timeout: r.p.config.AuthTimeout,
		}
		if c.Method != http.MethodGet && c.Method != http.MethodHead {
			req.Body = body
		}

		resp, err := r.call(ctx, StrategyJSON, req)
		if err != nil || !resp.OK() {
			continue
		}

		obj := decodeObject(resp.Body)
		if obj == nil {
			continue
		}

		verdict := classifyJSONLogin(obj)
		if !verdict.accepted {
			continue
		}

		log.Infof("JSON login accepted at %s", c.URL)
		return r.success(c.URL, TypeJSON, tokenAccount(verdict.user, verdict.token), obj)
	}

	return nil
}

// loginPayload returns the caller's payload with {{username}} and
// {{password}} substituted, or the default two-factor-tolerant shape.
func (r *run) loginPayload() map[string]interface{} {
	if len(r.req.LoginPayload) == 0 {
		return map[string]interface{}{
			"captcha":                     "",
			"captchaChecked":              false,
			"username":                    r.req.Username,
			"password":                    r.req.Password,
			"twofactor_code":              "",
			"twofactor_recovery_code":     "",
			"twofactor_trusted_device_id": "",
		}
	}

	replacer := strings.NewReplacer("{{username}}", r.req.Username, "{{password}}", r.req.Password)
	out, _ := substitute(r.req.LoginPayload, replacer).(map[string]interface{})
	return out
}

func substitute(v interface{}, replacer *strings.Replacer) interface{} {
	switch t := v.(type) {
	case string:
		return replacer.Replace(t)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = substitute(val, replacer)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = substitute(val, replacer)
		}
		return out
	default:
		return v
	}
}
