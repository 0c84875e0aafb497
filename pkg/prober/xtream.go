package prober

import (
	"context"
	"net/http"
	"net/url"

	"github.com/PentesterFlow/PanelProbe/internal/transport"
)

// xtreamPaths are tried in order.
var xtreamPaths = []string{"/player_api.php", "/panel_api.php", "/api.php"}

// xtream probes the Xtream-Codes query-parameter API.
func (r *run) xtream(ctx context.Context) *Result {
	query := url.Values{}
	query.Set("username", r.req.Username)
	query.Set("password", r.req.Password)

	for _, path := range xtreamPaths {
		endpoint := r.req.BaseURL + path

		resp, err := r.call(ctx, StrategyXtream, transport.Request{
			Method:  http.MethodGet,
			URL:     endpoint + "?" + query.Encode(),
			Header:  http.Header{"Accept": {"application/json, text/plain, */*"}},
			Timeout: r.p.config.AuthTimeout,
		})
		if err != nil {
			continue
		}

		obj, ok := xtreamAccepted(resp)
		if !ok {
			continue
		}

		userInfo, _ := obj["user_info"].(map[string]interface{})
		account := &Account{
			User: obj["user_info"],
		}
		if status, ok := userInfo["status"].(string); ok {
			account.Status = status
		}

		r.log.WithStrategy(StrategyXtream).Infof("Xtream API accepted credentials at %s", path)
		return r.success(endpoint, TypeXtream, account, obj)
	}

	return nil
}
