package prober

import (
	"github.com/PentesterFlow/PanelProbe/internal/tokeninfo"
)

func validationFailure(id string, err error) *Result {
	msg := err.Error()
	if short, ok := err.(interface{ Short() string }); ok {
		msg = short.Short()
	}
	return &Result{
		ID:      id,
		Success: false,
		Details: msg,
		Logs:    []Attempt{},
	}
}

func (r *run) success(endpoint, label string, account *Account, data interface{}) *Result {
	if account != nil && account.Status == "" {
		account.Status = "active"
	}
	return &Result{
		ID:        r.id,
		Success:   true,
		Endpoint:  endpoint,
		Type:      label,
		Account:   account,
		Data:      data,
		Logs:      r.attempts,
		Discovery: r.discovery,
	}
}

func (r *run) failure(details string) *Result {
	res := &Result{
		ID:        r.id,
		Success:   false,
		Details:   details,
		Logs:      r.attempts,
		Discovery: r.discovery,
	}
	if last, ok := res.LastAttempt(); ok {
		res.Debug = &Debug{
			URL:      last.URL,
			Method:   last.Method,
			Status:   last.Status,
			Response: last.Body,
		}
	}
	return res
}

// exhausted builds the classified failure once every strategy has run.
func (r *run) exhausted() *Result {
	return r.failure(classifyFailure(r.attempts, r.fallback))
}

// tokenAccount builds the account block for a token-bearing login.
func tokenAccount(user interface{}, token string) *Account {
	account := &Account{
		Status:        "active",
		User:          user,
		TokenReceived: token != "",
	}
	if token != "" && tokeninfo.LooksLikeJWT(token) {
		if info, err := tokeninfo.Decode(token); err == nil {
			account.Token = info
		}
	}
	return account
}
