// Package session carries cookies and CSRF state across the requests of one strategy.
package session

import (
	"net/http"
	"net/url"
	"strings"
)

// XSRFCookie is the cookie frameworks such as Laravel use for header-based CSRF submission.
const XSRFCookie = "XSRF-TOKEN"

// Session accumulates cookies and a CSRF token for a single strategy run.
// It is never shared between strategies or probes, so it carries no lock.
type Session struct {
	names     []string
	cookies   map[string]string
	csrfToken string
}

// New creates an empty session.
func New() *Session {
	return &Session{
		cookies: make(map[string]string),
	}
}

// Seed loads cookies from a raw Cookie header value ("a=1; b=2").
func (s *Session) Seed(raw string) {
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		s.Set(strings.TrimSpace(name), strings.TrimSpace(value))
	}
}

// Set adds or replaces a cookie. The original position is kept on replace.
func (s *Session) Set(name, value string) {
	if name == "" {
		return
	}
	if _, exists := s.cookies[name]; !exists {
		s.names = append(s.names, name)
	}
	s.cookies[name] = value
}

// Delete removes a cookie.
func (s *Session) Delete(name string) {
	if _, exists := s.cookies[name]; !exists {
		return
	}
	delete(s.cookies, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			break
		}
	}
}

// Absorb captures the Set-Cookie headers of a response. Expired cookies are dropped.
func (s *Session) Absorb(header http.Header) {
	resp := http.Response{Header: header}
	for _, c := range resp.Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			s.Delete(c.Name)
			continue
		}
		s.Set(c.Name, c.Value)
	}
}

// Get returns a cookie value.
func (s *Session) Get(name string) (string, bool) {
	v, ok := s.cookies[name]
	return v, ok
}

// Len returns the number of cookies held.
func (s *Session) Len() int {
	return len(s.names)
}

// Header serializes the cookies into a Cookie header value.
func (s *Session) Header() string {
	parts := make([]string, 0, len(s.names))
	for _, name := range s.names {
		parts = append(parts, name+"="+s.cookies[name])
	}
	return strings.Join(parts, "; ")
}

// Apply sets the Cookie header on h when the session holds cookies.
func (s *Session) Apply(h http.Header) {
	if cookie := s.Header(); cookie != "" {
		h.Set("Cookie", cookie)
	}
}

// SetCSRFToken stores the token extracted from a page.
func (s *Session) SetCSRFToken(token string) {
	s.csrfToken = token
}

// CSRFToken returns the stored token, if any.
func (s *Session) CSRFToken() string {
	return s.csrfToken
}

// XSRFToken returns the URL-decoded XSRF-TOKEN cookie for the X-XSRF-TOKEN header.
func (s *Session) XSRFToken() string {
	raw, ok := s.cookies[XSRFCookie]
	if !ok {
		return ""
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}
