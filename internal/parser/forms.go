package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LoginFailureMarkers appear in bodies of panels that re-render the login
// page with 200 after rejecting credentials.
var LoginFailureMarkers = []string{"form-login", "login_error", "Invalid"}

var usernameHints = []string{"user", "login", "email", "mail", "account", "name"}

// IsLoginForm reports whether a form has a password field and a
// username-like field next to it.
func IsLoginForm(form FormInfo) bool {
	hasPassword := false
	hasUser := false

	for _, input := range form.Inputs {
		if input.Disabled {
			continue
		}
		switch input.Type {
		case "password":
			hasPassword = true
		case "text", "email", "tel":
			if looksLikeUsername(input) {
				hasUser = true
			}
		}
	}

	return hasPassword && hasUser
}

func looksLikeUsername(input InputInfo) bool {
	if input.Type == "email" {
		return true
	}
	haystack := strings.ToLower(input.Name + " " + input.ID + " " + input.Placeholder + " " + input.Autocomplete)
	for _, hint := range usernameHints {
		if strings.Contains(haystack, hint) {
			return true
		}
	}
	return false
}

// LoginForm returns the first login form on the page.
func (p *Page) LoginForm() (FormInfo, bool) {
	for _, f := range p.Forms {
		if IsLoginForm(f) {
			return f, true
		}
	}
	return FormInfo{}, false
}

// HasPasswordField reports whether the page renders any password input,
// inside a form or not. Single-page panels often render inputs without a form.
func (p *Page) HasPasswordField() bool {
	found := false
	p.doc.Find("input").EachWithBreak(func(i int, s *goquery.Selection) bool {
		found = parseInput(s).Type == "password"
		return !found
	})
	return found
}

// HasLoginForm reports whether the page renders a recognizable
// username/password login. A form is preferred; a bare password input next
// to a username-like input also counts.
func (p *Page) HasLoginForm() bool {
	if _, ok := p.LoginForm(); ok {
		return true
	}
	if !p.HasPasswordField() {
		return false
	}

	found := false
	p.doc.Find("input").EachWithBreak(func(i int, s *goquery.Selection) bool {
		input := parseInput(s)
		found = (input.Type == "text" || input.Type == "email") && looksLikeUsername(input)
		return !found
	})
	return found
}

// ContainsFailureMarker reports whether body carries one of the known
// login failure markers.
func ContainsFailureMarker(body string) bool {
	for _, marker := range LoginFailureMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
