package parser

import (
	"net/http"
	"strings"
)

// ChallengeType identifies bot-mitigation interstitials served instead of the panel.
type ChallengeType int

const (
	ChallengeNone ChallengeType = iota
	ChallengeJS
	ChallengeCaptcha
)

func (c ChallengeType) String() string {
	switch c {
	case ChallengeNone:
		return "none"
	case ChallengeJS:
		return "js"
	case ChallengeCaptcha:
		return "captcha"
	default:
		return "unknown"
	}
}

var captchaMarkers = []string{
	"challenges.cloudflare.com",
	"cf-turnstile",
	"h-captcha",
	"g-recaptcha",
	"www.google.com/recaptcha",
}

var cloudflareJSMarkers = []string{
	"Just a moment",
	"_cf_chl",
	"cf-challenge",
	"jschl_vc",
	"jschl_answer",
}

// DetectChallenge inspects a response for Cloudflare JS challenges and captchas.
func DetectChallenge(status int, header http.Header, body []byte) ChallengeType {
	text := string(body)

	if containsAny(text, captchaMarkers) {
		return ChallengeCaptcha
	}

	server := strings.ToLower(header.Get("Server"))
	cloudflare := strings.Contains(server, "cloudflare") || header.Get("Cf-Ray") != ""
	if cloudflare && (status == http.StatusServiceUnavailable || status == http.StatusForbidden) {
		if containsAny(text, cloudflareJSMarkers) {
			return ChallengeJS
		}
	}

	if status == http.StatusServiceUnavailable && len(body) < 10000 &&
		containsAny(text, []string{"<noscript>", "document.cookie"}) {
		return ChallengeJS
	}

	return ChallengeNone
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
