// Package tokeninfo surfaces the claims of bearer tokens returned by panel login APIs.
package tokeninfo

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Info summarizes a decoded token. Signatures are not verified: the panel's
// key is unknown and the claims are informational only.
type Info struct {
	Algorithm string                 `json:"alg"`
	Subject   string                 `json:"sub,omitempty"`
	Issuer    string                 `json:"iss,omitempty"`
	ExpiresAt *time.Time             `json:"exp,omitempty"`
	IssuedAt  *time.Time             `json:"iat,omitempty"`
	Claims    map[string]interface{} `json:"claims"`
}

// Expired reports whether the token carries an expiry before now.
func (i *Info) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && i.ExpiresAt.Before(now)
}

// LooksLikeJWT reports whether s has the three-segment compact shape.
func LooksLikeJWT(s string) bool {
	s = strings.TrimSpace(strings.TrimPrefix(s, "Bearer "))
	return strings.Count(s, ".") == 2 && strings.HasPrefix(s, "eyJ")
}

// Decode parses a compact JWT without verifying its signature.
func Decode(raw string) (*Info, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))

	claims := jwt.MapClaims{}
	token, _, err := jwt.NewParser().ParseUnverified(raw, claims)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Claims: map[string]interface{}(claims),
	}
	if token.Method != nil {
		info.Algorithm = token.Method.Alg()
	}
	info.Subject, _ = claims.GetSubject()
	info.Issuer, _ = claims.GetIssuer()

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		info.ExpiresAt = &t
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		t := iat.Time
		info.IssuedAt = &t
	}

	return info, nil
}
