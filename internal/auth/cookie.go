package auth

import (
	"net/http"
	"time"

	"github.com/studylog/studylog-api/internal/config"
)

// Cookie names under which the token pair travels.
const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

// CookiePolicy builds the http-only cookies that carry the token pair. It is
// issuance policy only; token validity is decided elsewhere.
type CookiePolicy struct {
	secure         bool
	sameSite       http.SameSite
	domain         string
	accessTTL      time.Duration
	refreshTTLDays int
}

func NewCookiePolicy(cfg config.Config) *CookiePolicy {
	return &CookiePolicy{
		secure:         cfg.CookieSecure,
		sameSite:       cfg.CookieSameSite,
		domain:         cfg.CookieDomain,
		accessTTL:      time.Duration(cfg.AccessTTLMin) * time.Minute,
		refreshTTLDays: cfg.RefreshTTLDays,
	}
}

func (p *CookiePolicy) base(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   p.domain,
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: p.sameSite,
	}
}

// AccessCookie expires with the access token: max-age equals the token TTL.
func (p *CookiePolicy) AccessCookie(token string) *http.Cookie {
	c := p.base(AccessCookieName, token)
	c.MaxAge = int(p.accessTTL.Seconds())
	return c
}

// RefreshCookie carries an absolute expiry of now plus the configured day
// count, matching the refresh token's store TTL.
func (p *CookiePolicy) RefreshCookie(token string) *http.Cookie {
	c := p.base(RefreshCookieName, token)
	c.Expires = time.Now().UTC().Add(time.Duration(p.refreshTTLDays) * 24 * time.Hour)
	return c
}

// ClearCookies forces immediate clearance of both token cookies.
func (p *CookiePolicy) ClearCookies() []*http.Cookie {
	access := p.base(AccessCookieName, "")
	access.MaxAge = -1
	refresh := p.base(RefreshCookieName, "")
	refresh.MaxAge = -1
	return []*http.Cookie{access, refresh}
}
