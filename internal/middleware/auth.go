// Package middleware provides the request guards: cookie-based access-token
// authentication, role enforcement, and login rate limiting. Public routes
// simply carry no guard; there is no per-route metadata to inspect.
package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/studylog/studylog-api/internal/auth"
	"github.com/studylog/studylog-api/internal/httperr"
	"github.com/studylog/studylog-api/internal/model"
)

// principalKey is where Authenticate stores the resolved principal.
const principalKey = "principal"

// Authenticate reads the access-token cookie, verifies it through the JWT
// strategy and stores the principal in the request context. Any failure is
// a uniform Unauthorized; handlers behind this guard can rely on
// PrincipalFrom returning a valid identity.
func Authenticate(strat auth.Strategy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(auth.AccessCookieName)
			if err != nil || cookie.Value == "" {
				return httperr.Unauthorized()
			}
			p, err := strat.Validate(c.Request().Context(), auth.Credentials{Token: cookie.Value})
			if err != nil {
				return httperr.Unauthorized()
			}
			c.Set(principalKey, p)
			return next(c)
		}
	}
}

// RequireRole rejects authenticated requests whose role is not in the
// allowed set. It assumes Authenticate ran earlier in the chain.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok || !allowed[p.Role] {
				return httperr.Forbidden()
			}
			return next(c)
		}
	}
}

// PrincipalFrom returns the principal stored by Authenticate.
func PrincipalFrom(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	return p, ok
}
