// Package router wires handlers to routes. Authorization is explicit
// middleware composition: public routes carry no guard, protected routes are
// grouped behind Authenticate, and admin routes add RequireRole on top.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/studylog/studylog-api/internal/auth"
	"github.com/studylog/studylog-api/internal/config"
	"github.com/studylog/studylog-api/internal/handler"
	"github.com/studylog/studylog-api/internal/middleware"
	"github.com/studylog/studylog-api/internal/model"
)

// Register sets up every route. jwtStrat verifies the access-token cookie
// for the protected groups; rdb backs the auth-endpoint rate limiter.
func Register(e *echo.Echo, cfg config.Config, a *handler.AuthHandler, m *handler.MemberHandler, adm *handler.AdminHandler, jwtStrat auth.Strategy, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	// Public auth endpoints; rate limited to blunt credential stuffing and
	// code-request spam.
	g := e.Group("/v1/auth", middleware.RateLimit(cfg, rdb))
	g.POST("/code", a.RequestCode)
	g.POST("/signup", a.SignUp)
	g.POST("/login", a.SignIn)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.SignOut)
	g.POST("/password-reset", a.RequestPasswordReset)
	g.POST("/password-reset/confirm", a.ConfirmPasswordReset)
	g.GET("/:provider", a.OAuthRedirect)
	g.GET("/:provider/callback", a.OAuthCallback)

	// Everything under /v1 past this group requires a valid access token.
	authed := e.Group("/v1", middleware.Authenticate(jwtStrat))
	authed.GET("/me", m.Me)
	authed.PATCH("/me", m.UpdateProfile)
	authed.PUT("/me/image", m.UpdateImage)
	authed.POST("/me/password", m.ChangePassword)
	authed.GET("/me/stats", m.Stats)
	authed.POST("/me/revoke-all", m.RevokeAll)
	authed.DELETE("/me", m.Delete)

	admin := authed.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	admin.DELETE("/cache", adm.InvalidateCache)
}
