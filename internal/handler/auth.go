// Package handler implements the HTTP endpoints. Handlers bind and validate
// input, delegate to the auth services, and translate results into responses;
// they hold no session state of their own.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/studylog/studylog-api/internal/auth"
	"github.com/studylog/studylog-api/internal/config"
	"github.com/studylog/studylog-api/internal/httperr"
	"github.com/studylog/studylog-api/internal/model"
	"github.com/studylog/studylog-api/internal/repository"
)

// dbTimeout bounds every database call made from a handler.
const dbTimeout = 5 * time.Second

// MemberStore is the slice of the member repository the handlers use. The
// MySQL repository satisfies it; tests plug in an in-memory fake.
type MemberStore interface {
	FindByEmail(ctx context.Context, email string) (*model.Member, error)
	FindByID(ctx context.Context, id uint64) (*model.Member, error)
	Create(ctx context.Context, email, passwordHash, role string) (uint64, error)
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error
	UpdateProfile(ctx context.Context, id uint64, nickname, imageURL *string) error
	SoftDelete(ctx context.Context, id uint64) error
}

// AuthHandler bundles dependencies for the authentication endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Sessions *auth.Manager
	Strats   *auth.Registry
	Codes    *auth.CodeService
	Cookies  *auth.CookiePolicy
	Members  MemberStore
}

func NewAuthHandler(cfg config.Config, sessions *auth.Manager, strats *auth.Registry, codes *auth.CodeService, cookies *auth.CookiePolicy, members MemberStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Sessions: sessions, Strats: strats, Codes: codes, Cookies: cookies, Members: members}
}

// ----- DTOs -----

type emailReq struct {
	Email string `json:"email"`
}
type signUpReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}
type signInReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type resetConfirmReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type principalResp struct {
	ID   uint64 `json:"id"`
	Role string `json:"role"`
}

func (h *AuthHandler) setAuthCookies(c echo.Context, pair auth.TokenPair) {
	c.SetCookie(h.Cookies.AccessCookie(pair.Access.Token))
	c.SetCookie(h.Cookies.RefreshCookie(pair.Refresh.Raw))
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// RequestCode mails a 6-digit verification code to prove email ownership
// before sign-up.
func (h *AuthHandler) RequestCode(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": http.StatusBadRequest, "message": "invalid body"})
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": http.StatusBadRequest, "message": "email required"})
	}
	if err := h.Codes.SendCode(c.Request().Context(), email); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SignUp validates the emailed code (one-time), creates the member with a
// bcrypt hash and signs them in immediately.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": http.StatusBadRequest, "message": "invalid body"})
	}
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": http.StatusBadRequest, "message": "email/password/code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	// The code is consumed only after the member row exists, so a failed
	// sign-up (duplicate email) leaves it usable for the retry.
	if err := h.Codes.CheckCode(ctx, email, req.Code); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.Cfg.BcryptCost)
	if err != nil {
		return err
	}
	id, err := h.Members.Create(ctx, email, string(hash), model.RoleUser)
	if errors.Is(err, repository.ErrEmailExists) {
		return c.JSON(http.StatusConflict, echo.Map{"status": http.StatusConflict, "message": "email already exists"})
	}
	if err != nil {
		return err
	}
	if err := h.Codes.ConsumeCode(ctx, email); err != nil {
		return err
	}

	pair, err := h.Sessions.IssueTokens(ctx, model.Principal{ID: id, Role: model.RoleUser})
	if err != nil {
		return err
	}
	h.setAuthCookies(c, pair)
	return c.JSON(http.StatusCreated, principalResp{ID: pair.Principal.ID, Role: pair.Principal.Role})
}

// SignIn resolves local credentials and sets the token cookies.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": http.StatusBadRequest, "message": "invalid body"})
	}

	strat, err := h.Strats.Get(auth.StrategyLocal)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	pair, err := h.Sessions.SignIn(ctx, strat, auth.Credentials{
		Email:    normalizeEmail(req.Email),
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	h.setAuthCookies(c, pair)
	return c.JSON(http.StatusOK, principalResp{ID: pair.Principal.ID, Role: pair.Principal.Role})
}

// Refresh rotates the refresh token from its cookie and reissues both
// cookies. A missing, expired or already-rotated token is Unauthorized.
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(auth.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return httperr.Unauthorized()
	}
	pair, err := h.Sessions.Refresh(c.Request().Context(), cookie.Value)
	if err != nil {
		return err
	}
	h.setAuthCookies(c, pair)
	return c.JSON(http.StatusOK, principalResp{ID: pair.Principal.ID, Role: pair.Principal.Role})
}

// SignOut invalidates the refresh token, if any, and clears both cookies.
// Logging out without a live session succeeds silently.
func (h *AuthHandler) SignOut(c echo.Context) error {
	if cookie, err := c.Cookie(auth.RefreshCookieName); err == nil && cookie.Value != "" {
		if err := h.Sessions.SignOut(c.Request().Context(), cookie.Value); err != nil {
			return err
		}
	}
	for _, cookie := range h.Cookies.ClearCookies() {
		c.SetCookie(cookie)
	}
	return c.NoContent(http.StatusNoContent)
}

// OAuthRedirect sends the client to the provider's consent screen. The state
// parameter is a random value stored in a short-lived cookie and checked on
// callback.
func (h *AuthHandler) OAuthRedirect(c echo.Context) error {
	strat, err := h.oauthStrategy(c.Param("provider"))
	if err != nil {
		return err
	}
	state, err := auth.NewStateToken()
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     "oauthState",
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, strat.AuthCodeURL(state))
}

// OAuthCallback exchanges the authorization code, provisioning the member on
// first login, and sets the token cookies.
func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	strat, err := h.oauthStrategy(c.Param("provider"))
	if err != nil {
		return err
	}

	state := c.QueryParam("state")
	stateCookie, cerr := c.Cookie("oauthState")
	if state == "" || cerr != nil || stateCookie.Value != state {
		return httperr.OAuthFailure(strings.ToUpper(strat.Name()))
	}

	pair, err := h.Sessions.SignIn(c.Request().Context(), strat, auth.Credentials{
		Code: c.QueryParam("code"),
	})
	if err != nil {
		return err
	}
	h.setAuthCookies(c, pair)
	return c.Redirect(http.StatusFound, h.Cfg.BaseURL)
}

func (h *AuthHandler) oauthStrategy(provider string) (*auth.OAuthStrategy, error) {
	strat, err := h.Strats.Get(strings.ToLower(provider))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "unknown provider")
	}
	os, ok := strat.(*auth.OAuthStrategy)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "unknown provider")
	}
	return os, nil
}

// RequestPasswordReset mails a reset link when the email belongs to a live
// member. The response is 204 either way so the endpoint cannot be used to
// enumerate accounts.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": http.StatusBadRequest, "message": "invalid body"})
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": http.StatusBadRequest, "message": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	_, err := h.Members.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrMemberNotFound) {
		return c.NoContent(http.StatusNoContent)
	}
	if err != nil {
		return err
	}
	if _, err := h.Codes.SendResetToken(ctx, email); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ConfirmPasswordReset consumes the reset token (one-time) and rewrites the
// password hash.
func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	var req resetConfirmReq
	if err := c.Bind(&req); err != nil || req.Token == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": http.StatusBadRequest, "message": "token and password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	email, err := h.Codes.ConsumeResetToken(ctx, req.Token)
	if err != nil {
		return err
	}
	m, err := h.Members.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.Cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := h.Members.UpdatePassword(ctx, m.ID, string(hash)); err != nil {
		return err
	}
	// A reset proves account control; end every other session.
	if err := h.Sessions.RevokeAllSessions(ctx, m.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
