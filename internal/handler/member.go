package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/studylog/studylog-api/internal/auth"
	"github.com/studylog/studylog-api/internal/cache"
	"github.com/studylog/studylog-api/internal/config"
	"github.com/studylog/studylog-api/internal/httperr"
	"github.com/studylog/studylog-api/internal/middleware"
	"github.com/studylog/studylog-api/internal/queue"
	"github.com/studylog/studylog-api/internal/repository"
	"github.com/studylog/studylog-api/internal/storage"
)

// maxImageBytes caps profile image uploads.
const maxImageBytes = 5 << 20

// statsCachePrefix namespaces cached study-stats snapshots.
const statsCachePrefix = "memberStats"

// statsKey derives the cache key for a member's stats snapshot. Population
// and invalidation both go through here, so the keys cannot drift apart.
func statsKey(memberID uint64) (string, error) {
	return cache.Key(statsCachePrefix, struct {
		MemberID uint64 `json:"memberId"`
	}{memberID})
}

// StatsSource is the slice of the stats repository the member endpoints use.
type StatsSource interface {
	ForMember(ctx context.Context, memberID uint64) (repository.StudyStats, error)
}

// EventPublisher announces member lifecycle events; publishes are
// best-effort.
type EventPublisher interface {
	PublishMemberDeleted(ctx context.Context, event queue.MemberDeletedEvent) error
}

// MemberHandler bundles dependencies for the account endpoints.
type MemberHandler struct {
	Cfg       config.Config
	Sessions  *auth.Manager
	Cookies   *auth.CookiePolicy
	Members   MemberStore
	StatsRepo StatsSource
	Cache     *cache.Cache
	Images    storage.ObjectStore
	Events    EventPublisher
}

func NewMemberHandler(cfg config.Config, sessions *auth.Manager, cookies *auth.CookiePolicy, members MemberStore, stats StatsSource, ch *cache.Cache, images storage.ObjectStore, events EventPublisher) *MemberHandler {
	return &MemberHandler{Cfg: cfg, Sessions: sessions, Cookies: cookies, Members: members, StatsRepo: stats, Cache: ch, Images: images, Events: events}
}

type memberResp struct {
	ID       uint64  `json:"id"`
	Email    string  `json:"email"`
	Nickname *string `json:"nickname"`
	ImageURL *string `json:"imageUrl"`
	Role     string  `json:"role"`
}

type updateProfileReq struct {
	Nickname *string `json:"nickname"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Me returns the authenticated member's profile.
func (h *MemberHandler) Me(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return httperr.Unauthorized()
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	m, err := h.Members.FindByID(ctx, p.ID)
	if err != nil {
		return err
	}
	resp := memberResp{ID: m.ID, Email: m.Email, Role: m.Role}
	if m.Nickname.Valid {
		resp.Nickname = &m.Nickname.String
	}
	if m.ImageURL.Valid {
		resp.ImageURL = &m.ImageURL.String
	}
	return c.JSON(http.StatusOK, resp)
}

// UpdateProfile changes the nickname.
func (h *MemberHandler) UpdateProfile(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return httperr.Unauthorized()
	}
	var req updateProfileReq
	if err := c.Bind(&req); err != nil || req.Nickname == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": http.StatusBadRequest, "message": "nickname required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Members.UpdateProfile(ctx, p.ID, req.Nickname, nil); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateImage replaces the profile image: upload the new object first, then
// point the record at it, then drop the old object.
func (h *MemberHandler) UpdateImage(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return httperr.Unauthorized()
	}

	file, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": http.StatusBadRequest, "message": "image file required"})
	}
	if file.Size > maxImageBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"status": http.StatusRequestEntityTooLarge, "message": "image too large"})
	}
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()
	data, err := io.ReadAll(io.LimitReader(src, maxImageBytes))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	m, err := h.Members.FindByID(ctx, p.ID)
	if err != nil {
		return err
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url, err := h.Images.Upload(ctx, data, contentType)
	if err != nil {
		return err
	}
	if err := h.Members.UpdateProfile(ctx, p.ID, nil, &url); err != nil {
		return err
	}
	if m.ImageURL.Valid {
		// Old object is orphaned either way; deletion failure is logged by
		// the store and not surfaced.
		_ = h.Images.Delete(ctx, m.ImageURL.String)
	}
	return c.JSON(http.StatusOK, echo.Map{"imageUrl": url})
}

// ChangePassword verifies the current password before rewriting the hash.
func (h *MemberHandler) ChangePassword(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return httperr.Unauthorized()
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": http.StatusBadRequest, "message": "current and new password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	m, err := h.Members.FindByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if !m.PasswordHash.Valid || bcrypt.CompareHashAndPassword([]byte(m.PasswordHash.String), []byte(req.CurrentPassword)) != nil {
		return httperr.InvalidCredentials()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), h.Cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := h.Members.UpdatePassword(ctx, p.ID, string(hash)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Stats serves the member's study snapshot through the cache-aside layer.
// The key is content-addressed from the query parameters, so the same
// member always hits the same entry.
func (h *MemberHandler) Stats(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return httperr.Unauthorized()
	}

	key, err := statsKey(p.ID)
	if err != nil {
		return err
	}

	stats, err := cache.WithCaching(c.Request().Context(), h.Cache, key,
		func(ctx context.Context) (repository.StudyStats, error) {
			ctx, cancel := context.WithTimeout(ctx, dbTimeout)
			defer cancel()
			return h.StatsRepo.ForMember(ctx, p.ID)
		})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// RevokeAll logs the member out everywhere: every refresh token dies, and
// the current browser's cookies are cleared.
func (h *MemberHandler) RevokeAll(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return httperr.Unauthorized()
	}
	if err := h.Sessions.RevokeAllSessions(c.Request().Context(), p.ID); err != nil {
		return err
	}
	for _, cookie := range h.Cookies.ClearCookies() {
		c.SetCookie(cookie)
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete soft-deletes the account, purges its image, revokes every session,
// drops the cached stats and announces the deletion. The event publish is
// best-effort and never fails the request.
func (h *MemberHandler) Delete(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return httperr.Unauthorized()
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	m, err := h.Members.FindByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := h.Members.SoftDelete(ctx, p.ID); err != nil {
		return err
	}
	if err := h.Sessions.RevokeAllSessions(ctx, p.ID); err != nil {
		return err
	}
	if m.ImageURL.Valid {
		_ = h.Images.Delete(ctx, m.ImageURL.String)
	}

	if key, err := statsKey(p.ID); err == nil {
		_ = h.Cache.Invalidate(ctx, key)
	}

	_ = h.Events.PublishMemberDeleted(ctx, queue.MemberDeletedEvent{
		MemberID:  m.ID,
		Email:     m.Email,
		DeletedAt: time.Now().UTC().Format(time.RFC3339),
	})

	for _, cookie := range h.Cookies.ClearCookies() {
		c.SetCookie(cookie)
	}
	return c.NoContent(http.StatusNoContent)
}
