package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/studylog/studylog-api/internal/auth"
	"github.com/studylog/studylog-api/internal/cache"
	"github.com/studylog/studylog-api/internal/config"
	"github.com/studylog/studylog-api/internal/handler"
	"github.com/studylog/studylog-api/internal/middleware"
	"github.com/studylog/studylog-api/internal/model"
	"github.com/studylog/studylog-api/internal/queue"
	"github.com/studylog/studylog-api/internal/repository"
	"github.com/studylog/studylog-api/internal/repository/repofakes"
	"github.com/studylog/studylog-api/internal/store/storefakes"
)

const testSecret = "handler-test-secret"

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      testSecret,
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     bcrypt.MinCost,
		CookieSameSite: http.SameSiteLaxMode,
	}
}

// fakeStats counts how often the expensive query actually runs.
type fakeStats struct{ calls int }

func (f *fakeStats) ForMember(_ context.Context, memberID uint64) (repository.StudyStats, error) {
	f.calls++
	return repository.StudyStats{MemberID: memberID, ArticlesRead: 3, QuizzesTaken: 1}, nil
}

// fakeImages implements storage.ObjectStore without touching S3.
type fakeImages struct{ deleted []string }

func (f *fakeImages) Upload(_ context.Context, _ []byte, _ string) (string, error) {
	return "https://bucket.s3.test/images/x", nil
}

func (f *fakeImages) Delete(_ context.Context, url string) error {
	f.deleted = append(f.deleted, url)
	return nil
}

// fakeEvents records published lifecycle events.
type fakeEvents struct{ events []queue.MemberDeletedEvent }

func (f *fakeEvents) PublishMemberDeleted(_ context.Context, event queue.MemberDeletedEvent) error {
	f.events = append(f.events, event)
	return nil
}

type memberFixture struct {
	e       *echo.Echo
	fs      *storefakes.FakeStore
	members *repofakes.FakeMemberRepo
	stats   *fakeStats
	events  *fakeEvents
	id      uint64
}

func newMemberFixture(t *testing.T) *memberFixture {
	t.Helper()
	cfg := testConfig()
	fs := storefakes.New()
	members := repofakes.NewFakeMemberRepo()
	id, err := members.Create(context.Background(), "m@example.com", "", model.RoleUser)
	require.NoError(t, err)

	stats := &fakeStats{}
	events := &fakeEvents{}
	sessions := auth.NewManager(fs, cfg.JWTSecret, cfg.AccessTTLMin, cfg.RefreshTTLDays, zerolog.Nop())
	h := handler.NewMemberHandler(cfg, sessions, auth.NewCookiePolicy(cfg), members, stats, cache.New(fs, time.Hour), &fakeImages{}, events)

	e := echo.New()
	g := e.Group("/v1", middleware.Authenticate(auth.NewJWTStrategy(cfg.JWTSecret)))
	g.GET("/me/stats", h.Stats)
	g.DELETE("/me", h.Delete)

	return &memberFixture{e: e, fs: fs, members: members, stats: stats, events: events, id: id}
}

func (fx *memberFixture) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	tok, err := auth.NewAccessToken(testSecret, model.Principal{ID: fx.id, Role: model.RoleUser}, 15)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: tok.Token})
	rec := httptest.NewRecorder()
	fx.e.ServeHTTP(rec, req)
	return rec
}

func TestStatsServedThroughCache(t *testing.T) {
	fx := newMemberFixture(t)

	rec := fx.do(t, http.MethodGet, "/v1/me/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"articlesRead":3`)
	require.Equal(t, 1, fx.stats.calls)

	// The second read is served from the cache without re-querying.
	rec = fx.do(t, http.MethodGet, "/v1/me/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"articlesRead":3`)
	require.Equal(t, 1, fx.stats.calls)
}

func TestDeleteInvalidatesStatsCache(t *testing.T) {
	fx := newMemberFixture(t)

	require.Equal(t, http.StatusOK, fx.do(t, http.MethodGet, "/v1/me/stats").Code)
	require.Equal(t, 1, fx.stats.calls)

	require.Equal(t, http.StatusNoContent, fx.do(t, http.MethodDelete, "/v1/me").Code)
	require.Len(t, fx.events.events, 1)
	require.Equal(t, "m@example.com", fx.events.events[0].Email)

	// The cached snapshot died with the account: the next read recomputes
	// instead of resurrecting stale data under the same key.
	require.Equal(t, http.StatusOK, fx.do(t, http.MethodGet, "/v1/me/stats").Code)
	require.Equal(t, 2, fx.stats.calls)
}
