package auth_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/studylog/studylog-api/internal/auth"
	"github.com/studylog/studylog-api/internal/httperr"
	"github.com/studylog/studylog-api/internal/model"
	"github.com/studylog/studylog-api/internal/repository/repofakes"
	"github.com/studylog/studylog-api/internal/store/storefakes"
)

const testSecret = "test-secret"

func newManager(fs *storefakes.FakeStore) *auth.Manager {
	return auth.NewManager(fs, testSecret, 15, 7, zerolog.Nop())
}

func TestIssueTokensRecordsRefreshState(t *testing.T) {
	ctx := context.Background()
	fs := storefakes.New()
	m := newManager(fs)

	pair, err := m.IssueTokens(ctx, model.Principal{ID: 1, Role: model.RoleUser})
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access.Token)
	require.Len(t, pair.Refresh.Raw, 96)

	raw, err := fs.Get(ctx, "REFRESH:"+pair.Refresh.Raw)
	require.NoError(t, err)
	var p model.Principal
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	require.Equal(t, model.Principal{ID: 1, Role: model.RoleUser}, p)

	members, err := fs.SMembers(ctx, "MEMBER_TOKENS:1")
	require.NoError(t, err)
	require.Contains(t, members, pair.Refresh.Raw)

	// The refresh entry carries the configured lifetime.
	ttl, err := fs.TTLSeconds(ctx, "REFRESH:"+pair.Refresh.Raw)
	require.NoError(t, err)
	require.InDelta(t, 7*24*3600, ttl, 5)
}

func TestRefreshRotationInvalidatesPredecessor(t *testing.T) {
	ctx := context.Background()
	m := newManager(storefakes.New())

	first, err := m.IssueTokens(ctx, model.Principal{ID: 1, Role: model.RoleUser})
	require.NoError(t, err)

	second, err := m.Refresh(ctx, first.Refresh.Raw)
	require.NoError(t, err)
	require.NotEqual(t, first.Refresh.Raw, second.Refresh.Raw)
	require.Equal(t, first.Principal, second.Principal)

	// Replaying the rotated-away token must fail.
	_, err = m.Refresh(ctx, first.Refresh.Raw)
	var appErr *httperr.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 401, appErr.Status)

	// The successor is still good for exactly one more rotation.
	_, err = m.Refresh(ctx, second.Refresh.Raw)
	require.NoError(t, err)
}

func TestRefreshUnknownTokenUnauthorized(t *testing.T) {
	m := newManager(storefakes.New())
	_, err := m.Refresh(context.Background(), "never-issued")
	var appErr *httperr.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 401, appErr.Status)
}

func TestSignOutIdempotent(t *testing.T) {
	ctx := context.Background()
	fs := storefakes.New()
	m := newManager(fs)

	pair, err := m.IssueTokens(ctx, model.Principal{ID: 1, Role: model.RoleUser})
	require.NoError(t, err)

	require.NoError(t, m.SignOut(ctx, pair.Refresh.Raw))

	_, err = fs.Get(ctx, "REFRESH:"+pair.Refresh.Raw)
	require.Error(t, err)
	members, err := fs.SMembers(ctx, "MEMBER_TOKENS:1")
	require.NoError(t, err)
	require.NotContains(t, members, pair.Refresh.Raw)

	// Repeating the sign-out, and signing out a token that never existed,
	// both succeed silently.
	require.NoError(t, m.SignOut(ctx, pair.Refresh.Raw))
	require.NoError(t, m.SignOut(ctx, "never-issued"))
	require.NoError(t, m.SignOut(ctx, "never-issued"))
}

func TestRevokeAllSessionsClearsMembership(t *testing.T) {
	ctx := context.Background()
	fs := storefakes.New()
	m := newManager(fs)

	var tokens []string
	for i := 0; i < 3; i++ {
		pair, err := m.IssueTokens(ctx, model.Principal{ID: 9, Role: model.RoleUser})
		require.NoError(t, err)
		tokens = append(tokens, pair.Refresh.Raw)
	}

	require.NoError(t, m.RevokeAllSessions(ctx, 9))

	for _, tok := range tokens {
		_, err := m.Refresh(ctx, tok)
		var appErr *httperr.Error
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, 401, appErr.Status)
	}
	exists, err := fs.Exists(ctx, "MEMBER_TOKENS:9")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestSignInWithLocalCredentials(t *testing.T) {
	ctx := context.Background()
	fs := storefakes.New()
	m := newManager(fs)

	members := repofakes.NewFakeMemberRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	id, err := members.Create(ctx, "test@example.com", string(hash), model.RoleUser)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	strat := auth.NewLocalStrategy(members)
	pair, err := m.SignIn(ctx, strat, auth.Credentials{Email: "test@example.com", Password: "password123"})
	require.NoError(t, err)

	// The refresh token resolves via the store to the member's principal,
	// and the member's token set names it.
	raw, err := fs.Get(ctx, "REFRESH:"+pair.Refresh.Raw)
	require.NoError(t, err)
	var p model.Principal
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	require.Equal(t, model.Principal{ID: 1, Role: model.RoleUser}, p)

	set, err := fs.SMembers(ctx, "MEMBER_TOKENS:1")
	require.NoError(t, err)
	require.Contains(t, set, pair.Refresh.Raw)

	// The access token verifies to the same principal.
	got, err := m.VerifyAccess(pair.Access.Token)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	m := newManager(storefakes.New())

	members := repofakes.NewFakeMemberRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = members.Create(ctx, "known@example.com", string(hash), model.RoleUser)
	require.NoError(t, err)

	strat := auth.NewLocalStrategy(members)

	// Unknown email and wrong password must be indistinguishable.
	_, errUnknown := m.SignIn(ctx, strat, auth.Credentials{Email: "unknown@example.com", Password: "x"})
	_, errWrongPw := m.SignIn(ctx, strat, auth.Credentials{Email: "known@example.com", Password: "wrong"})

	var e1, e2 *httperr.Error
	require.ErrorAs(t, errUnknown, &e1)
	require.ErrorAs(t, errWrongPw, &e2)
	require.Equal(t, e1.Status, e2.Status)
	require.Equal(t, e1.Code, e2.Code)
	require.Equal(t, e1.Message, e2.Message)
}
