package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/studylog/studylog-api/internal/httperr"
	"github.com/studylog/studylog-api/internal/model"
	"github.com/studylog/studylog-api/internal/store"
)

// Key layout in the store. Every refresh token lives at REFRESH:{token} with
// a TTL equal to the refresh lifetime, and is indexed in the owning member's
// MEMBER_TOKENS:{id} set. Passive TTL expiry does not clean the set, so a
// set entry without a matching REFRESH key is treated as already invalid.
const (
	refreshPrefix      = "REFRESH:"
	memberTokensPrefix = "MEMBER_TOKENS:"
)

func refreshKey(token string) string { return refreshPrefix + token }

func memberTokensKey(id uint64) string {
	return memberTokensPrefix + strconv.FormatUint(id, 10)
}

// TokenPair is the result of a successful sign-in or refresh.
type TokenPair struct {
	Access    AccessToken
	Refresh   RefreshToken
	Principal model.Principal
}

// Manager issues, rotates and revokes the token pair for a member. All
// refresh-token bookkeeping lives in the key-value store; the manager holds
// no in-process session state.
type Manager struct {
	store          store.Store
	secret         string
	accessTTLMin   int
	refreshTTLDays int
	log            zerolog.Logger
}

func NewManager(s store.Store, secret string, accessTTLMin, refreshTTLDays int, log zerolog.Logger) *Manager {
	return &Manager{
		store:          s,
		secret:         secret,
		accessTTLMin:   accessTTLMin,
		refreshTTLDays: refreshTTLDays,
		log:            log,
	}
}

// SignIn resolves credentials through the given strategy and, on success,
// issues a fresh token pair for the resolved principal.
func (m *Manager) SignIn(ctx context.Context, strat Strategy, cred Credentials) (TokenPair, error) {
	p, err := strat.Validate(ctx, cred)
	if err != nil {
		return TokenPair{}, err
	}
	return m.IssueTokens(ctx, p)
}

// IssueTokens mints an access/refresh pair, persists the refresh token with
// the configured lifetime and records it in the member's token set.
func (m *Manager) IssueTokens(ctx context.Context, p model.Principal) (TokenPair, error) {
	access, err := NewAccessToken(m.secret, p, m.accessTTLMin)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := NewRefreshToken(m.refreshTTLDays)
	if err != nil {
		return TokenPair{}, err
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return TokenPair{}, err
	}
	ttl := time.Duration(m.refreshTTLDays) * 24 * time.Hour
	if err := m.store.Set(ctx, refreshKey(refresh.Raw), string(payload), ttl); err != nil {
		return TokenPair{}, err
	}
	if err := m.store.SAdd(ctx, memberTokensKey(p.ID), refresh.Raw); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{Access: access, Refresh: refresh, Principal: p}, nil
}

// Refresh rotates a refresh token: the old token is consumed atomically via
// GetDel, so it can never be exchanged twice, then a new pair is issued
// exactly as in sign-in. A missing or expired token yields Unauthorized.
func (m *Manager) Refresh(ctx context.Context, oldToken string) (TokenPair, error) {
	raw, err := m.store.GetDel(ctx, refreshKey(oldToken))
	if errors.Is(err, store.ErrNotFound) {
		return TokenPair{}, httperr.Unauthorized()
	}
	if err != nil {
		return TokenPair{}, err
	}

	var p model.Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		m.log.Error().Str("token", truncate(oldToken, 8)).Err(err).Msg("corrupt refresh payload")
		return TokenPair{}, httperr.Unauthorized()
	}
	if err := m.store.SRem(ctx, memberTokensKey(p.ID), oldToken); err != nil {
		return TokenPair{}, err
	}
	return m.IssueTokens(ctx, p)
}

// SignOut invalidates a single refresh token. Logging out an unknown or
// already-expired token is not an error; the call succeeds silently.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	raw, err := m.store.GetDel(ctx, refreshKey(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var p model.Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		// Token already gone from the store; the stale set entry is harmless.
		return nil
	}
	return m.store.SRem(ctx, memberTokensKey(p.ID), token)
}

// RevokeAllSessions deletes every refresh token the member's set names, then
// the set itself. Used on account deletion and "log out everywhere".
func (m *Manager) RevokeAllSessions(ctx context.Context, memberID uint64) error {
	setKey := memberTokensKey(memberID)
	tokens, err := m.store.SMembers(ctx, setKey)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, refreshKey(t))
	}
	keys = append(keys, setKey)
	_, err = m.store.Del(ctx, keys...)
	return err
}

// VerifyAccess validates a bearer access token against the manager's secret.
func (m *Manager) VerifyAccess(raw string) (model.Principal, error) {
	return VerifyAccessToken(m.secret, raw)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
