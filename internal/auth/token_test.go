package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studylog/studylog-api/internal/auth"
	"github.com/studylog/studylog-api/internal/model"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	p := model.Principal{ID: 12345678901234, Role: model.RoleAdmin}
	tok, err := auth.NewAccessToken("secret", p, 15)
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)

	got, err := auth.VerifyAccessToken("secret", tok.Token)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestAccessTokenRejectsWrongSecret(t *testing.T) {
	tok, err := auth.NewAccessToken("secret", model.Principal{ID: 1, Role: model.RoleUser}, 15)
	require.NoError(t, err)

	_, err = auth.VerifyAccessToken("other-secret", tok.Token)
	require.Error(t, err)
}

func TestAccessTokenRejectsExpired(t *testing.T) {
	tok, err := auth.NewAccessToken("secret", model.Principal{ID: 1, Role: model.RoleUser}, -1)
	require.NoError(t, err)

	_, err = auth.VerifyAccessToken("secret", tok.Token)
	require.Error(t, err)
}

func TestAccessTokenRejectsGarbage(t *testing.T) {
	_, err := auth.VerifyAccessToken("secret", "not-a-jwt")
	require.Error(t, err)
}

func TestRefreshTokensAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		rt, err := auth.NewRefreshToken(7)
		require.NoError(t, err)
		require.Len(t, rt.Raw, 96)
		require.False(t, seen[rt.Raw])
		seen[rt.Raw] = true
	}
}
