// Package auth owns the token/session lifecycle and identity resolution:
// issuing and verifying access tokens, rotating refresh tokens, one-time
// auth codes, password resets, and the login strategies that map external
// credentials to a member principal.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/studylog/studylog-api/internal/model"
)

// AccessToken is a signed short-lived JWT plus its expiry. Access tokens are
// stateless: validity is signature plus the exp claim, with no server-side
// revocation path, which is why their TTL stays short.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is a long-lived opaque credential. Only the key-value store
// knows about it; it carries no structure a client could inspect.
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// NewAccessToken signs an HS256 JWT for the principal. Claims follow the
// shape enforced by VerifyAccessToken: sub (member id as string), role, exp
// and iat.
func NewAccessToken(secret string, p model.Principal, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(p.ID, 10),
		"role": p.Role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// VerifyAccessToken checks signature and expiry and returns the embedded
// principal. No store round-trip happens here; a valid signature within the
// exp window is trusted as-is.
func VerifyAccessToken(secret, raw string) (model.Principal, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return model.Principal{}, fmt.Errorf("invalid access token: %w", err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return model.Principal{}, fmt.Errorf("invalid access token claims")
	}

	var id uint64
	switch sub := claims["sub"].(type) {
	case string:
		id, err = strconv.ParseUint(sub, 10, 64)
		if err != nil {
			return model.Principal{}, fmt.Errorf("invalid sub claim: %w", err)
		}
	case float64:
		id = uint64(sub)
	default:
		return model.Principal{}, fmt.Errorf("missing sub claim")
	}

	role, _ := claims["role"].(string)
	if role == "" {
		return model.Principal{}, fmt.Errorf("missing role claim")
	}
	return model.Principal{ID: id, Role: role}, nil
}

// NewRefreshToken returns a cryptographically random opaque token. 48 bytes
// of entropy encoded as 96 hex characters.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
	raw, err := randomHex(48)
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: raw,
		Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}, nil
}

// NewStateToken returns a random value for the OAuth state parameter.
func NewStateToken() (string, error) {
	return randomHex(16)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
