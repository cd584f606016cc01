package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/studylog/studylog-api/internal/config"
	"github.com/studylog/studylog-api/internal/httperr"
	"github.com/studylog/studylog-api/internal/model"
	"github.com/studylog/studylog-api/internal/repository"
)

// Non-Google providers publish plain OAuth2 endpoints; Google's come from
// OIDC discovery at construction time.
var (
	naverEndpoint = oauth2.Endpoint{
		AuthURL:  "https://nid.naver.com/oauth2.0/authorize",
		TokenURL: "https://nid.naver.com/oauth2.0/token",
	}
	kakaoEndpoint = oauth2.Endpoint{
		AuthURL:  "https://kauth.kakao.com/oauth/authorize",
		TokenURL: "https://kauth.kakao.com/oauth/token",
	}
)

const (
	naverProfileURL = "https://openapi.naver.com/v1/nid/me"
	kakaoProfileURL = "https://kapi.kakao.com/v2/user/me"
)

// OAuthStrategy exchanges an authorization code for the provider's profile,
// extracts the email, and provisions a member on first sight. Repeated
// logins for the same email always resolve to the same member.
type OAuthStrategy struct {
	name       string
	members    MemberDirectory
	cfg        *oauth2.Config
	fetchEmail func(ctx context.Context, code string) (string, error)
}

func (s *OAuthStrategy) Name() string { return s.name }

// AuthCodeURL builds the provider consent URL for the login redirect.
func (s *OAuthStrategy) AuthCodeURL(state string) string {
	return s.cfg.AuthCodeURL(state)
}

func (s *OAuthStrategy) Validate(ctx context.Context, cred Credentials) (model.Principal, error) {
	if cred.Code == "" {
		return model.Principal{}, httperr.OAuthFailure(strings.ToUpper(s.name))
	}
	email, err := s.fetchEmail(ctx, cred.Code)
	if err != nil || email == "" {
		return model.Principal{}, httperr.OAuthFailure(strings.ToUpper(s.name))
	}
	return provisionByEmail(ctx, s.members, strings.ToLower(email))
}

// provisionByEmail returns the member for an email, creating it on first
// sight. A concurrent create racing on the unique email index is resolved
// by re-reading, so duplicate logins never yield duplicate members.
func provisionByEmail(ctx context.Context, members MemberDirectory, email string) (model.Principal, error) {
	m, err := members.FindByEmail(ctx, email)
	if err == nil {
		return model.Principal{ID: m.ID, Role: m.Role}, nil
	}
	if !errors.Is(err, repository.ErrMemberNotFound) {
		return model.Principal{}, err
	}

	id, err := members.Create(ctx, email, "", model.RoleUser)
	if errors.Is(err, repository.ErrEmailExists) {
		m, err := members.FindByEmail(ctx, email)
		if err != nil {
			return model.Principal{}, err
		}
		return model.Principal{ID: m.ID, Role: m.Role}, nil
	}
	if err != nil {
		return model.Principal{}, err
	}
	return model.Principal{ID: id, Role: model.RoleUser}, nil
}

// NewGoogleStrategy discovers Google's OIDC configuration and verifies the
// ID token from the code exchange rather than calling a userinfo endpoint.
func NewGoogleStrategy(ctx context.Context, p config.OAuthProvider, members MemberDirectory) (*OAuthStrategy, error) {
	provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("google oidc discovery: %w", err)
	}
	cfg := &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email"},
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: p.ClientID})

	return &OAuthStrategy{
		name:    StrategyGoogle,
		members: members,
		cfg:     cfg,
		fetchEmail: func(ctx context.Context, code string) (string, error) {
			tok, err := cfg.Exchange(ctx, code)
			if err != nil {
				return "", err
			}
			rawID, ok := tok.Extra("id_token").(string)
			if !ok {
				return "", fmt.Errorf("no id_token in token response")
			}
			idTok, err := verifier.Verify(ctx, rawID)
			if err != nil {
				return "", err
			}
			var claims struct {
				Email string `json:"email"`
			}
			if err := idTok.Claims(&claims); err != nil {
				return "", err
			}
			return claims.Email, nil
		},
	}, nil
}

// NewNaverStrategy exchanges the code and reads the email from Naver's
// profile endpoint.
func NewNaverStrategy(p config.OAuthProvider, members MemberDirectory) *OAuthStrategy {
	cfg := &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURL,
		Endpoint:     naverEndpoint,
	}
	return &OAuthStrategy{
		name:    StrategyNaver,
		members: members,
		cfg:     cfg,
		fetchEmail: func(ctx context.Context, code string) (string, error) {
			var profile struct {
				Response struct {
					Email string `json:"email"`
				} `json:"response"`
			}
			if err := fetchProfile(ctx, cfg, code, naverProfileURL, &profile); err != nil {
				return "", err
			}
			return profile.Response.Email, nil
		},
	}
}

// NewKakaoStrategy exchanges the code and reads the email from Kakao's
// profile endpoint. Kakao only returns an email when the member consented
// to sharing it; an empty value fails the login.
func NewKakaoStrategy(p config.OAuthProvider, members MemberDirectory) *OAuthStrategy {
	cfg := &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURL,
		Endpoint:     kakaoEndpoint,
	}
	return &OAuthStrategy{
		name:    StrategyKakao,
		members: members,
		cfg:     cfg,
		fetchEmail: func(ctx context.Context, code string) (string, error) {
			var profile struct {
				KakaoAccount struct {
					Email string `json:"email"`
				} `json:"kakao_account"`
			}
			if err := fetchProfile(ctx, cfg, code, kakaoProfileURL, &profile); err != nil {
				return "", err
			}
			return profile.KakaoAccount.Email, nil
		},
	}
}

// fetchProfile runs the code exchange and GETs the profile endpoint with the
// resulting token, decoding the body into out.
func fetchProfile(ctx context.Context, cfg *oauth2.Config, code, url string, out any) error {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return err
	}
	resp, err := cfg.Client(ctx, tok).Get(url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("profile endpoint returned %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
