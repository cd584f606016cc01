package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/studylog/studylog-api/internal/httperr"
	"github.com/studylog/studylog-api/internal/model"
	"github.com/studylog/studylog-api/internal/repository"
)

// LocalStrategy validates an email/password pair against the member record.
// An unknown email and a wrong password produce the same error, so login
// responses cannot be used to enumerate accounts.
type LocalStrategy struct {
	members MemberDirectory
}

func NewLocalStrategy(members MemberDirectory) *LocalStrategy {
	return &LocalStrategy{members: members}
}

func (s *LocalStrategy) Name() string { return StrategyLocal }

func (s *LocalStrategy) Validate(ctx context.Context, cred Credentials) (model.Principal, error) {
	if cred.Email == "" || cred.Password == "" {
		return model.Principal{}, httperr.InvalidAuthFormat()
	}

	m, err := s.members.FindByEmail(ctx, cred.Email)
	if errors.Is(err, repository.ErrMemberNotFound) {
		return model.Principal{}, httperr.InvalidCredentials()
	}
	if err != nil {
		return model.Principal{}, err
	}
	// OAuth-provisioned accounts have no password hash and cannot log in
	// locally; report the same ambiguous failure.
	if !m.PasswordHash.Valid {
		return model.Principal{}, httperr.InvalidCredentials()
	}
	if bcrypt.CompareHashAndPassword([]byte(m.PasswordHash.String), []byte(cred.Password)) != nil {
		return model.Principal{}, httperr.InvalidCredentials()
	}
	return model.Principal{ID: m.ID, Role: m.Role}, nil
}

// JWTStrategy resolves a bearer access token to its embedded principal.
// Stateless: signature and expiry are the whole check, with no store lookup.
type JWTStrategy struct {
	secret string
}

func NewJWTStrategy(secret string) *JWTStrategy {
	return &JWTStrategy{secret: secret}
}

func (s *JWTStrategy) Name() string { return StrategyJWT }

func (s *JWTStrategy) Validate(_ context.Context, cred Credentials) (model.Principal, error) {
	if cred.Token == "" {
		return model.Principal{}, httperr.Unauthorized()
	}
	p, err := VerifyAccessToken(s.secret, cred.Token)
	if err != nil {
		return model.Principal{}, httperr.Unauthorized()
	}
	return p, nil
}
