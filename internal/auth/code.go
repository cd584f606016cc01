package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/studylog/studylog-api/internal/httperr"
	"github.com/studylog/studylog-api/internal/mail"
	"github.com/studylog/studylog-api/internal/store"
)

const authCodePrefix = "AUTH_CODE:"

func authCodeKey(email string) string { return authCodePrefix + email }

// CodeService owns the email-ownership proofs: the 6-digit signup code and
// the opaque password-reset token. Both are single-use store entries with
// short TTLs.
type CodeService struct {
	store    store.Store
	mailer   mail.Sender
	baseURL  string
	codeTTL  time.Duration
	resetTTL time.Duration
}

func NewCodeService(s store.Store, mailer mail.Sender, baseURL string, codeTTLSecs, resetTTLMin int) *CodeService {
	return &CodeService{
		store:    s,
		mailer:   mailer,
		baseURL:  baseURL,
		codeTTL:  time.Duration(codeTTLSecs) * time.Second,
		resetTTL: time.Duration(resetTTLMin) * time.Minute,
	}
}

// SendCode stores a fresh 6-digit code for the email and mails it. A
// repeated request overwrites the previous code and restarts its TTL.
func (c *CodeService) SendCode(ctx context.Context, email string) error {
	code, err := sixDigitCode()
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, authCodeKey(email), code, c.codeTTL); err != nil {
		return err
	}
	return c.mailer.Send(ctx, mail.Message{
		To:      email,
		Subject: "Your verification code",
		HTML:    fmt.Sprintf("<p>Your verification code is <strong>%s</strong>. It expires in %d minutes.</p>", code, int(c.codeTTL.Minutes())),
	})
}

// CheckCode compares the submitted code without consuming it. An absent key
// (expired or never sent) and a mismatched code both surface as
// AuthCodeInvalid; the client cannot tell the cases apart. Callers consume
// the code with ConsumeCode once the step it was guarding has succeeded, so
// a failure downstream does not burn the code.
func (c *CodeService) CheckCode(ctx context.Context, email, code string) error {
	stored, err := c.store.Get(ctx, authCodeKey(email))
	if errors.Is(err, store.ErrNotFound) {
		return httperr.AuthCodeInvalid()
	}
	if err != nil {
		return err
	}
	if stored != code {
		return httperr.AuthCodeInvalid()
	}
	return nil
}

// ConsumeCode deletes the code for the email. After this a code validates
// zero more times.
func (c *CodeService) ConsumeCode(ctx context.Context, email string) error {
	_, err := c.store.Del(ctx, authCodeKey(email))
	return err
}

// VerifyCode checks the submitted code and deletes it on success, so a code
// validates exactly once.
func (c *CodeService) VerifyCode(ctx context.Context, email, code string) error {
	if err := c.CheckCode(ctx, email, code); err != nil {
		return err
	}
	return c.ConsumeCode(ctx, email)
}

// SendResetToken stores an opaque reset token mapping to the email and mails
// a reset link. The token itself is the store key, unprefixed.
func (c *CodeService) SendResetToken(ctx context.Context, email string) (string, error) {
	token := uuid.NewString()
	if err := c.store.Set(ctx, token, email, c.resetTTL); err != nil {
		return "", err
	}
	err := c.mailer.Send(ctx, mail.Message{
		To:      email,
		Subject: "Reset your password",
		HTML:    fmt.Sprintf(`<p><a href="%s/reset-password?token=%s">Reset your password</a></p>`, c.baseURL, token),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ConsumeResetToken resolves a reset token to its email and deletes it, so
// one token rewrites at most one password.
func (c *CodeService) ConsumeResetToken(ctx context.Context, token string) (string, error) {
	email, err := c.store.GetDel(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return "", httperr.Unauthorized()
	}
	if err != nil {
		return "", err
	}
	return email, nil
}

// sixDigitCode draws a uniform 6-digit numeric string, zero-padded.
func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
