// Package httperr defines the application error taxonomy and the global
// error handler that renders it. Every service-layer failure that should
// reach a client is one of the constructors below; anything else is treated
// as an internal error and its cause is logged, never returned.
package httperr

import (
	"net/http"
)

// Error carries an HTTP status and a machine-readable code alongside the
// client-facing message. It satisfies the error interface so services can
// return it through ordinary error plumbing.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"-"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

// InvalidCredentials deliberately does not distinguish an unknown email from
// a wrong password, so login failures cannot be used for account enumeration.
func InvalidCredentials() *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "INVALID_CREDENTIALS", Message: "invalid email or password"}
}

// InvalidAuthFormat reports a malformed credential payload (missing email or
// password) as the same 401 class as a failed login.
func InvalidAuthFormat() *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "INVALID_AUTH_FORMAT", Message: "email and password required"}
}

// Unauthorized covers a missing, invalid, expired or rotated-away token of
// either kind. Callers must force re-authentication.
func Unauthorized() *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "authentication required"}
}

// Forbidden reports an authenticated principal whose role does not satisfy
// the route's requirement.
func Forbidden() *Error {
	return &Error{Status: http.StatusForbidden, Code: "FORBIDDEN", Message: "insufficient role"}
}

// OAuthFailure reports that a provider login could not be completed, most
// commonly because the provider did not return a usable email. The code is
// provider-specific so operators can tell the flows apart in logs.
func OAuthFailure(provider string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "OAUTH_" + provider + "_FAILED", Message: "oauth login failed"}
}

// SendEmailFailed wraps any transport error from the mailer. The original
// cause is logged by the mailer, not exposed here.
func SendEmailFailed() *Error {
	return &Error{Status: http.StatusInternalServerError, Code: "SEND_EMAIL_FAILED", Message: "failed to send email"}
}

// AuthCodeInvalid is returned both when the stored code expired (key absent)
// and when the submitted code mismatches. The two cases are intentionally
// indistinguishable to the client.
func AuthCodeInvalid() *Error {
	return &Error{Status: http.StatusBadRequest, Code: "AUTH_CODE_INVALID", Message: "invalid or expired code"}
}
