package httperr

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// envelope is the uniform JSON body returned for every handled error.
type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// NewHTTPErrorHandler builds the global echo error handler. It logs a
// structured record (method, URL, status, masked Authorization header, and
// the full error for internal failures) and writes the {status, message}
// envelope. Stack traces and wrapped causes never reach the client.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"
		code := "INTERNAL"

		var appErr *Error
		var echoErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			status = appErr.Status
			message = appErr.Message
			code = appErr.Code
		case errors.As(err, &echoErr):
			status = echoErr.Code
			if m, ok := echoErr.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
			code = "HTTP"
		}

		req := c.Request()
		evt := log.Error()
		if status < http.StatusInternalServerError {
			evt = log.Warn()
		}
		evt.Str("method", req.Method).
			Str("url", req.URL.String()).
			Int("status", status).
			Str("code", code).
			Str("authorization", maskAuthorization(req.Header.Get("Authorization"))).
			Err(err).
			Msg("request failed")

		if req.Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, envelope{Status: status, Message: message})
	}
}

// maskAuthorization keeps the scheme and the first few characters of a
// credential so log lines stay correlatable without leaking the token.
func maskAuthorization(h string) string {
	if h == "" {
		return ""
	}
	scheme, rest, found := strings.Cut(h, " ")
	if !found {
		rest, scheme = scheme, ""
	}
	if len(rest) > 6 {
		rest = rest[:6] + "..."
	}
	return strings.TrimSpace(scheme + " " + rest)
}
