package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/med_assist/internal/apperr"
	"github.com/Skotchmaster/med_assist/internal/logging"
	"github.com/Skotchmaster/med_assist/internal/search"
)

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorHandler renders every error returned by a handler or middleware.
// Unclassified errors are logged and reported as a bare 500.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := classify(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("internal_error", logging.Err(err))
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, body)
	}
	if werr != nil {
		logging.FromContext(c.Request().Context()).Error("error_response_failed", logging.Err(werr))
	}
}

func classify(err error) (int, errorBody) {
	if ve, ok := apperr.IsValidation(err); ok {
		return http.StatusBadRequest, errorBody{
			Error:   "validation_error",
			Message: "Invalid input",
			Fields:  ve.Fields,
		}
	}

	switch {
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorBody{"invalid_credentials", message(err, "Invalid credentials"), nil}
	case errors.Is(err, apperr.ErrTokenExpired):
		return http.StatusUnauthorized, errorBody{"token_expired", "Token has expired", nil}
	case errors.Is(err, apperr.ErrTokenInvalid), errors.Is(err, apperr.ErrTokenRevoked):
		return http.StatusUnauthorized, errorBody{"invalid_token", "Invalid token", nil}
	case errors.Is(err, apperr.ErrTokenMissing):
		return http.StatusUnauthorized, errorBody{"authorization_required", "Authorization required", nil}
	case errors.Is(err, apperr.ErrAccessDenied):
		return http.StatusForbidden, errorBody{"access_denied", message(err, "Access Denied"), nil}
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, errorBody{"not_found", message(err, "Not found"), nil}
	case errors.Is(err, search.ErrUnavailable):
		return http.StatusServiceUnavailable, errorBody{"search_unavailable", "Search is not configured", nil}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, errorBody{statusCode(he.Code), msg, nil}
	}

	return http.StatusInternalServerError, errorBody{"internal_error", "Internal error", nil}
}

// message prefers the text attached with apperr.WithMessage.
func message(err error, fallback string) string {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return fallback
}

func statusCode(code int) string {
	return strings.ReplaceAll(strings.ToLower(http.StatusText(code)), " ", "_")
}
