// Package auth guards echo routes with bearer tokens.
package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/med_assist/internal/apperr"
	"github.com/Skotchmaster/med_assist/internal/logging"
	"github.com/Skotchmaster/med_assist/internal/tokens"
)

const identityKey = "identity"

type Verifier interface {
	Verify(ctx context.Context, raw string, required tokens.Type) (*tokens.Identity, error)
}

type ValidatorFunc func(id *tokens.Identity) error

type Middleware struct {
	verifier Verifier
}

func New(v Verifier) *Middleware {
	return &Middleware{verifier: v}
}

func (m *Middleware) RequireAccess(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireWithValidator(next, tokens.TypeAccess, nil)
}

func (m *Middleware) RequireRefresh(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireWithValidator(next, tokens.TypeRefresh, nil)
}

// RequireAny accepts either token type; logout is its only user.
func (m *Middleware) RequireAny(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireWithValidator(next, tokens.TypeAny, nil)
}

func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireWithValidator(next, tokens.TypeAccess, func(id *tokens.Identity) error {
		if !id.IsAdmin {
			return apperr.WithMessage(apperr.ErrAccessDenied, "Admin access required")
		}
		return nil
	})
}

func (m *Middleware) requireWithValidator(next echo.HandlerFunc, required tokens.Type, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := bearerToken(c)
		if !ok {
			return apperr.ErrTokenMissing
		}

		req := c.Request()
		id, err := m.verifier.Verify(req.Context(), raw, required)
		if err != nil {
			return err
		}

		if validator != nil {
			if err := validator(id); err != nil {
				return err
			}
		}

		SetIdentity(c, id)

		l := logging.FromContext(req.Context()).With("account_id", id.AccountID)
		c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))

		return next(c)
	}
}

func bearerToken(c echo.Context) (string, bool) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, found := strings.Cut(strings.TrimSpace(h), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func SetIdentity(c echo.Context, id *tokens.Identity) {
	c.Set(identityKey, id)
}

func IdentityFrom(c echo.Context) (*tokens.Identity, bool) {
	id, ok := c.Get(identityKey).(*tokens.Identity)
	return id, ok && id != nil
}
