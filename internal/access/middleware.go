package access

import (
	"context"
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/med_assist/internal/apperr"
	authmw "github.com/Skotchmaster/med_assist/internal/middleware/auth"
)

const ownerKey = "owner_id"

type AccountChecker interface {
	AccountExists(ctx context.Context, id uint) (bool, error)
}

// RequireOwner guards routes whose path parameter param names the account
// that owns the resource. It must run after an auth middleware.
func RequireOwner(param string, accounts AccountChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := authmw.IdentityFrom(c)
			if !ok {
				return apperr.ErrTokenMissing
			}

			ownerID, err := parseID(c.Param(param))
			if err != nil {
				return apperr.NewValidation(param, "Must be a positive integer")
			}

			// foreign ids are refused before any lookup; 404 is only for the caller's own id
			if err := Authorize(id, ownerID); err != nil {
				return apperr.WithMessage(err, "Access Denied")
			}

			exists, err := accounts.AccountExists(c.Request().Context(), ownerID)
			if err != nil {
				return fmt.Errorf("access.RequireOwner: %w", err)
			}
			if !exists {
				return apperr.WithMessage(apperr.ErrNotFound, "User does not exist")
			}

			c.Set(ownerKey, ownerID)
			return next(c)
		}
	}
}

// OwnerID is the account id RequireOwner admitted for this request.
func OwnerID(c echo.Context) uint {
	id, _ := c.Get(ownerKey).(uint)
	return id
}

func parseID(raw string) (uint, error) {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(n), nil
}
