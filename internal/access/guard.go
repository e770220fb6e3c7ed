// Package access decides whether an authenticated caller may act on a
// resource owned by a given account.
package access

import (
	"github.com/Skotchmaster/med_assist/internal/apperr"
	"github.com/Skotchmaster/med_assist/internal/tokens"
)

// Authorize allows the caller only when it owns the resource. Admin status
// grants nothing here; admins get their own routes.
func Authorize(id *tokens.Identity, ownerID uint) error {
	if id == nil || id.AccountID == 0 || id.AccountID != ownerID {
		return apperr.ErrAccessDenied
	}
	return nil
}
