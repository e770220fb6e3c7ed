package access

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/med_assist/internal/apperr"
	authmw "github.com/Skotchmaster/med_assist/internal/middleware/auth"
	"github.com/Skotchmaster/med_assist/internal/tokens"
)

type fakeAccounts struct {
	known   map[uint]bool
	lookups *int
}

func (f fakeAccounts) AccountExists(_ context.Context, id uint) (bool, error) {
	*f.lookups++
	if id == 13 {
		return false, errors.New("db down")
	}
	return f.known[id], nil
}

func runOwner(t *testing.T, caller *tokens.Identity, pathID string) (uint, int, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/user/"+pathID+"/labs", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(pathID)
	if caller != nil {
		authmw.SetIdentity(c, caller)
	}

	var (
		owner   uint
		lookups int
	)
	accounts := fakeAccounts{known: map[uint]bool{5: true, 6: true, 13: true}, lookups: &lookups}
	err := RequireOwner("id", accounts)(func(c echo.Context) error {
		owner = OwnerID(c)
		return nil
	})(c)
	return owner, lookups, err
}

func TestRequireOwner(t *testing.T) {
	caller := &tokens.Identity{AccountID: 5, Type: tokens.TypeAccess}

	owner, lookups, err := runOwner(t, caller, "5")
	require.NoError(t, err)
	assert.Equal(t, uint(5), owner)
	assert.Equal(t, 1, lookups)

	for _, bad := range []string{"abc", "0", "-3"} {
		_, _, err = runOwner(t, caller, bad)
		_, isVal := apperr.IsValidation(err)
		assert.True(t, isVal, "id %q", bad)
	}

	_, _, err = runOwner(t, nil, "5")
	assert.ErrorIs(t, err, apperr.ErrTokenMissing)
}

func TestRequireOwner_ForeignIDSkipsLookup(t *testing.T) {
	caller := &tokens.Identity{AccountID: 5, Type: tokens.TypeAccess}

	// existing and missing foreign ids look the same
	for _, pathID := range []string{"6", "77"} {
		_, lookups, err := runOwner(t, caller, pathID)
		assert.ErrorIs(t, err, apperr.ErrAccessDenied, pathID)
		assert.NotErrorIs(t, err, apperr.ErrNotFound, pathID)
		assert.Zero(t, lookups, pathID)
	}
}

func TestRequireOwner_OwnAccountGone(t *testing.T) {
	_, lookups, err := runOwner(t, &tokens.Identity{AccountID: 77, Type: tokens.TypeAccess}, "77")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "User does not exist", err.Error())
	assert.Equal(t, 1, lookups)

	_, _, err = runOwner(t, &tokens.Identity{AccountID: 13, Type: tokens.TypeAccess}, "13")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperr.ErrAccessDenied)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
}
