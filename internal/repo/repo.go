package repo

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrRecordNotFound  = errors.New("record not found")
	ErrEmailTaken      = errors.New("email already exists")
	ErrUsernameTaken   = errors.New("username already exists")
	ErrDuplicate       = errors.New("duplicate key")
)

const pgUniqueViolation = "23505"

// uniqueViolation reports whether err is a unique-constraint failure and, when
// the driver exposes it, which constraint or column tripped.
func uniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}

	// sqlite: "UNIQUE constraint failed: accounts.email (2067)"
	if msg := err.Error(); strings.Contains(msg, "UNIQUE constraint failed") {
		return msg, true
	}

	return "", false
}
