package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
	// TypeAny relaxes the type check; only logout accepts it.
	TypeAny Type = "any"
)

func (t Type) valid() bool {
	return t == TypeAccess || t == TypeRefresh
}

type Claims struct {
	jwt.RegisteredClaims
	Type    Type `json:"type"`
	IsAdmin bool `json:"is_admin,omitempty"`
}

// Extra carries the custom claims embedded in access tokens.
type Extra struct {
	IsAdmin bool
}

// Identity is what a verified token says about its bearer.
type Identity struct {
	AccountID uint
	IsAdmin   bool
	Type      Type
	JTI       string
	ExpiresAt time.Time
}

type Issued struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}
