package tokens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Skotchmaster/med_assist/internal/apperr"
)

const MinSecretLen = 32

// RevocationChecker is the read side of the revocation ledger.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	ledger     RevocationChecker
	now        func() time.Time
}

type Option func(*Manager)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func New(secret string, accessTTL, refreshTTL time.Duration, ledger RevocationChecker, opts ...Option) (*Manager, error) {
	const op = "tokens.New"

	switch {
	case len(secret) < MinSecretLen:
		return nil, fmt.Errorf("%s: signing secret must be at least %d bytes", op, MinSecretLen)
	case accessTTL <= 0 || refreshTTL <= 0:
		return nil, fmt.Errorf("%s: token TTLs must be positive", op)
	case refreshTTL <= accessTTL:
		return nil, fmt.Errorf("%s: refresh TTL must exceed access TTL", op)
	case ledger == nil:
		return nil, fmt.Errorf("%s: revocation ledger is required", op)
	}

	m := &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		ledger:     ledger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) IssueAccess(accountID uint, extra Extra) (Issued, error) {
	return m.issue(accountID, TypeAccess, m.accessTTL, extra.IsAdmin)
}

func (m *Manager) IssueRefresh(accountID uint) (Issued, error) {
	return m.issue(accountID, TypeRefresh, m.refreshTTL, false)
}

func (m *Manager) issue(accountID uint, typ Type, ttl time.Duration, isAdmin bool) (Issued, error) {
	now := m.now()
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(accountID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
		Type:    typ,
		IsAdmin: isAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Issued{}, fmt.Errorf("signing %s token: %w", typ, err)
	}

	return Issued{Token: signed, JTI: jti, ExpiresAt: exp}, nil
}

// Parse checks signature and expiry and decodes the claims. It does not
// consult the revocation ledger; use Verify for request authentication.
func (m *Manager) Parse(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(_ *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", apperr.ErrTokenInvalid, err)
	}

	if claims.ID == "" || !claims.Type.valid() {
		return nil, fmt.Errorf("%w: missing jti or type", apperr.ErrTokenInvalid)
	}

	return &claims, nil
}

// Verify authenticates a bearer token: signature, expiry, type, then revocation.
func (m *Manager) Verify(ctx context.Context, raw string, required Type) (*Identity, error) {
	const op = "tokens.Verify"

	if raw == "" {
		return nil, apperr.ErrTokenMissing
	}

	claims, err := m.Parse(raw)
	if err != nil {
		return nil, err
	}

	if required != TypeAny && claims.Type != required {
		return nil, fmt.Errorf("%w: %s token where %s expected", apperr.ErrTokenInvalid, claims.Type, required)
	}

	accountID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || accountID == 0 {
		return nil, fmt.Errorf("%w: bad subject", apperr.ErrTokenInvalid)
	}

	revoked, err := m.ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if revoked {
		return nil, apperr.ErrTokenRevoked
	}

	return &Identity{
		AccountID: uint(accountID),
		IsAdmin:   claims.IsAdmin,
		Type:      claims.Type,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
