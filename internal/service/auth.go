package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/med_assist/internal/apperr"
	"github.com/Skotchmaster/med_assist/internal/events"
	"github.com/Skotchmaster/med_assist/internal/hash"
	"github.com/Skotchmaster/med_assist/internal/logging"
	"github.com/Skotchmaster/med_assist/internal/models"
	"github.com/Skotchmaster/med_assist/internal/repo"
	"github.com/Skotchmaster/med_assist/internal/tokens"
	"github.com/Skotchmaster/med_assist/internal/util"
	"github.com/Skotchmaster/med_assist/internal/validate"
)

type AccountStore interface {
	Create(ctx context.Context, a *models.Account) error
	ByID(ctx context.Context, id uint) (*models.Account, error)
	ByEmail(ctx context.Context, email string) (*models.Account, error)
	ByUsername(ctx context.Context, username string) (*models.Account, error)
	Exists(ctx context.Context, id uint) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdatePasswordHash(ctx context.Context, id uint, hash string) error
	List(ctx context.Context, offset, limit int) ([]models.Account, int64, error)
}

// Revoker is the write side of the revocation ledger.
type Revoker interface {
	Revoke(ctx context.Context, jti, tokenType string, expiresAt time.Time) error
}

// LoginBy names which unique key a login request looks the account up by.
type LoginBy int

const (
	ByAuto LoginBy = iota
	ByEmail
	ByUsername
)

const (
	msgEmailTaken    = "Email already exists"
	msgUsernameTaken = "Username already exists"
	msgPasswordBytes = "Must be at most 72 bytes"
)

type RegisterInput struct {
	FirstName       string `json:"first_name"       validate:"required,min=1,max=30"`
	LastName        string `json:"last_name"        validate:"max=30"`
	Username        string `json:"username"         validate:"required,max=50"`
	Email           string `json:"email"            validate:"required,email,max=150"`
	Password        string `json:"password"         validate:"required,min=8,max=64"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=64,nefield=CurrentPassword"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type AuthService struct {
	accounts  AccountStore
	hasher    *hash.Hasher
	tokens    *tokens.Manager
	ledger    Revoker
	validator *validate.Validator
	events    events.Publisher
}

func NewAuthService(
	accounts AccountStore,
	hasher *hash.Hasher,
	tm *tokens.Manager,
	ledger Revoker,
	v *validate.Validator,
	pub events.Publisher,
) *AuthService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &AuthService{
		accounts:  accounts,
		hasher:    hasher,
		tokens:    tm,
		ledger:    ledger,
		validator: v,
		events:    pub,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	const op = "service.AuthService.Register"

	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)

	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	// max=64 counts characters; multibyte input can still overflow bcrypt
	if len(in.Password) > hash.MaxPasswordBytes {
		return nil, apperr.NewValidation("password", msgPasswordBytes)
	}

	taken := &apperr.ValidationError{}
	emailTaken, err := s.accounts.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if emailTaken {
		taken.Add("email", msgEmailTaken)
	}
	usernameTaken, err := s.accounts.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if usernameTaken {
		taken.Add("username", msgUsernameTaken)
	}
	if len(taken.Fields) > 0 {
		return nil, taken
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	account := &models.Account{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: passwordHash,
	}

	// a concurrent registration can still win between the check and the insert
	if err := s.accounts.Create(ctx, account); err != nil {
		switch {
		case errors.Is(err, repo.ErrEmailTaken):
			return nil, apperr.NewValidation("email", msgEmailTaken)
		case errors.Is(err, repo.ErrUsernameTaken):
			return nil, apperr.NewValidation("username", msgUsernameTaken)
		case errors.Is(err, repo.ErrDuplicate):
			ve := apperr.NewValidation("email", msgEmailTaken)
			ve.Add("username", msgUsernameTaken)
			return nil, ve
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logging.FromContext(ctx).Info("account_registered", "account_id", account.ID)
	s.emit(ctx, events.New(events.AccountRegistered, account.ID, map[string]any{"username": account.Username}))

	return account, nil
}

// Authenticate resolves loginKey and checks password. Unknown keys and wrong
// passwords both yield ErrInvalidCredentials after the same hashing work.
func (s *AuthService) Authenticate(ctx context.Context, by LoginBy, loginKey, password string) (*models.Account, error) {
	const op = "service.AuthService.Authenticate"

	loginKey = strings.TrimSpace(loginKey)
	if by == ByAuto {
		by = ByUsername
		if strings.Contains(loginKey, "@") {
			by = ByEmail
		}
	}

	var (
		account *models.Account
		err     error
	)
	switch by {
	case ByEmail:
		account, err = s.accounts.ByEmail(ctx, normalizeEmail(loginKey))
	default:
		account, err = s.accounts.ByUsername(ctx, loginKey)
	}

	if err != nil {
		if errors.Is(err, repo.ErrAccountNotFound) {
			s.hasher.DummyVerify(password)
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		return nil, apperr.ErrInvalidCredentials
	}

	return account, nil
}

func (s *AuthService) Login(ctx context.Context, by LoginBy, loginKey, password string) (*models.Account, TokenPair, error) {
	const op = "service.AuthService.Login"

	l := logging.FromContext(ctx)

	account, err := s.Authenticate(ctx, by, loginKey, password)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidCredentials) {
			l.Warn("login_failed", "reason", "invalid_credentials")
			s.emit(ctx, events.New(events.LoginFailed, 0, nil))
		}
		return nil, TokenPair{}, err
	}

	access, err := s.tokens.IssueAccess(account.ID, tokens.Extra{IsAdmin: account.IsAdmin})
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	refresh, err := s.tokens.IssueRefresh(account.ID)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	l.Info("login_succeeded", "account_id", account.ID)
	s.emit(ctx, events.New(events.LoginSucceeded, account.ID, nil))

	return account, TokenPair{AccessToken: access.Token, RefreshToken: refresh.Token}, nil
}

// Refresh mints a new access token for the bearer of a verified refresh token.
func (s *AuthService) Refresh(ctx context.Context, id *tokens.Identity) (string, error) {
	const op = "service.AuthService.Refresh"

	account, err := s.accounts.ByID(ctx, id.AccountID)
	if err != nil {
		if errors.Is(err, repo.ErrAccountNotFound) {
			return "", apperr.WithMessage(apperr.ErrNotFound, "User not found")
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	access, err := s.tokens.IssueAccess(account.ID, tokens.Extra{IsAdmin: account.IsAdmin})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.emit(ctx, events.New(events.TokenRefreshed, account.ID, nil))
	return access.Token, nil
}

// Logout revokes exactly the presented token; its sibling stays valid.
func (s *AuthService) Logout(ctx context.Context, id *tokens.Identity) error {
	const op = "service.AuthService.Logout"

	if err := s.ledger.Revoke(ctx, id.JTI, string(id.Type), id.ExpiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logging.FromContext(ctx).Info("token_revoked", "account_id", id.AccountID, "token_type", string(id.Type))
	s.emit(ctx, events.New(events.TokenRevoked, id.AccountID, map[string]any{"token_type": string(id.Type)}))
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, accountID uint, in ChangePasswordInput) error {
	const op = "service.AuthService.ChangePassword"

	if err := s.validator.Struct(in); err != nil {
		return err
	}
	if len(in.NewPassword) > hash.MaxPasswordBytes {
		return apperr.NewValidation("new_password", msgPasswordBytes)
	}

	account, err := s.accounts.ByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repo.ErrAccountNotFound) {
			return apperr.WithMessage(apperr.ErrNotFound, "User does not exist")
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if !s.hasher.Verify(in.CurrentPassword, account.PasswordHash) {
		return apperr.NewValidation("current_password", "Current password is incorrect")
	}

	passwordHash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.accounts.UpdatePasswordHash(ctx, accountID, passwordHash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logging.FromContext(ctx).Info("password_changed", "account_id", accountID)
	s.emit(ctx, events.New(events.PasswordChanged, accountID, nil))
	return nil
}

func (s *AuthService) Account(ctx context.Context, id uint) (*models.Account, error) {
	account, err := s.accounts.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrAccountNotFound) {
			return nil, apperr.WithMessage(apperr.ErrNotFound, "User does not exist")
		}
		return nil, fmt.Errorf("service.AuthService.Account: %w", err)
	}
	return account, nil
}

func (s *AuthService) AccountExists(ctx context.Context, id uint) (bool, error) {
	return s.accounts.Exists(ctx, id)
}

func (s *AuthService) ListAccounts(ctx context.Context, page, perPage int) (util.Page[models.Account], error) {
	offset, limit := util.Calculate(page, perPage)

	items, total, err := s.accounts.List(ctx, offset, limit)
	if err != nil {
		return util.Page[models.Account]{}, fmt.Errorf("service.AuthService.ListAccounts: %w", err)
	}
	return util.NewPage(items, total, page, limit), nil
}

// emit never fails the caller; broker trouble is logged and dropped.
func (s *AuthService) emit(ctx context.Context, e events.Event) {
	publish(ctx, s.events, e)
}

func publish(ctx context.Context, pub events.Publisher, e events.Event) {
	if err := pub.Publish(ctx, e); err != nil {
		logging.FromContext(ctx).Error("event_publish_failed", "type", e.Type, logging.Err(err))
	}
}
