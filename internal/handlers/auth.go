package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/med_assist/internal/access"
	"github.com/Skotchmaster/med_assist/internal/apperr"
	authmw "github.com/Skotchmaster/med_assist/internal/middleware/auth"
	"github.com/Skotchmaster/med_assist/internal/service"
)

type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	account, err := h.Auth.Register(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User created successfully",
		"user":    account,
	})
}

type loginEmailRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginUsernameRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) LoginEmail(c echo.Context) error {
	var req loginEmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	return h.login(c, service.ByEmail, req.Email, req.Password, "Invalid email or password")
}

func (h *AuthHandler) LoginUsername(c echo.Context) error {
	var req loginUsernameRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	return h.login(c, service.ByUsername, req.Username, req.Password, "Invalid username or password")
}

func (h *AuthHandler) login(c echo.Context, by service.LoginBy, key, password, failMsg string) error {
	ctx, cancel := reqContext(c)
	defer cancel()

	_, pair, err := h.Auth.Login(ctx, by, key, password)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidCredentials) {
			return apperr.WithMessage(apperr.ErrInvalidCredentials, failMsg)
		}
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":       "Login Successful",
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	id, ok := authmw.IdentityFrom(c)
	if !ok {
		return apperr.ErrTokenMissing
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, id); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": string(id.Type) + " token revoked successfully",
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	id, ok := authmw.IdentityFrom(c)
	if !ok {
		return apperr.ErrTokenMissing
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	token, err := h.Auth.Refresh(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{"access_token": token})
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req service.ChangePasswordInput
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Auth.ChangePassword(ctx, access.OwnerID(c), req); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Password updated successfully"})
}

func (h *AuthHandler) ListAccounts(c echo.Context) error {
	page, perPage := pageParams(c, "per_page")

	ctx, cancel := reqContext(c)
	defer cancel()

	out, err := h.Auth.ListAccounts(ctx, page, perPage)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
