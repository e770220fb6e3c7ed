package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/med_assist/internal/access"
	"github.com/Skotchmaster/med_assist/internal/models"
	"github.com/Skotchmaster/med_assist/internal/service"
)

type UserHandler struct {
	Auth *service.AuthService
	Info *service.UserInfoService
}

func NewUserHandler(auth *service.AuthService, info *service.UserInfoService) *UserHandler {
	return &UserHandler{Auth: auth, Info: info}
}

func (h *UserHandler) GetRequiredInfo(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()

	account, err := h.Auth.Account(ctx, access.OwnerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user": account})
}

func (h *UserHandler) GetInfo(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()

	info, err := h.Info.Get(ctx, access.OwnerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user_info": info})
}

func (h *UserHandler) PutInfo(c echo.Context) error {
	var info models.UserInfo
	if err := bind(c, &info); err != nil {
		return err
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	saved, err := h.Info.Put(ctx, access.OwnerID(c), &info)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":   "User info saved successfully",
		"user_info": saved,
	})
}
