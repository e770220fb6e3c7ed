package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/med_assist/internal/apperr"
)

const requestTimeout = 5 * time.Second

func reqContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// bind decodes the request body. A malformed body is a validation error,
// not a 500.
func bind(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return apperr.NewValidation("body", "Malformed request body")
	}
	return nil
}

// pageParams reads ?page and the per-page parameter named sizeKey. Missing
// or non-numeric values fall back to zero and are clamped downstream.
func pageParams(c echo.Context, sizeKey string) (page, size int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	size, _ = strconv.Atoi(c.QueryParam(sizeKey))
	return page, size
}

func recordID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("record_id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.NewValidation("record_id", "Must be a positive integer")
	}
	return uint(id), nil
}
