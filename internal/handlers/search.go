package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/med_assist/internal/access"
	"github.com/Skotchmaster/med_assist/internal/service"
)

type SearchHandler struct {
	Search *service.SearchService
}

func NewSearchHandler(s *service.SearchService) *SearchHandler {
	return &SearchHandler{Search: s}
}

func (h *SearchHandler) Records(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	page, size := pageParams(c, "size")

	ctx, cancel := reqContext(c)
	defer cancel()

	out, err := h.Search.Search(ctx, access.OwnerID(c), q, page, size)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
