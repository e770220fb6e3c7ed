package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/med_assist/internal/access"
	"github.com/Skotchmaster/med_assist/internal/apperr"
	"github.com/Skotchmaster/med_assist/internal/util"
)

const maxPatchBody = 64 << 10

// RecordService is what RecordHandler needs from the record layer.
type RecordService[T any] interface {
	Label() string
	Create(ctx context.Context, ownerID uint, rec *T) (*T, error)
	Get(ctx context.Context, ownerID, id uint) (*T, error)
	List(ctx context.Context, ownerID uint, page, perPage int) (util.Page[T], error)
	Patch(ctx context.Context, ownerID, id uint, body []byte) (*T, error)
	Delete(ctx context.Context, ownerID, id uint) error
}

// RecordHandler serves the CRUD routes of one record kind. key is the JSON
// field single records are returned under.
type RecordHandler[T any] struct {
	svc RecordService[T]
	key string
}

func NewRecordHandler[T any](svc RecordService[T], key string) *RecordHandler[T] {
	return &RecordHandler[T]{svc: svc, key: key}
}

func (h *RecordHandler[T]) List(c echo.Context) error {
	page, perPage := pageParams(c, "per_page")

	ctx, cancel := reqContext(c)
	defer cancel()

	out, err := h.svc.List(ctx, access.OwnerID(c), page, perPage)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RecordHandler[T]) Create(c echo.Context) error {
	rec := new(T)
	if err := bind(c, rec); err != nil {
		return err
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	created, err := h.svc.Create(ctx, access.OwnerID(c), rec)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": h.svc.Label() + " added successfully",
		h.key:     created,
	})
}

func (h *RecordHandler[T]) Get(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	rec, err := h.svc.Get(ctx, access.OwnerID(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{h.key: rec})
}

func (h *RecordHandler[T]) Patch(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPatchBody))
	if err != nil {
		return apperr.NewValidation("body", "Malformed request body")
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	rec, err := h.svc.Patch(ctx, access.OwnerID(c), id, body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": h.svc.Label() + " updated successfully",
		h.key:     rec,
	})
}

func (h *RecordHandler[T]) Delete(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.svc.Delete(ctx, access.OwnerID(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": h.svc.Label() + " deleted successfully"})
}
