package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/med_assist/internal/access"
	"github.com/Skotchmaster/med_assist/internal/handlers"
	authmw "github.com/Skotchmaster/med_assist/internal/middleware/auth"
	"github.com/Skotchmaster/med_assist/internal/middleware/ratelimit"
	"github.com/Skotchmaster/med_assist/internal/models"
	"github.com/Skotchmaster/med_assist/internal/validate"
)

// Pinger reports whether a backing store answers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Validator *validate.Validator
	AuthMW    *authmw.Middleware
	Accounts  access.AccountChecker
	DB        Pinger

	AuthHandler   *handlers.AuthHandler
	UserHandler   *handlers.UserHandler
	SearchHandler *handlers.SearchHandler

	Symptoms   *handlers.RecordHandler[models.Symptom]
	FoodLogs   *handlers.RecordHandler[models.FoodLog]
	Labs       *handlers.RecordHandler[models.Lab]
	Treatments *handlers.RecordHandler[models.Treatment]

	LoginLimit    int
	RegisterLimit int
}

type recordRoutes interface {
	List(echo.Context) error
	Create(echo.Context) error
	Get(echo.Context) error
	Patch(echo.Context) error
	Delete(echo.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = ErrorHandler
	e.Validator = d.Validator

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.DB.PingContext(ctx); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register, ratelimit.Register(d.RegisterLimit))
	auth.POST("/login-email", d.AuthHandler.LoginEmail, ratelimit.Login(d.LoginLimit))
	auth.POST("/login-username", d.AuthHandler.LoginUsername, ratelimit.Login(d.LoginLimit))
	auth.GET("/logout", d.AuthHandler.Logout, d.AuthMW.RequireAny)
	auth.GET("/refresh", d.AuthHandler.Refresh, d.AuthMW.RequireRefresh)

	owner := []echo.MiddlewareFunc{d.AuthMW.RequireAccess, access.RequireOwner("id", d.Accounts)}

	api.GET("/user-required-info/:id", d.UserHandler.GetRequiredInfo, owner...)
	api.GET("/user-info/:id", d.UserHandler.GetInfo, owner...)
	api.PUT("/user-info/:id", d.UserHandler.PutInfo, owner...)

	user := api.Group("/user/:id", owner...)
	user.PUT("/password", d.AuthHandler.ChangePassword)
	user.GET("/search", d.SearchHandler.Records)

	records := map[string]recordRoutes{
		"symptoms":   d.Symptoms,
		"food-logs":  d.FoodLogs,
		"labs":       d.Labs,
		"treatments": d.Treatments,
	}
	for kind, h := range records {
		g := user.Group("/" + kind)
		g.GET("", h.List)
		g.POST("", h.Create)
		g.GET("/:record_id", h.Get)
		g.PATCH("/:record_id", h.Patch)
		g.DELETE("/:record_id", h.Delete)
	}

	admin := api.Group("/admin", d.AuthMW.RequireAdmin)
	admin.GET("/users", d.AuthHandler.ListAccounts)
}
