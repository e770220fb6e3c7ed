package ratelimit

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/labstack/echo/v4"
)

const limitedBody = `{"error":"rate_limited","message":"Too many requests"}`

func Login(perWindow int) echo.MiddlewareFunc {
	return limitByIP(perWindow, 5*time.Minute)
}

func Register(perWindow int) echo.MiddlewareFunc {
	return limitByIP(perWindow, time.Hour)
}

// limitByIP keys on the connection's RemoteAddr, never on forwarding
// headers, which the client controls. It is a no-op when limit is not positive.
func limitByIP(limit int, window time.Duration) echo.MiddlewareFunc {
	if limit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return echo.WrapMiddleware(httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(limitedBody))
		}),
	))
}
