package httpx

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/adeilh/taskdo/internal/logutil"
)

// RequestLogMiddleware logs one line per request and stores the logger
// on the request context for downstream handlers.
func RequestLogMiddleware(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			c.SetRequest(req.WithContext(logutil.WithLogger(req.Context(), logger)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Dur("took", time.Since(start)).
				Msg("request")
			return nil
		}
	}
}

// ContextTimeoutMiddleware puts a deadline on each request context,
// bounding every store and directory round-trip made by the handler.
func ContextTimeoutMiddleware(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if d <= 0 {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RecoverMiddleware converts handler panics into 500 responses.
func RecoverMiddleware(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Interface("panic", r).
						Bytes("stack", debug.Stack()).
						Msg("handler panic")
					err = echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("%v", r))
				}
			}()
			return next(c)
		}
	}
}
