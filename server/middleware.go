package server

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gaborage/go-bricks-lazyload/logger"
)

// RequestLogger logs one line per request with the number of statements and
// lazy loads the request caused. Requests with lazy loads, 4xx/5xx responses
// or a latency above slow are logged at warn.
func RequestLogger(log logger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logger.WithLazyLoadCounter(logger.WithDBCounter(c.Request().Context()))
			c.SetRequest(c.Request().WithContext(ctx))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			latency := time.Since(start)

			status := c.Response().Status
			lazyLoads := logger.GetLazyLoadCounter(ctx)

			event := log.Info()
			if status >= 400 || lazyLoads > 0 || (slow > 0 && latency > slow) {
				event = log.Warn()
			}
			if err != nil {
				event = event.Err(err)
			}

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}

			event.
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("method", c.Request().Method).
				Str("path", path).
				Int("status", status).
				Dur("latency", latency).
				Int64("db_statements", logger.GetDBCounter(ctx)).
				Dur("db_elapsed", time.Duration(logger.GetDBElapsed(ctx))).
				Int64("lazy_loads", lazyLoads).
				Msg("Request completed")

			return nil
		}
	}
}
