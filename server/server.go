// Package server exposes the lazy-load runtimes and connection health over a
// small Echo server meant for local diagnostics.
package server

import (
	"context"
	goerrors "errors"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/database/types"
	"github.com/gaborage/go-bricks-lazyload/lazyload"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	slowRequest       = time.Second

	// TracingServiceName is the server name on request spans.
	TracingServiceName = "lazyload-debug"
)

// Server is the debug HTTP server.
type Server struct {
	echo   *echo.Echo
	cfg    *config.DebugConfig
	logger logger.Logger

	mu     sync.Mutex
	http   *http.Server
	closed bool
}

// New builds the server and registers its endpoints. interceptor and db may
// be nil when lazy-load detection or the database are disabled.
func New(cfg *config.DebugConfig, log logger.Logger, interceptor *lazyload.Interceptor, db types.Interface) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		handleError(err, c, log)
	}

	e.Use(middleware.RequestID())
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error().Err(err).Str("path", c.Path()).Str("stack", string(stack)).Msg("Recovered from panic")
			return err
		},
	}))
	e.Use(otelecho.Middleware(TracingServiceName, otelecho.WithSkipper(func(c echo.Context) bool {
		return c.Path() == "/health"
	})))
	e.Use(RequestLogger(log, slowRequest))

	var debugMiddleware []echo.MiddlewareFunc
	if cfg.RateLimit > 0 {
		debugMiddleware = append(debugMiddleware, rateLimiter(cfg.RateLimit))
	}
	NewDebugHandlers(interceptor, db, log).Register(e.Group("/debug", debugMiddleware...))
	e.GET("/health", healthHandler(db))

	return &Server{echo: e, cfg: cfg, logger: log}
}

// Echo returns the underlying Echo instance for additional routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start serves on the configured address and blocks until Shutdown. Start
// after Shutdown returns nil without serving.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.http = &http.Server{
		Addr:              s.cfg.Address,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	srv := s.http
	s.mu.Unlock()

	s.logger.Info().Str("address", s.cfg.Address).Msg("Starting debug server")
	if err := s.echo.StartServer(srv); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.http
	s.mu.Unlock()

	s.logger.Info().Msg("Shutting down debug server")
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.echo.Shutdown(ctx)
}

// rateLimiter allows perSecond requests per client IP with a burst of one
// second's worth.
func rateLimiter(perSecond float64) echo.MiddlewareFunc {
	burst := max(int(math.Ceil(perSecond)), 1)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSecond),
			Burst:     burst,
			ExpiresIn: time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
	})
}

func healthHandler(db types.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db == nil {
			return c.JSON(http.StatusOK, map[string]string{"status": "ok", "database": "disabled"})
		}
		if err := db.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "database": db.DatabaseType()})
	}
}

func handleError(err error, c echo.Context, log logger.Logger) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "internal server error"
	var he *echo.HTTPError
	if goerrors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(status)
		}
	} else {
		log.Error().Err(err).Str("path", c.Path()).Msg("Unhandled request error")
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, DebugResponse{Timestamp: time.Now().UTC(), Error: message})
}
