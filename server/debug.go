package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gaborage/go-bricks-lazyload/database/types"
	"github.com/gaborage/go-bricks-lazyload/lazyload"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

// DebugResponse represents a standard debug endpoint response
type DebugResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Duration  string    `json:"duration,omitempty"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// SiteReport is the JSON form of one call site.
type SiteReport struct {
	Location  string  `json:"location"`
	Count     int     `json:"count"`
	TotalMs   int64   `json:"total_ms"`
	AverageMs int64   `json:"average_ms"`
	Samples   []int64 `json:"samples"`
}

// LazyLoadReport is the JSON form of the aggregated runtimes.
type LazyLoadReport struct {
	Locations int          `json:"locations"`
	Loads     int          `json:"lazy_loads"`
	TotalMs   int64        `json:"total_ms"`
	Sites     []SiteReport `json:"sites"`
}

// DebugHandlers serves the lazy-load and connection diagnostics.
type DebugHandlers struct {
	interceptor *lazyload.Interceptor
	db          types.Interface
	logger      logger.Logger
}

// NewDebugHandlers creates the handlers; nil dependencies answer 503.
func NewDebugHandlers(interceptor *lazyload.Interceptor, db types.Interface, log logger.Logger) *DebugHandlers {
	return &DebugHandlers{interceptor: interceptor, db: db, logger: log}
}

// Register mounts the endpoints on g.
func (d *DebugHandlers) Register(g *echo.Group) {
	g.GET("/lazyload", d.handleSnapshot)
	g.DELETE("/lazyload", d.handleClear)
	g.POST("/lazyload/flush", d.handleFlush)
	g.GET("/db/stats", d.handleDBStats)
}

func (d *DebugHandlers) handleSnapshot(c echo.Context) error {
	start := time.Now()
	if d.interceptor == nil {
		return d.unavailable("lazy-load detection is disabled")
	}
	return d.respond(c, start, toLazyLoadReport(lazyload.Summarize(d.interceptor.Runtimes().Snapshot())))
}

func (d *DebugHandlers) handleClear(c echo.Context) error {
	start := time.Now()
	if d.interceptor == nil {
		return d.unavailable("lazy-load detection is disabled")
	}
	dropped := d.interceptor.Runtimes().Len()
	d.interceptor.Runtimes().Clear()
	d.logger.Info().Int("locations", dropped).Msg("Lazy-load runtimes cleared via debug endpoint")
	return d.respond(c, start, map[string]int{"cleared_locations": dropped})
}

func (d *DebugHandlers) handleFlush(c echo.Context) error {
	start := time.Now()
	if d.interceptor == nil {
		return d.unavailable("lazy-load detection is disabled")
	}
	return d.respond(c, start, toLazyLoadReport(d.interceptor.Reporter().Flush()))
}

func (d *DebugHandlers) handleDBStats(c echo.Context) error {
	start := time.Now()
	if d.db == nil {
		return d.unavailable("database is not configured")
	}
	stats, err := d.db.Stats()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return d.respond(c, start, stats)
}

func (d *DebugHandlers) respond(c echo.Context, start time.Time, data any) error {
	return c.JSON(http.StatusOK, DebugResponse{
		Timestamp: time.Now().UTC(),
		Duration:  time.Since(start).String(),
		Data:      data,
	})
}

func (d *DebugHandlers) unavailable(msg string) error {
	return echo.NewHTTPError(http.StatusServiceUnavailable, msg)
}

func toLazyLoadReport(r lazyload.Report) LazyLoadReport {
	out := LazyLoadReport{
		Locations: len(r.Sites),
		Loads:     r.Loads,
		TotalMs:   r.TotalMs,
		Sites:     make([]SiteReport, 0, len(r.Sites)),
	}
	for _, s := range r.Sites {
		out.Sites = append(out.Sites, SiteReport{
			Location:  s.Location,
			Count:     s.Count(),
			TotalMs:   s.Total(),
			AverageMs: s.Average(),
			Samples:   s.Samples,
		})
	}
	return out
}
