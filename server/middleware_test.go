package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-lazyload/logger"
)

func lastLogLine(t *testing.T, buf *syncBuffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func newLoggedEcho(buf *syncBuffer, handler echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.Use(RequestLogger(logger.NewWithWriter("debug", false, buf), time.Second))
	e.GET("/invoices", handler)
	return e
}

func TestRequestLoggerCountsLazyLoads(t *testing.T) {
	buf := &syncBuffer{}
	e := newLoggedEcho(buf, func(c echo.Context) error {
		ctx := c.Request().Context()
		logger.IncrementDBCounter(ctx)
		logger.IncrementDBCounter(ctx)
		logger.IncrementLazyLoadCounter(ctx)
		return c.NoContent(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices", http.NoBody))
	require.Equal(t, http.StatusNoContent, rec.Code)

	entry := lastLogLine(t, buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "Request completed", entry["message"])
	assert.Equal(t, "/invoices", entry["path"])
	assert.EqualValues(t, 204, entry["status"])
	assert.EqualValues(t, 2, entry["db_statements"])
	assert.EqualValues(t, 1, entry["lazy_loads"])
}

func TestRequestLoggerQuietRequest(t *testing.T) {
	buf := &syncBuffer{}
	e := newLoggedEcho(buf, func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/invoices", http.NoBody))

	entry := lastLogLine(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 0, entry["lazy_loads"])
}

func TestRequestLoggerHandlerError(t *testing.T) {
	buf := &syncBuffer{}
	e := newLoggedEcho(buf, func(echo.Context) error {
		return errors.New("boom")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices", http.NoBody))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	entry := lastLogLine(t, buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "boom", entry["error"])
	assert.EqualValues(t, 500, entry["status"])
}
