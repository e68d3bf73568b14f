package tracking

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/gaborage/go-bricks-lazyload/config"
)

func setupTestTracerProvider(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	original := otel.GetTracerProvider()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(original)
	})
	return exporter
}

func setupTestMeterProvider(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()

	original := otel.GetMeterProvider()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	resetInstruments()

	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		otel.SetMeterProvider(original)
		resetInstruments()
	})
	return reader
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func newTestContext(log *recordingLogger, cfg *config.DatabaseConfig) *Context {
	return &Context{Logger: log, Vendor: "postgres", Settings: NewSettings(cfg)}
}

func TestTrackDBOperationLogLevels(t *testing.T) {
	slow := &config.DatabaseConfig{Query: config.QueryConfig{Slow: config.SlowQueryConfig{Threshold: time.Millisecond}}}

	tests := []struct {
		name    string
		cfg     *config.DatabaseConfig
		started time.Time
		err     error
		level   string
	}{
		{name: "fast_success", started: time.Now(), level: levelDebug},
		{name: "slow_success", cfg: slow, started: time.Now().Add(-time.Second), level: levelWarn},
		{name: "no_rows", started: time.Now(), err: sql.ErrNoRows, level: levelDebug},
		{name: "failure", started: time.Now(), err: errors.New("boom"), level: levelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := newRecordingLogger()
			TrackDBOperation(context.Background(), newTestContext(log, tt.cfg), testQuerySelectInvoices, nil, tt.started, 0, tt.err)

			events := log.all()
			require.Len(t, events, 1)
			assert.Equal(t, tt.level, events[0].Level)
			assert.Equal(t, testQuerySelectInvoices, events[0].Fields["query"])
		})
	}
}

func TestTrackDBOperationNilContext(t *testing.T) {
	assert.NotPanics(t, func() {
		TrackDBOperation(context.Background(), nil, "SELECT 1", nil, time.Now(), 0, nil)
		TrackDBOperation(context.Background(), &Context{}, "SELECT 1", nil, time.Now(), 0, nil)
	})
}

func TestTrackDBOperationLogsSanitizedParameters(t *testing.T) {
	cfg := &config.DatabaseConfig{Query: config.QueryConfig{Log: config.QueryLogConfig{Parameters: true, MaxLength: 6}}}
	log := newRecordingLogger()

	TrackDBOperation(context.Background(), newTestContext(log, cfg), testQueryInsertInvoice, []any{"INV-000123", []byte{1, 2}}, time.Now(), 1, nil)

	events := log.all()
	require.Len(t, events, 1)
	assert.Equal(t, []any{"INV...", "<bytes len=2>"}, events[0].Fields["args"])
	assert.Equal(t, "INS...", events[0].Fields["query"])
}

func TestTrackDBOperationCreatesSpan(t *testing.T) {
	exporter := setupTestTracerProvider(t)

	TrackDBOperation(context.Background(), newTestContext(newRecordingLogger(), nil), testQuerySelectInvoices, nil, time.Now(), 0, nil)
	TrackDBOperation(context.Background(), newTestContext(newRecordingLogger(), nil), "VACUUM", nil, time.Now(), 0, errors.New("denied"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "db.select", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, "db.query", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}

func TestTrackDBOperationRecordsMetrics(t *testing.T) {
	reader := setupTestMeterProvider(t)
	tc := newTestContext(newRecordingLogger(), nil)

	TrackDBOperation(context.Background(), tc, testQuerySelectInvoices, nil, time.Now(), 0, nil)
	TrackDBOperation(context.Background(), tc, testQueryInsertInvoice, nil, time.Now(), 3, nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	calls, ok := findMetric(rm, metricDBCalls)
	require.True(t, ok)
	sum, ok := calls.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)

	_, ok = findMetric(rm, metricDBDuration)
	assert.True(t, ok)

	rows, ok := findMetric(rm, metricRowsAffected)
	require.True(t, ok)
	rowsSum := rows.Data.(metricdata.Sum[int64])
	require.Len(t, rowsSum.DataPoints, 1)
	assert.Equal(t, int64(3), rowsSum.DataPoints[0].Value)
}

func TestRegisterConnectionPoolMetrics(t *testing.T) {
	reader := setupTestMeterProvider(t)
	conn, _ := newMockConn(t)

	unregister := RegisterConnectionPoolMetrics(conn, "postgresql")
	defer unregister()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	_, ok := findMetric(rm, metricPoolIdle)
	assert.True(t, ok)
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		value  string
		maxLen int
		want   string
	}{
		{value: "abc", maxLen: 0, want: "abc"},
		{value: "abc", maxLen: 5, want: "abc"},
		{value: "abcdef", maxLen: 3, want: "abc"},
		{value: "abcdefgh", maxLen: 6, want: "abc..."},
		{value: "ñandú-ñandú", maxLen: 5, want: "ña..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TruncateString(tt.value, tt.maxLen))
	}
}

func TestSanitizeArgs(t *testing.T) {
	assert.Nil(t, SanitizeArgs(nil, 10))
	assert.Equal(t, []any{"42", "true"}, SanitizeArgs([]any{42, true}, 10))
}

func TestExtractDBOperation(t *testing.T) {
	tests := map[string]string{
		"":                            "query",
		"  select * from customers":   "select",
		"UPDATE invoices SET x = 1":   "update",
		"WITH x AS (SELECT 1) SELECT": "query",
	}
	for query, want := range tests {
		assert.Equal(t, want, extractDBOperation(query), query)
	}
}

func TestExtractTableName(t *testing.T) {
	tests := map[string]string{
		"SELECT * FROM public.\"Invoices\" WHERE id = 1": "invoices",
		"INSERT INTO customers (name) VALUES ($1)":       "customers",
		"UPDATE invoice_line_items SET qty = 2":          "invoice_line_items",
		"DELETE FROM invoices WHERE id = 1":              "invoices",
		"BEGIN":                                          "unknown",
	}
	for query, want := range tests {
		assert.Equal(t, want, extractTableName(query), query)
	}
}

func TestDBSystem(t *testing.T) {
	assert.Equal(t, "postgresql", dbSystem("Postgres").Value.AsString())
	assert.Equal(t, "oracle.db", dbSystem("oracle").Value.AsString())
	assert.Equal(t, "db.system.name", string(dbSystem("mysql").Key))
	assert.Equal(t, "mysql", dbSystem("MySQL").Value.AsString())
}

func TestNewSettings(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.DatabaseConfig
		want Settings
	}{
		{
			name: "nil_config",
			want: Settings{SlowThreshold: config.DefaultSlowQueryThreshold, MaxQueryLength: config.DefaultMaxQueryLength},
		},
		{
			name: "non_positive_limits_keep_defaults",
			cfg: &config.DatabaseConfig{Query: config.QueryConfig{
				Slow: config.SlowQueryConfig{Threshold: -time.Second},
				Log:  config.QueryLogConfig{MaxLength: 0},
			}},
			want: Settings{SlowThreshold: config.DefaultSlowQueryThreshold, MaxQueryLength: config.DefaultMaxQueryLength},
		},
		{
			name: "custom",
			cfg: &config.DatabaseConfig{Query: config.QueryConfig{
				Slow: config.SlowQueryConfig{Threshold: time.Second},
				Log:  config.QueryLogConfig{MaxLength: 50, Parameters: true},
			}},
			want: Settings{SlowThreshold: time.Second, MaxQueryLength: 50, LogParameters: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewSettings(tt.cfg))
		})
	}
}

func TestSettingsOutcome(t *testing.T) {
	s := Settings{SlowThreshold: 100 * time.Millisecond}

	assert.Equal(t, outcomeOK, s.outcome(100*time.Millisecond, nil))
	assert.Equal(t, outcomeSlow, s.outcome(101*time.Millisecond, nil))
	assert.Equal(t, outcomeNoRows, s.outcome(time.Second, sql.ErrNoRows))
	assert.Equal(t, outcomeFailed, s.outcome(time.Millisecond, errors.New("deadlock")))
}
