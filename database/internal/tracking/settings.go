// Package tracking implements the query pipeline: every statement issued through
// a tracked connection runs the registered interceptors, then is logged, traced
// and metered.
package tracking

import (
	"database/sql"
	"errors"
	"time"

	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

// Settings decides how much of a finished statement is logged and at which level.
type Settings struct {
	SlowThreshold  time.Duration
	MaxQueryLength int
	LogParameters  bool
}

// NewSettings reads the database.query section. Zero or negative limits keep
// the config package defaults.
func NewSettings(cfg *config.DatabaseConfig) Settings {
	s := Settings{
		SlowThreshold:  config.DefaultSlowQueryThreshold,
		MaxQueryLength: config.DefaultMaxQueryLength,
	}
	if cfg == nil {
		return s
	}

	s.SlowThreshold = positiveOr(cfg.Query.Slow.Threshold, s.SlowThreshold)
	s.MaxQueryLength = positiveOr(cfg.Query.Log.MaxLength, s.MaxQueryLength)
	s.LogParameters = cfg.Query.Log.Parameters
	return s
}

func positiveOr[T time.Duration | int](v, fallback T) T {
	if v > 0 {
		return v
	}
	return fallback
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeNoRows
	outcomeFailed
	outcomeSlow
)

// outcome classifies a finished statement. sql.ErrNoRows is not a failure.
func (s Settings) outcome(elapsed time.Duration, err error) outcome {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return outcomeNoRows
	case err != nil:
		return outcomeFailed
	case elapsed > s.SlowThreshold:
		return outcomeSlow
	default:
		return outcomeOK
	}
}

// Context carries what TrackDBOperation needs about the connection.
type Context struct {
	Logger   logger.Logger
	Vendor   string
	Settings Settings
}
