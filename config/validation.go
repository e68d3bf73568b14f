package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig wraps every validation failure returned by Load.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := validateDatabase(&cfg.Database); err != nil {
		return fmt.Errorf("%w: database config: %w", ErrInvalidConfig, err)
	}

	return nil
}

// IsDatabaseConfigured reports whether a database was intentionally configured.
func IsDatabaseConfigured(cfg *DatabaseConfig) bool {
	if cfg.ConnectionString != "" {
		return true
	}
	return cfg.Host != "" || cfg.Type != ""
}

func validateDatabase(cfg *DatabaseConfig) error {
	if !IsDatabaseConfigured(cfg) {
		return nil
	}

	if cfg.Type == "" {
		return errors.New("database type is required")
	}

	if cfg.ConnectionString != "" {
		return nil
	}

	if cfg.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Port == 0 {
		return errors.New("database port is required")
	}
	if cfg.Database == "" {
		return errors.New("database name is required")
	}
	if cfg.Username == "" {
		return errors.New("database username is required")
	}

	return nil
}
