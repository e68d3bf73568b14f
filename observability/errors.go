package observability

import "errors"

// ErrInvalidProtocol is returned when an OTLP endpoint is configured with a
// protocol other than "http" or "grpc".
var ErrInvalidProtocol = errors.New("observability: protocol must be either 'http' or 'grpc'")

// ErrMissingServiceName is returned when telemetry is enabled without a service name.
var ErrMissingServiceName = errors.New("observability: service name is required")
