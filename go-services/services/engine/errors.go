package engine

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptySeries      = errors.New("empty candle series")
	ErrNonPositivePrice = errors.New("non-positive or missing price")
)

// ConfigurationError means the strategy references something that cannot be
// served, or is internally inconsistent.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Msg, e.Err)
	}
	return "configuration: " + e.Msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// DataError means a series could not be simulated: empty, or carrying a
// non-positive or malformed price.
type DataError struct {
	Symbol    string
	Index     int
	Timestamp int64
	Err       error
}

func (e *DataError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("data %s: %v", e.Symbol, e.Err)
	}
	return fmt.Sprintf("data %s: bar %d (ts=%d): %v", e.Symbol, e.Index, e.Timestamp, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err carries a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsDataError reports whether err carries a DataError.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// ErrorClass names the failure class for logs and reports.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case IsConfigurationError(err):
		return "configuration"
	case IsDataError(err):
		return "data"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
