package engine

// API-facing error taxonomy

import (
	"errors"
	"net/http"

	"anchor-backtest/go-services/services/candles"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e APIError) Error() string {
	if e.Details != "" {
		return e.Code + ": " + e.Message + ": " + e.Details
	}
	return e.Code + ": " + e.Message
}

// WithDetails returns a copy carrying details.
func (e APIError) WithDetails(details string) APIError {
	e.Details = details
	return e
}

var (
	ErrInvalidParams   = APIError{Code: "INVALID_PARAMS", Message: "Invalid parameters provided"}
	ErrConfiguration   = APIError{Code: "CONFIGURATION_ERROR", Message: "Strategy configuration cannot be served"}
	ErrData            = APIError{Code: "DATA_ERROR", Message: "Candle data is unusable"}
	ErrNotFound        = APIError{Code: "NOT_FOUND", Message: "Resource not found"}
	ErrExecutionFailed = APIError{Code: "EXECUTION_FAILED", Message: "Backtest execution failed"}
)

// ToAPIError maps an engine error to its API code and HTTP status.
func ToAPIError(err error) (APIError, int) {
	var apiErr APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr, http.StatusBadRequest
	case IsConfigurationError(err):
		return ErrConfiguration.WithDetails(err.Error()), http.StatusUnprocessableEntity
	case IsDataError(err):
		return ErrData.WithDetails(err.Error()), http.StatusUnprocessableEntity
	case errors.Is(err, candles.ErrSeriesNotFound):
		return ErrNotFound.WithDetails(err.Error()), http.StatusNotFound
	default:
		return ErrExecutionFailed.WithDetails(err.Error()), http.StatusInternalServerError
	}
}
