// Package aggerr declares the error-kind taxonomy shared across the
// aggregator: sentinel errors callers branch on with errors.Is/As,
// wrapped with fmt.Errorf("...: %w", err) at each layer the way the
// rest of the module's ambient stack does.
package aggerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel error kinds. Configuration, request-creation, and permanent
// HTTP errors are never retried; transport and cache errors may be
// locally recovered by their owning component.
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrRequestCreation  = errors.New("request creation error")
	ErrTransport        = errors.New("transport error")
	ErrPermanentHTTP    = errors.New("permanent http error")
	ErrParsing          = errors.New("parsing error")
	ErrCache            = errors.New("cache error")
	ErrNormalization    = errors.New("normalization error")
	ErrRetryLimit       = errors.New("retry limit exceeded")
	ErrRequestFailed    = errors.New("request failed")
)

// HTTPError wraps a terminal HTTP status with the response's status
// code so callers can recover it via errors.As without re-parsing the
// response.
type HTTPError struct {
	StatusCode int
	Err        error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Err, e.StatusCode)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// NewPermanentHTTPError builds an HTTPError wrapping ErrPermanentHTTP.
func NewPermanentHTTPError(resp *http.Response) *HTTPError {
	code := 0
	if resp != nil {
		code = resp.StatusCode
	}
	return &HTTPError{StatusCode: code, Err: ErrPermanentHTTP}
}

// RetryLimitError carries the last response seen before the retry
// budget was exhausted.
type RetryLimitError struct {
	Attempts     int
	LastResponse *http.Response
}

func (e *RetryLimitError) Error() string {
	return fmt.Sprintf("%s after %d attempts", ErrRetryLimit, e.Attempts)
}

func (e *RetryLimitError) Unwrap() error { return ErrRetryLimit }
