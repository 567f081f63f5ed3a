package weather

import "errors"

var (
	// ErrSourceUnavailable means a source could not be reached after retries
	// (transport failure, HTTP 503, or an open circuit). Callers fall back to
	// the last known good data.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMalformedSourceData means a source answered with a payload that does not
	// match its schema. It is never retried.
	ErrMalformedSourceData = errors.New("malformed source data")

	// ErrInsufficientHistory means a depth series is shorter than the requested
	// window; the returned value uses the oldest sample as baseline.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrUnknownLocation is returned for location ids that are not configured.
	ErrUnknownLocation = errors.New("unknown location")
)
