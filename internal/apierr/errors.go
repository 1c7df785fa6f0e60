// Package apierr defines the typed failure taxonomy for the moderation
// pipeline. Each stage surfaces one of these types so callers can map a
// failure to an HTTP status without string matching.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError marks client-caused input failures.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// NotFoundError marks a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ClassificationError wraps any failure of the model call itself.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string { return "classification: " + e.Err.Error() }
func (e *ClassificationError) Unwrap() error { return e.Err }

// ParseError marks a model response that is not valid structured data.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string { return "parse model response: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// FetchError marks an unreachable remote image.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return "fetch " + e.URL + ": " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError marks malformed image data.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode image: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// UploadError marks an object store failure.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return "upload: " + e.Err.Error() }
func (e *UploadError) Unwrap() error { return e.Err }

// DeliveryError marks a notification transport failure. It is always
// contained by callers and never invalidates a persisted result.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string { return "delivery: " + e.Err.Error() }
func (e *DeliveryError) Unwrap() error { return e.Err }

// PersistenceError marks a datastore failure at a commit boundary.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "persist " + e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// AnalyticsError is the single coarse failure of the analytics read path.
type AnalyticsError struct {
	Err error
}

func (e *AnalyticsError) Error() string { return "analytics: " + e.Err.Error() }
func (e *AnalyticsError) Unwrap() error { return e.Err }

// Status maps an error to the HTTP status the envelope should carry.
// Anything unrecognized is an internal server fault.
func Status(err error) int {
	var (
		validation *ValidationError
		notFound   *NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
