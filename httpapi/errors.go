package httpapi

import (
	"errors"
	"net/http"

	"github.com/codefulcrum/senseai/core"
	"github.com/codefulcrum/senseai/ingestion"
	"github.com/codefulcrum/senseai/registry"
)

// ErrServiceRequired is returned when NewServer is called without a service.
var ErrServiceRequired = errors.New("service required")

// statusFor maps an error kind to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrContentNotProcessed):
		return http.StatusNotFound
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrEmptyMessage),
		errors.Is(err, core.ErrUnsupportedFormat),
		errors.Is(err, registry.ErrInvalidURL),
		errors.Is(err, registry.ErrEmptyFileName):
		return http.StatusBadRequest
	case errors.Is(err, ingestion.ErrInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
