// Package server provides the HTTP REST API for the audit engine.
package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/site-auditor/internal/audit"
	"github.com/jonathan/site-auditor/internal/keywords"
	"github.com/jonathan/site-auditor/internal/llm"
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var rateLimited *llm.RateLimitedError
	var timeout *llm.TimeoutError

	switch {
	case errors.Is(err, audit.ErrInvalidURL), errors.Is(err, keywords.ErrInvalidSiteURL):
		return http.StatusBadRequest
	case errors.Is(err, audit.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, audit.ErrNotRetryable):
		return http.StatusConflict
	case errors.Is(err, audit.ErrServerBusy):
		return http.StatusServiceUnavailable
	case errors.As(err, &rateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
