package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an error for callers that decide on retries and HTTP
// status codes. Kinds are stable identifiers exposed in API responses.
type Kind string

const (
	KindConfig            Kind = "config_error"
	KindValidation        Kind = "validation_error"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindExtraction        Kind = "extraction_error"
	KindEmbeddingService  Kind = "embedding_service_error"
	KindIndexWrite        Kind = "index_write_error"
	KindIndexSearch       Kind = "index_search_error"
	KindGenerationService Kind = "generation_service_error"
	KindCache             Kind = "cache_error"
)

// Error is the typed error used across the pipeline. It wraps an underlying
// cause so transport details stay inspectable via errors.As/Is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a typed error. err may be nil.
func E(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of err, or an empty Kind when err carries none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) has the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, string(KindValidation), message, details)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithAppError maps a typed pipeline error onto the HTTP boundary.
// Client-caused kinds become 4xx, dependency failures become 502/503 so the
// caller can distinguish "bad request" from "could not serve".
func RespondWithAppError(c *gin.Context, err error) {
	kind := KindOf(err)
	status := http.StatusInternalServerError

	switch kind {
	case KindValidation:
		status = http.StatusBadRequest
	case KindUnsupportedFormat:
		status = http.StatusUnsupportedMediaType
	case KindExtraction:
		status = http.StatusUnprocessableEntity
	case KindEmbeddingService, KindGenerationService:
		status = http.StatusBadGateway
	case KindIndexWrite, KindIndexSearch:
		status = http.StatusServiceUnavailable
	case "":
		RespondWithInternalError(c, err.Error(), nil)
		return
	}

	var appErr *Error
	errors.As(err, &appErr)
	RespondWithError(c, status, string(kind), appErr.Message, nil)
}
