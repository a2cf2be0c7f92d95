package domain

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode enumerates every failure a request can end with.
// The set is closed: new failure modes must map onto one of these.
type ErrorCode string

const (
	CodeRateLimit    ErrorCode = "RATE_LIMIT"
	CodeNoContent    ErrorCode = "NO_CONTENT"
	CodeBadLengths   ErrorCode = "BAD_LENGTHS"
	CodeFetchFailed  ErrorCode = "FETCH_FAILED"
	CodeModelFailure ErrorCode = "MODEL_FAILURE"
)

// Error is the single failure type that crosses stage boundaries.
// Stages return it directly; the server converts it into the
// transport envelope and status code at the very end.
type Error struct {
	Code    ErrorCode
	Message string
	// RetryAfter is set only for CodeRateLimit.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus maps the error code to its response status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeNoContent, CodeBadLengths:
		return http.StatusUnprocessableEntity
	case CodeFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ExtractionStage names the algorithm that produced the article text.
type ExtractionStage string

const (
	StagePrimary  ExtractionStage = "primary"
	StageFallback ExtractionStage = "fallback"
)

// Extraction is the readable text recovered from an HTML document.
type Extraction struct {
	Text      string
	WordCount int
	Stage     ExtractionStage
}

// Bounds is a validated pair of summary length limits.
type Bounds struct {
	MinLen int
	MaxLen int
}
