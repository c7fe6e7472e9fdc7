package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeJobNotFound  = "JOB_NOT_FOUND"
	ErrCodeJobFailed    = "JOB_FAILED"
	ErrCodeTimeout      = "SESSION_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeField        = "FIELD_EXTRACTION_FAILED"
	ErrCodeItem         = "ITEM_PROCESSING_FAILED"
	ErrCodeJobExecution = "JOB_EXECUTION_FAILED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrJobNotFound is returned by job stores for unknown ids.
var ErrJobNotFound = NewScrapeError(ErrCodeJobNotFound, "Job not found", nil)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
	Code   string `json:"code"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Is matches any ScrapeError with the same code, so sentinel values such as
// ErrJobNotFound work with errors.Is after wrapping.
func (e *ScrapeError) Is(target error) bool {
	t, ok := target.(*ScrapeError)
	return ok && t.Code == e.Code
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first ScrapeError in err's chain,
// or ErrCodeInternal.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}
