package models

import (
	"errors"
	"fmt"
)

// Error codes used in logs and run summaries.
const (
	ErrCodeTimeout          = "SCRAPE_TIMEOUT"
	ErrCodeNavigation       = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash     = "BROWSER_CRASH"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeUnexpectedMarkup = "UNEXPECTED_MARKUP"
	ErrCodeInvalidInput     = "INVALID_INPUT"
)

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

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// FailureKind classifies a fetch failure for the retry policy.
type FailureKind int

const (
	// Transient failures (timeouts, resets, 5xx, 429) are retried.
	Transient FailureKind = iota
	// Permanent failures (other 4xx, DNS not found, non-HTML) are not.
	Permanent
)

func (k FailureKind) String() string {
	if k == Permanent {
		return "permanent"
	}
	return "transient"
}

// FetchError is returned by engines for a failed attempt.
type FetchError struct {
	Kind       FailureKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s (%s): HTTP %d", e.URL, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as a retryable fetch failure.
func NewTransientError(url string, status int, err error) *FetchError {
	return &FetchError{Kind: Transient, URL: url, StatusCode: status, Err: err}
}

// NewPermanentError wraps err as a non-retryable fetch failure.
func NewPermanentError(url string, status int, err error) *FetchError {
	return &FetchError{Kind: Permanent, URL: url, StatusCode: status, Err: err}
}

// IsTransient reports whether err should be retried. Errors that are not
// a *FetchError are treated as transient network failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == Transient
	}
	return true
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}
