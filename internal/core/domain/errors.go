// Package domain provides the domain error codes.
package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// DomainError is an error with a stable UM-<AREA>-<NNNN> code. The code is
// what clients match on; Message and Details are for humans.
type DomainError struct {
	Code    string
	Message string
	Details string
	Cause   error
}

func (e *DomainError) Error() string {
	var b strings.Builder
	b.WriteString("[" + e.Code + "] " + e.Message)
	if e.Details != "" {
		b.WriteString(": " + e.Details)
	}
	if e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}
	return b.String()
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError with the same code, so errors.Is works against
// the sentinels below after WithDetails or WithCause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && e.Code == t.Code
}

// Area returns the AREA part of the code ("LIC" for "UM-LIC-4010").
func (e *DomainError) Area() string {
	parts := strings.Split(e.Code, "-")
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}

// Status returns the HTTP status that reports this error.
func (e *DomainError) Status() int {
	return StatusForCode(e.Code)
}

// NewDomainError creates an error that reports as 500 unless its code is in
// the ARG area.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// WithDetails returns a copy carrying details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithDetailsf is WithDetails with fmt formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy wrapping cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// IsDomainError reports whether err wraps a DomainError with code, or any
// DomainError when code is empty.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return code == "" || de.Code == code
}

// GetErrorCode returns the code of the DomainError wrapped by err, or "".
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

var (
	statusMu     sync.RWMutex
	statusByCode = map[string]int{}
)

// define registers a sentinel together with the HTTP status it reports as.
func define(code string, status int, message string) *DomainError {
	statusMu.Lock()
	statusByCode[code] = status
	statusMu.Unlock()
	return NewDomainError(code, message)
}

// StatusForCode maps an error code to an HTTP status. Codes not defined in
// this package report 400 in the ARG area and 500 elsewhere.
func StatusForCode(code string) int {
	statusMu.RLock()
	status, ok := statusByCode[code]
	statusMu.RUnlock()
	switch {
	case ok:
		return status
	case strings.HasPrefix(code, "UM-ARG-"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Collection: a stats round that could not produce a report.
var (
	ErrCollectionFailed     = define("UM-COLL-5030", http.StatusServiceUnavailable, "stats collection failed")
	ErrNodeStatsUnavailable = define("UM-COLL-5040", http.StatusServiceUnavailable, "node stats unavailable")
)

// License: verification and installation of the license key.
var (
	ErrLicenseInvalid   = define("UM-LIC-4010", http.StatusUnauthorized, "invalid license")
	ErrLicenseExpired   = define("UM-LIC-4011", http.StatusUnauthorized, "license expired")
	ErrLicenseNotLoaded = define("UM-LIC-4040", http.StatusNotFound, "license not loaded")
)

var ErrUnknownFeature = define("UM-FEAT-4040", http.StatusNotFound, "unknown feature")

// System
var (
	ErrInternalServer     = define("UM-SYS-5000", http.StatusInternalServerError, "internal server error")
	ErrStorageError       = define("UM-SYS-5001", http.StatusInternalServerError, "storage error")
	ErrServiceUnavailable = define("UM-SYS-5030", http.StatusServiceUnavailable, "service unavailable")
	ErrBadRequest         = define("UM-SYS-4000", http.StatusBadRequest, "bad request")
	ErrRateLimited        = define("UM-SYS-4290", http.StatusTooManyRequests, "too many requests")
)

// Arguments
var (
	ErrInvalidArgument = define("UM-ARG-1001", http.StatusBadRequest, "invalid argument")
	ErrMissingArgument = define("UM-ARG-1002", http.StatusBadRequest, "missing required argument")
)
