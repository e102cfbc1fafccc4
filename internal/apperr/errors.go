// Package apperr provides the structured error type used across the
// cascade engine: service functions return a *Error for the failures they
// classify (validation, not found, conflicts, insufficient funds, out of
// sequence, rate limiting), so the HTTP layer can map them to a status and
// a closed code instead of matching error strings. Errors passed through
// from storage or the catalog stay plain errors and surface as 500.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the wire-level error code named by the external interface.
type Code string

const (
	CodeValidation            Code = "VALIDATION"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflictAlreadyActive Code = "CONFLICT_ALREADY_ACTIVE"
	CodeInsufficientFunds     Code = "INSUFFICIENT_FUNDS"
	CodeOutOfSequence         Code = "OUT_OF_SEQUENCE"
	CodeTransient             Code = "TRANSIENT"
	CodeInternal              Code = "INTERNAL"
	CodeRateLimited           Code = "RATE_LIMITED"
)

// Error is a structured, HTTP-aware error carrying a closed Code, a
// free-text message safe to surface to callers, optional structured
// details, and an unexported inner error for log-only context.
type Error struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails attaches structured context, e.g. the offending field name.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(code Code, message string, httpStatus int) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: httpStatus}
}

func Wrap(code Code, message string, httpStatus int, err error) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// Validation marks a caller bug: bad slot number, bad amount, bad currency.
// Per §7, validation errors are never retried.
func Validation(field, reason string) *Error {
	return New(CodeValidation, "invalid input", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

func NotFound(resource, id string) *Error {
	return New(CodeNotFound, "resource not found", http.StatusNotFound).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

// AlreadyActive marks a state-conflict: the (user, program, slot) key has
// already been activated. Idempotent replays of the same correlation_id
// must return the original result rather than this error.
func AlreadyActive(program string, slot int) *Error {
	return New(CodeConflictAlreadyActive, "slot already active", http.StatusConflict).
		WithDetails("program", program).
		WithDetails("slot", slot)
}

// InsufficientFunds marks a resource error: the direct path lacks reserve
// or wallet balance to cover the requested debit.
func InsufficientFunds(required, available float64) *Error {
	return New(CodeInsufficientFunds, "insufficient funds", http.StatusPaymentRequired).
		WithDetails("required", required).
		WithDetails("available", available)
}

// OutOfSequence marks an attempt to activate slot N+1 before slot N, or any
// other violation of invariant I4.
func OutOfSequence(program string, requestedSlot, expectedSlot int) *Error {
	return New(CodeOutOfSequence, "activation out of sequence", http.StatusConflict).
		WithDetails("program", program).
		WithDetails("requested_slot", requestedSlot).
		WithDetails("expected_next_slot", expectedSlot)
}

// Transient marks a retryable failure: storage timeout, lock conflict. The
// caller should retry with backoff; the originating queue item survives.
func Transient(operation string, err error) *Error {
	return Wrap(CodeTransient, "transient failure, retry", http.StatusServiceUnavailable, err).
		WithDetails("operation", operation)
}

// RateLimited marks a client that exceeded the per-client request budget on
// a mutating endpoint (`/join`, `/upgrade`). Retryable after retryAfter.
func RateLimited(limitPerMinute int, retryAfter string) *Error {
	return New(CodeRateLimited, "rate limit exceeded", http.StatusTooManyRequests).
		WithDetails("limit_per_minute", limitPerMinute).
		WithDetails("retry_after", retryAfter)
}

// Internal marks an invariant violation or unexpected failure (§7 Fatal).
// The transaction aborts; no writes of the triggering event are kept.
func Internal(message string, err error) *Error {
	return Wrap(CodeInternal, message, http.StatusInternalServerError, err)
}

// As extracts an *Error from an error chain, if present.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// HTTPStatusOf returns the HTTP status carried by err, or 500 if err is not
// an *Error.
func HTTPStatusOf(err error) int {
	if e, ok := As(err); ok {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
