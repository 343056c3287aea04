/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package restaurants fetches restaurant candidates and resolves locations
// from third-party providers on behalf of the gateway.
package restaurants

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is an error that knows which HTTP status to answer with.
type APIError interface {
	Error() string
	StatusCode() int
}

// Error is a provider failure. Msg is safe to show to users.
type Error struct {
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) StatusCode() int {
	return e.Status
}

func (e *Error) Unwrap() error {
	return e.Err
}

func missingKey(provider string) error {
	return &Error{Status: http.StatusInternalServerError, Msg: provider + " API key not set."}
}

func notFound(msg string) error {
	return &Error{Status: http.StatusNotFound, Msg: msg}
}

func unavailable(msg string, err error) error {
	return &Error{Status: http.StatusServiceUnavailable, Msg: msg, Err: err}
}

// Status maps any error to the HTTP status the gateway should answer with.
func Status(err error) int {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode()
	}
	return http.StatusInternalServerError
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return "Internal server error."
}
