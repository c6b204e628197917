package http

import (
	"fmt"
	"net/http"
)

// AppError is a client-facing failure carried in the data of an APIResponse.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
	Status  int            `json:"-"`
}

func (e *AppError) Error() string { return e.Message }

// WithParam attaches a detail the client can act on, e.g. the valid topic.
func (e *AppError) WithParam(key string, value any) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]any)
	}
	e.Params[key] = value
	return e
}

// NotFound builds a 404 with a formatted message.
func NotFound(format string, a ...any) *AppError {
	return &AppError{Code: "ERR_NOT_FOUND", Message: fmt.Sprintf(format, a...), Status: http.StatusNotFound}
}

// TooManyRequests builds a 429.
func TooManyRequests(msg string) *AppError {
	return &AppError{Code: "ERR_RATE_LIMITED", Message: msg, Status: http.StatusTooManyRequests}
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string         `json:"code,omitempty"`
	Field   string         `json:"field,omitempty"`
	Message string         `json:"message,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}
