package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIResponse is the envelope of every JSON reply.
type APIResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Respond writes data in the envelope with the given status.
func Respond(c echo.Context, status int, data any) error {
	return c.JSON(status, APIResponse{Status: status, Message: http.StatusText(status), Data: data})
}

func OK(c echo.Context, data any) error { return Respond(c, http.StatusOK, data) }

func BadRequest(c echo.Context, data any) error { return Respond(c, http.StatusBadRequest, data) }

func Unavailable(c echo.Context, data any) error {
	return Respond(c, http.StatusServiceUnavailable, data)
}

// Fail writes an *AppError with its own status; anything else becomes a 500.
func Fail(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return Respond(c, appErr.Status, []*AppError{appErr})
	}
	return Respond(c, http.StatusInternalServerError, "internal error")
}
