// Package envelope renders every API response as {message, data} on success
// or {message, error} on failure, plus any extra top-level fields an error
// carries (for example conflictingAppointments).
package envelope

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Body is the success envelope.
type Body struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON writes a success envelope.
func JSON(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Body{Message: message, Data: data})
}

// Error is an HTTP error rendered as an envelope by ErrorHandler.
type Error struct {
	Status  int
	Message string
	Detail  string
	Extra   map[string]interface{}
	Err     error
}

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Internal hides err from the caller; ErrorHandler logs it.
func Internal(message string, err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Message: message,
		Detail:  "Internal server error",
		Err:     err,
	}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// With adds a top-level field to the rendered body.
func (e *Error) With(key string, v interface{}) *Error {
	if e.Extra == nil {
		e.Extra = map[string]interface{}{}
	}
	e.Extra[key] = v
	return e
}

func (e *Error) body() map[string]interface{} {
	out := make(map[string]interface{}, len(e.Extra)+2)
	for k, v := range e.Extra {
		out[k] = v
	}
	out["message"] = e.Message
	detail := e.Detail
	if detail == "" {
		detail = http.StatusText(e.Status)
	}
	out["error"] = detail
	return out
}

// ErrorHandler replaces echo's default handler so errors raised by routing,
// middleware and handlers all leave as envelopes. 5xx errors are logged with
// their cause.
func ErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		env := fromError(err)
		if env.Status >= http.StatusInternalServerError {
			ev := log.Error().Err(err).
				Int("status", env.Status).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path)
			if rid := c.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
				ev = ev.Str("request_id", rid)
			}
			ev.Msg(env.Message)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(env.Status)
		} else {
			werr = c.JSON(env.Status, env.body())
		}
		if werr != nil {
			log.Error().Err(werr).Msg("write error response")
		}
	}
}

func fromError(err error) *Error {
	var env *Error
	if errors.As(err, &env) {
		return env
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		detail := fmt.Sprint(he.Message)
		if m, ok := he.Message.(string); ok {
			detail = m
		}
		if he.Code >= http.StatusInternalServerError {
			detail = "Internal server error"
		}
		return &Error{Status: he.Code, Message: msg, Detail: detail, Err: he.Internal}
	}
	return Internal("Internal server error", err)
}
