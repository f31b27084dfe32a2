package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/estate/estate/internal/platform/envelope"
	"github.com/labstack/echo/v4"
)

// RequestTimeout bounds each request with a context deadline. The handler
// runs on the request goroutine and is expected to return once the context
// is done; if it returns after the deadline without having written a
// response, the client gets a 504 envelope. Paths under any of skip keep the
// server's own timeouts.
func RequestTimeout(timeout time.Duration, skip ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			for _, p := range skip {
				if strings.HasPrefix(path, p) {
					return next(c)
				}
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return err
			}
			if c.Response().Committed {
				return err
			}
			return envelope.New(http.StatusGatewayTimeout, "Request timed out")
		}
	}
}
