package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dentalcrm/crm/internal/platform/result"
)

// RequestTimeout bounds each request with a context deadline. Handlers pass
// the request context to every database and storage call, so those calls
// abort once it expires; a handler that returns the deadline error is
// answered with 504.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
				return c.JSON(http.StatusGatewayTimeout, result.Fail("Request processing exceeded the allowed time limit"))
			}
			return err
		}
	}
}
