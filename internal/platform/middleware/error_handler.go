package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dentalcrm/crm/internal/platform/result"
)

// ErrorHandler renders errors that escape handlers (unknown routes, methods,
// middleware rejections) in the uniform result shape. Classified result
// errors keep their status and public message; anything else is a 500.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := result.Fail(result.GenericMessage)

		var he *echo.HTTPError
		var re *result.Error
		switch {
		case errors.As(err, &re):
			status = result.Status(re)
			body = result.Failed(re)
		case errors.As(err, &he):
			status = he.Code
			if status < http.StatusInternalServerError {
				body = result.Fail(fmt.Sprint(he.Message))
			}
		}

		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error().Err(err).Msg("writing error response failed")
		}
	}
}
