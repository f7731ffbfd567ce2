package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Context key of the time a request arrived
const ReceivedAtKey = "receivedAt"

// Stamps the request with its arrival time before any slow work (scoring,
// uploads) so stored submissions are ordered by when they were sent.
func ReceivedAt() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := time.Now().UTC()
			c.Set(ReceivedAtKey, now)

			trace.SpanFromContext(c.Request().Context()).SetAttributes(
				attribute.String("request.receivedAt", now.Format(time.RFC3339Nano)),
			)

			return next(c)
		}
	}
}

// Arrival time of the request, zero when the middleware did not run
func ReceivedAtFrom(c echo.Context) time.Time {
	t, _ := c.Get(ReceivedAtKey).(time.Time)
	return t
}
