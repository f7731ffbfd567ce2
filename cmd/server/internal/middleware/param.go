package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackhub/submissions-api/cmd/server/internal/models"
	"github.com/hackhub/submissions-api/cmd/server/internal/response"
	"github.com/hackhub/submissions-api/internal/types"
)

// Parses path parameter `paramName` as a uuid. Surrounding whitespace is ignored.
func ParamUUID(c echo.Context, paramName string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(c.Param(paramName)))
}

// Returns the row stored by [PopulateFromIDParam] under `contextName`
func Loaded[T any](c echo.Context, contextName string) (*T, bool) {
	row, ok := c.Get(contextName).(*T)
	return row, ok && row != nil
}

// Loads the row of T whose id is in path parameter `paramName` and stores it
// on the context as `contextName`. A malformed or unknown id ends the request
// with a 404 carrying `notFound`.
func PopulateFromIDParam[T models.SubmissionsAPIModel](
	h *Handler,
	paramName string,
	contextName string,
	notFound string,
) echo.MiddlewareFunc {
	notFoundError := echo.NewHTTPError(http.StatusNotFound, types.StringError(notFound))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracer.Start(c.Request().Context(), "PopulateFromIDParam", trace.WithAttributes(
				attribute.String("param", paramName),
				attribute.String("param.value", c.Param(paramName)),
			))
			defer span.End()

			id, err := ParamUUID(c, paramName)
			if err != nil {
				span.AddEvent("malformed id")
				span.SetStatus(codes.Ok, "id is not a uuid")
				return notFoundError
			}

			row, err := models.ByID[T](ctx, h.DB, id)
			switch {
			case models.IsNotFound(err):
				span.SetStatus(codes.Ok, "no row with id")
				return notFoundError
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to load row")
				return response.InternalServerError
			}

			c.Set(contextName, row)

			span.RecordError(nil)
			span.SetStatus(codes.Ok, "loaded row")
			return next(c)
		}
	}
}
