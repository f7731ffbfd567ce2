package middleware

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackhub/submissions-api/cmd/server/internal/models"
	"github.com/hackhub/submissions-api/cmd/server/internal/response"
	"github.com/hackhub/submissions-api/internal/logger"
)

// Checks that all `needed` permissions are present on `has`
func hasPermission(
	ctx context.Context,
	needed *models.Permissions,
	has *models.Permissions,
	l *slog.Logger,
) bool {
	ctx, span := tracer.Start(ctx, "hasPermission")
	defer span.End()

	logger.Logger.DebugContext(ctx, "comparing permissions", "needed", *needed, "has", *has)

	// every bool field is a permission, new roles need no changes here
	valNeeded := reflect.Indirect(reflect.ValueOf(needed))
	valHas := reflect.Indirect(reflect.ValueOf(has))

	typNeeded := valNeeded.Type()
	typHas := valHas.Type()

	if typNeeded != typHas {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "non matching types")
		return false
	}

	for i := range valNeeded.NumField() {
		fieldNeeded := valNeeded.Field(i)
		fieldHas := valHas.Field(i)

		if fieldNeeded.Kind() != reflect.Bool || fieldHas.Kind() != reflect.Bool {
			l.WarnContext(ctx, "non boolean fields on permissions skipping")
			continue
		}

		// if we need it but dont have
		if fieldNeeded.Bool() && !fieldHas.Bool() {
			l.DebugContext(ctx, "missing permission")
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "missing permission")
			return false
		}
	}

	l.DebugContext(ctx, "granting access")
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "granting access")
	return true
}

func authFromContext(c echo.Context, authKey string) (*models.Auth, bool) {
	auth, ok := c.Get(authKey).(*models.Auth)
	return auth, ok
}

// Auth stored under `authKey` must hold every permission set to true on `permissions`
func HasPermissions(authKey string, permissions *models.Permissions) echo.MiddlewareFunc {
	l := logger.Logger.With("authKey", authKey, "permissions", permissions)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracer.Start(c.Request().Context(), "HasPermissions", trace.WithAttributes(
				attribute.String("authKey", authKey),
			))
			defer span.End()

			auth, ok := authFromContext(c, authKey)
			if !ok {
				l.WarnContext(ctx, "failed to get auth object")
				span.RecordError(nil)
				span.SetStatus(codes.Error, "failed to get auth object")
				return response.UnauthorizedError
			}

			if !hasPermission(ctx, permissions, &auth.Permissions, l) {
				span.RecordError(nil)
				span.SetStatus(codes.Ok, "unauthorized")
				return response.UnauthorizedError
			}

			span.RecordError(nil)
			span.SetStatus(codes.Ok, "checked permissions")
			return next(c)
		}
	}
}

// Auth stored under `authKey` must satisfy at least one of `alternatives`.
// Used for routes shared by several roles.
func HasAnyPermission(authKey string, alternatives ...*models.Permissions) echo.MiddlewareFunc {
	l := logger.Logger.With("authKey", authKey, "alternatives", len(alternatives))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracer.Start(c.Request().Context(), "HasAnyPermission", trace.WithAttributes(
				attribute.String("authKey", authKey),
			))
			defer span.End()

			auth, ok := authFromContext(c, authKey)
			if !ok {
				l.WarnContext(ctx, "failed to get auth object")
				span.RecordError(nil)
				span.SetStatus(codes.Error, "failed to get auth object")
				return response.UnauthorizedError
			}

			for _, permissions := range alternatives {
				if hasPermission(ctx, permissions, &auth.Permissions, l) {
					span.RecordError(nil)
					span.SetStatus(codes.Ok, "checked permissions")
					return next(c)
				}
			}

			span.RecordError(nil)
			span.SetStatus(codes.Ok, "unauthorized")
			return response.UnauthorizedError
		}
	}
}
