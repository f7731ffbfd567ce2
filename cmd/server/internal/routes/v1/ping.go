package v1

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	srverr "github.com/hackhub/submissions-api/cmd/server/internal/error"
	servermiddleware "github.com/hackhub/submissions-api/cmd/server/internal/middleware"
	"github.com/hackhub/submissions-api/cmd/server/internal/models"
	"github.com/hackhub/submissions-api/cmd/server/internal/response"
	"github.com/hackhub/submissions-api/internal/types"
)

func rolesOf(permissions models.Permissions) []string {
	roles := []string{}
	if permissions.Admin {
		roles = append(roles, servermiddleware.RoleAdmin)
	}
	if permissions.Participant {
		roles = append(roles, servermiddleware.RoleParticipant)
	}
	return roles
}

// Lets clients check their credentials before submitting
func (h *Handler) Ping(c echo.Context) error {
	_, span := tracer.Start(c.Request().Context(), "Ping")
	defer span.End()

	auth, ok := c.Get(servermiddleware.AuthKey).(*models.Auth)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("auth: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	roles := rolesOf(auth.Permissions)
	span.SetAttributes(
		attribute.String("auth.note", auth.Note),
		attribute.String("auth.id", auth.ID.String()),
		attribute.StringSlice("auth.roles", roles),
	)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "pong")
	return c.JSON(http.StatusOK, types.PingResponse{
		Status:    "ready",
		Principal: auth.Note,
		Roles:     roles,
	})
}
