package v1

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	srverr "github.com/hackhub/submissions-api/cmd/server/internal/error"
	servermiddleware "github.com/hackhub/submissions-api/cmd/server/internal/middleware"
	"github.com/hackhub/submissions-api/internal/types"
)

const msgInvalidTeamID = "Invalid team id"

func teamIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := servermiddleware.ParamUUID(c, "team_id")
	if err != nil {
		return uuid.Nil, srverr.Validation(msgInvalidTeamID)
	}
	return id, nil
}

func (h *Handler) TeamTotalScore(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "TeamTotalScore")
	defer span.End()

	teamID, err := teamIDParam(c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "malformed team id")
		return h.errorResponse(c, err)
	}
	span.SetAttributes(attribute.String("team.id", teamID.String()))

	total, err := h.aggregator.TotalForTeam(ctx, teamID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to aggregate team scores")
		return h.errorResponse(c, err)
	}

	span.SetAttributes(attribute.Float64("total", total))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "aggregated team scores")
	return c.JSON(http.StatusOK, types.TeamScoreResponse{TeamID: teamID, TotalScore: total})
}

func (h *Handler) TeamCategoryScores(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "TeamCategoryScores")
	defer span.End()

	teamID, err := teamIDParam(c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "malformed team id")
		return h.errorResponse(c, err)
	}
	span.SetAttributes(attribute.String("team.id", teamID.String()))

	byCategory, err := h.aggregator.ByCategoryForTeam(ctx, teamID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to group team scores")
		return h.errorResponse(c, err)
	}

	span.SetAttributes(attribute.Int("categories", len(byCategory)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "grouped team scores")
	return c.JSON(http.StatusOK, types.CategoryScoresResponse(byCategory))
}
