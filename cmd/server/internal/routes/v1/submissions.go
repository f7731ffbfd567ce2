package v1

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	srverr "github.com/hackhub/submissions-api/cmd/server/internal/error"
	"github.com/hackhub/submissions-api/cmd/server/internal/intake"
	servermiddleware "github.com/hackhub/submissions-api/cmd/server/internal/middleware"
	"github.com/hackhub/submissions-api/cmd/server/internal/models"
	"github.com/hackhub/submissions-api/cmd/server/internal/response"
	"github.com/hackhub/submissions-api/internal/logger"
	"github.com/hackhub/submissions-api/internal/types"
)

const createdMessage = "Submission created successfully"

var bindError = echo.NewHTTPError(
	http.StatusBadRequest,
	types.StringError("failed to parse request data"),
)

func (h *Handler) errorResponse(c echo.Context, err error) error {
	httpErr := response.FromError(err, h.config.DetailedErrors())
	if httpErr.Code >= http.StatusInternalServerError {
		logger.Logger.ErrorContext(
			c.Request().Context(),
			"request failed",
			"path", c.Path(),
			"error", err,
		)
	}
	return httpErr
}

func (h *Handler) ListSubmissions(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ListSubmissions")
	defer span.End()

	submissions, err := h.intake.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list submissions")
		return h.errorResponse(c, err)
	}

	span.SetAttributes(attribute.Int("count", len(submissions)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed submissions")
	return c.JSON(http.StatusOK, submissions)
}

func (h *Handler) TeamSubmissions(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "TeamSubmissions")
	defer span.End()

	team, ok := servermiddleware.Loaded[models.Team](c, teamContextKey)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("team: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	span.SetAttributes(attribute.String("team.id", team.ID.String()))

	submissions, err := h.intake.ForTeam(ctx, team.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list team submissions")
		return h.errorResponse(c, err)
	}

	span.SetAttributes(attribute.Int("count", len(submissions)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed team submissions")
	return c.JSON(http.StatusOK, submissions)
}

func (h *Handler) CreateSubmission(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "CreateSubmission")
	defer span.End()

	var submission types.SubmissionRequest
	span.AddEvent("binding request data")
	if err := c.Bind(&submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to bind request data")
		return bindError
	}

	req := intake.Request{
		ChallengeID:    submission.ChallengeID,
		TeamID:         submission.TeamID,
		UserID:         submission.UserID,
		SubmissionText: submission.SubmissionText,
		ReceivedAt:     servermiddleware.ReceivedAtFrom(c),
	}

	if file, ok := c.Get(fileContextKey).(*servermiddleware.UploadedFile); ok {
		span.SetAttributes(
			attribute.String("file.name", file.Filename),
			attribute.Int64("file.size", file.Size),
		)
		req.File = &intake.File{Path: file.Path, Filename: file.Filename}
	}

	created, err := h.intake.CreateSubmission(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create submission")
		return h.errorResponse(c, err)
	}

	span.SetAttributes(attribute.String("submission.id", created.ID.String()))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created submission")
	return c.JSON(http.StatusCreated, types.CreatedResponse[*models.Submission]{
		Message: createdMessage,
		Data:    created,
	})
}

func (h *Handler) GetSubmission(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GetSubmission")
	defer span.End()

	span.SetAttributes(attribute.String("submission.id", c.Param("submission_id")))

	id, err := servermiddleware.ParamUUID(c, "submission_id")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "malformed submission id")
		return h.errorResponse(c, srverr.ErrSubmissionNotFound)
	}

	submission, err := h.intake.ByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get submission")
		return h.errorResponse(c, err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got submission")
	return c.JSON(http.StatusOK, submission)
}
