package intake

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	srverr "github.com/hackhub/submissions-api/cmd/server/internal/error"
	"github.com/hackhub/submissions-api/cmd/server/internal/models"
	"github.com/hackhub/submissions-api/internal/upload"
)

// Every submission, oldest first
func (i *Intake) List(ctx context.Context) ([]models.Submission, error) {
	ctx, span := tracer.Start(ctx, "List")
	defer span.End()

	submissions, err := models.ListSubmissions(ctx, i.db, models.PreloadAll, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list submissions")
		return nil, fmt.Errorf("%w: %w", srverr.ErrStorage, err)
	}

	if err := i.presignFiles(ctx, submissions); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to presign submission files")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed submissions")
	return submissions, nil
}

func (i *Intake) ByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	ctx, span := tracer.Start(ctx, "ByID", trace.WithAttributes(
		attribute.String("submission.id", id.String()),
	))
	defer span.End()

	submission, err := models.SubmissionByID(
		ctx,
		i.db,
		models.PreloadChallenge|models.PreloadTeam|models.PreloadScores,
		id,
	)
	if err != nil {
		span.RecordError(err)
		if models.IsNotFound(err) {
			span.SetStatus(codes.Ok, "submission not found")
			return nil, srverr.ErrSubmissionNotFound
		}
		span.SetStatus(codes.Error, "failed to get submission")
		return nil, fmt.Errorf("%w: %w", srverr.ErrStorage, err)
	}

	if err := i.presignFile(ctx, submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to presign submission file")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got submission")
	return submission, nil
}

// Submissions of one team. A team without any is reported as not found.
func (i *Intake) ForTeam(ctx context.Context, teamID uuid.UUID) ([]models.Submission, error) {
	ctx, span := tracer.Start(ctx, "ForTeam", trace.WithAttributes(
		attribute.String("team.id", teamID.String()),
	))
	defer span.End()

	submissions, err := models.ListSubmissions(ctx, i.db, models.PreloadAll, "team_id = ?", teamID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list team submissions")
		return nil, fmt.Errorf("%w: %w", srverr.ErrStorage, err)
	}

	if len(submissions) == 0 {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "no submissions for team")
		return nil, srverr.ErrNoTeamSubmissions
	}

	if err := i.presignFiles(ctx, submissions); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to presign submission files")
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(submissions)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed team submissions")
	return submissions, nil
}

func (i *Intake) presignFiles(ctx context.Context, submissions []models.Submission) error {
	for k := range submissions {
		if err := i.presignFile(ctx, &submissions[k]); err != nil {
			return err
		}
	}
	return nil
}

// Download URLs are presigned per read, stored keys never expire
func (i *Intake) presignFile(ctx context.Context, submission *models.Submission) error {
	if submission.FileKey == nil {
		return nil
	}

	url, err := upload.DownloadURL(ctx, i.uploader, *submission.FileKey, i.options.DownloadURLTTL)
	if err != nil {
		return err
	}
	submission.SubmissionFile = &url
	return nil
}
