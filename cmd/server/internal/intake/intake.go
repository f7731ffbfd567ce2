package intake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	srverr "github.com/hackhub/submissions-api/cmd/server/internal/error"
	"github.com/hackhub/submissions-api/cmd/server/internal/models"
	"github.com/hackhub/submissions-api/cmd/server/internal/taskrunner"
	"github.com/hackhub/submissions-api/internal/archive"
	"github.com/hackhub/submissions-api/internal/audit"
	"github.com/hackhub/submissions-api/internal/logger"
	"github.com/hackhub/submissions-api/internal/queue"
	"github.com/hackhub/submissions-api/internal/scoring"
	"github.com/hackhub/submissions-api/internal/tabular"
	"github.com/hackhub/submissions-api/internal/types"
	"github.com/hackhub/submissions-api/internal/upload"
)

const name = "github.com/hackhub/submissions-api/cmd/server/internal/intake"

var tracer = otel.Tracer(name)

// Client facing messages
const (
	msgMissingFields = "Missing required fields"
	msgFileRequired  = "CSV file is required for AI challenge"
	msgFileInvalid   = "File is missing or invalid"
	msgUnknownMember = "Team or user does not exist"
)

// A file received with the submission, already on local disk
type File struct {
	Path     string
	Filename string
}

type Request struct {
	ChallengeID    string
	TeamID         string
	UserID         string
	SubmissionText *string
	File           *File
	// Becomes created_at when set, the insert time otherwise
	ReceivedAt time.Time
}

type Options struct {
	// Object key prefix of manual submission files
	Folder         string
	DownloadURLTTL time.Duration
	UploadTimeout  time.Duration
	// Ground truth of the automated category
	SolutionPath string
	Column       string
}

type Intake struct {
	db       *gorm.DB
	uploader upload.Uploader
	// nil disables archiving of prediction files
	archiver upload.Uploader
	// nil disables review requests
	reviews queue.Queuer
	tasks   *taskrunner.Client
	options Options
}

func New(
	db *gorm.DB,
	uploader upload.Uploader,
	archiver upload.Uploader,
	reviews queue.Queuer,
	tasks *taskrunner.Client,
	options Options,
) *Intake {
	return &Intake{
		db:       db,
		uploader: uploader,
		archiver: archiver,
		reviews:  reviews,
		tasks:    tasks,
		options:  options,
	}
}

type ids struct {
	challenge uuid.UUID
	team      uuid.UUID
	user      uuid.UUID
}

func parseIDs(req Request) (ids, error) {
	var parsed ids

	raw := []string{req.ChallengeID, req.TeamID, req.UserID}
	targets := []*uuid.UUID{&parsed.challenge, &parsed.team, &parsed.user}
	for i, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			return ids{}, srverr.Validation(msgMissingFields)
		}

		id, err := uuid.Parse(value)
		if err != nil {
			return ids{}, srverr.Validation(fmt.Sprintf("Invalid id %q", value))
		}
		*targets[i] = id
	}

	return parsed, nil
}

// Validates, scores or uploads, then stores a submission.
//
// Nothing is stored unless every step before the insert succeeded. The
// database unique constraint on (team, challenge, user) is the authoritative
// duplicate guard, the lookup beforehand only gives an early answer.
func (i *Intake) CreateSubmission(ctx context.Context, req Request) (*models.Submission, error) {
	ctx, span := tracer.Start(ctx, "CreateSubmission", trace.WithAttributes(
		attribute.String("challenge.id", req.ChallengeID),
		attribute.String("team.id", req.TeamID),
		attribute.String("user.id", req.UserID),
		attribute.Bool("file", req.File != nil),
	))
	defer span.End()

	db := i.db.WithContext(ctx)

	span.AddEvent("validating ids")
	parsed, err := parseIDs(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "invalid request")
		return nil, err
	}

	span.AddEvent("checking for an existing submission")
	exists, err := models.Exists[models.Submission](
		ctx,
		db,
		"team_id = ? AND challenge_id = ? AND user_id = ?",
		parsed.team, parsed.challenge, parsed.user,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check for an existing submission")
		return nil, fmt.Errorf("%w: %w", srverr.ErrStorage, err)
	}
	if exists {
		span.RecordError(srverr.ErrDuplicateSubmission)
		span.SetStatus(codes.Ok, "duplicate submission")
		return nil, srverr.ErrDuplicateSubmission
	}

	span.AddEvent("loading challenge")
	challenge, err := models.ByID[models.Challenge](ctx, db, parsed.challenge)
	if err != nil {
		span.RecordError(err)
		if models.IsNotFound(err) {
			span.SetStatus(codes.Ok, "challenge not found")
			return nil, srverr.ErrChallengeNotFound
		}
		span.SetStatus(codes.Error, "failed to load challenge")
		return nil, fmt.Errorf("%w: %w", srverr.ErrStorage, err)
	}

	span.SetAttributes(attribute.String("challenge.category", challenge.Category))

	id, err := uuid.NewV7()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate submission id")
		return nil, err
	}

	submission := models.Submission{
		Model:       models.Model{ID: id},
		ChallengeID: parsed.challenge,
		TeamID:      parsed.team,
		UserID:      parsed.user,
		IsSolved:    false,
	}
	if !req.ReceivedAt.IsZero() {
		submission.CreatedAt = req.ReceivedAt
	}
	if req.SubmissionText != nil {
		submission.SubmissionText = *req.SubmissionText
	}

	switch {
	case challenge.IsAutomated():
		if req.File != nil {
			// predictions never outlive the request, scored or not
			defer removeLocal(ctx, req.File.Path)
		}

		accuracy, err := i.scoreFile(ctx, req, parsed, id)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to score predictions")
			return nil, err
		}
		submission.Accuracy = decimal.NewNullDecimal(decimal.NewFromFloat(accuracy))
	case req.File != nil:
		stored, err := i.uploadFile(ctx, req.File)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to upload submission file")
			return nil, err
		}
		submission.FileKey = &stored.Key
		submission.SubmissionFile = &stored.URL
	default:
		span.AddEvent("text only submission")
	}

	span.AddEvent("inserting submission")
	if err := db.Create(&submission).Error; err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			// an uploaded file stays, its key is content addressed and another submission may share it
			span.SetStatus(codes.Ok, "duplicate submission on insert")
			return nil, srverr.ErrDuplicateSubmission
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			span.SetStatus(codes.Ok, "unknown team or user")
			return nil, srverr.Validation(msgUnknownMember)
		default:
			span.SetStatus(codes.Error, "failed to insert submission")
			return nil, fmt.Errorf("%w: %w", srverr.ErrStorage, err)
		}
	}
	submission.Challenge = challenge

	span.SetAttributes(attribute.String("submission.id", submission.ID.String()))

	teamID := parsed.team.String()
	challengeID := parsed.challenge.String()
	var accuracy *float64
	if submission.Accuracy.Valid {
		value := submission.Accuracy.Decimal.InexactFloat64()
		accuracy = &value
	}
	audit.LogSubmissionCreated(
		audit.Context{TeamID: &teamID, ChallengeID: &challengeID},
		submission.ID.String(),
		parsed.user.String(),
		challenge.Category,
		accuracy,
		submission.SubmissionFile != nil,
	)

	if !challenge.IsAutomated() {
		i.requestReview(ctx, &submission, challenge)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created submission")
	return &submission, nil
}

func removeLocal(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Logger.WarnContext(ctx, "failed to remove submission file", "path", path, "error", err)
	}
}

// Accuracy of the uploaded predictions against the ground truth
func (i *Intake) scoreFile(
	ctx context.Context,
	req Request,
	parsed ids,
	submissionID uuid.UUID,
) (float64, error) {
	ctx, span := tracer.Start(ctx, "scoreFile", trace.WithAttributes(
		attribute.String("solutionPath", i.options.SolutionPath),
		attribute.String("column", i.options.Column),
	))
	defer span.End()

	if req.File == nil {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "no file for automated category")
		return 0, srverr.Validation(msgFileRequired)
	}

	if i.archiver != nil {
		span.AddEvent("archiving predictions")
		teamID := parsed.team.String()
		challengeID := parsed.challenge.String()
		_, err := archive.ArchiveFile(
			ctx,
			audit.Context{TeamID: &teamID, ChallengeID: &challengeID},
			i.archiver,
			&archive.FileMetadata{
				LocalFilePath: &req.File.Path,
				ArchivedFile:  types.FilePredictions,
				Entity:        audit.EntitySubmission,
				EntityID:      submissionID.String(),
			},
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to archive predictions")
			return 0, fmt.Errorf("%w: archiving predictions: %w", upload.ErrUpload, err)
		}
	}

	span.AddEvent("reading columns")
	var actual, predicted []string
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		if actual, err = tabular.ReadColumn(groupCtx, i.options.SolutionPath, i.options.Column); err != nil {
			return fmt.Errorf("ground truth: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		var err error
		if predicted, err = tabular.ReadColumn(groupCtx, req.File.Path, i.options.Column); err != nil {
			return fmt.Errorf("predictions: %w", err)
		}
		return nil
	})
	if err := group.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read columns")
		return 0, err
	}

	accuracy, err := scoring.Accuracy(actual, predicted)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "predictions do not match the ground truth")
		return 0, err
	}

	span.SetAttributes(attribute.Float64("accuracy", accuracy))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "scored predictions")
	return accuracy, nil
}

// Uploads a manual category file, returning its key and a download URL
func (i *Intake) uploadFile(ctx context.Context, file *File) (*upload.Stored, error) {
	ctx, span := tracer.Start(ctx, "uploadFile", trace.WithAttributes(
		attribute.String("filename", file.Filename),
	))
	defer span.End()

	info, err := os.Stat(file.Path)
	if err != nil || !info.Mode().IsRegular() {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "submission file missing")
		return nil, srverr.Validation(msgFileInvalid)
	}

	uploadCtx, cancel := context.WithTimeout(ctx, i.options.UploadTimeout)
	defer cancel()

	stored, err := upload.Attachment(
		uploadCtx,
		i.uploader,
		file.Path,
		file.Filename,
		i.options.Folder,
		i.options.DownloadURLTTL,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload attachment")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded submission file")
	return stored, nil
}

// Asks reviewers to grade a manual submission. Runs after the response is sent.
func (i *Intake) requestReview(
	ctx context.Context,
	submission *models.Submission,
	challenge *models.Challenge,
) {
	if i.reviews == nil || i.tasks == nil {
		return
	}

	request := types.ReviewRequest{
		SubmissionID:   submission.ID,
		ChallengeID:    submission.ChallengeID,
		TeamID:         submission.TeamID,
		Category:       challenge.Category,
		SubmissionFile: submission.SubmissionFile,
		SubmittedAt:    types.UnixMilli(submission.CreatedAt.UnixMilli()),
	}

	i.tasks.Run(ctx, "requestReview", func(ctx context.Context) {
		ctx, span := tracer.Start(ctx, "requestReview", trace.WithAttributes(
			attribute.String("submission.id", request.SubmissionID.String()),
		))
		defer span.End()

		if err := i.reviews.Enqueue(ctx, request); err != nil {
			logger.Logger.ErrorContext(
				ctx,
				"failed to enqueue review request",
				"submissionID", request.SubmissionID,
				"error", err,
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to enqueue review request")
			return
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "enqueued review request")
	})
}
