package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/hackhub/submissions-api/cmd/server/internal/models"
	"github.com/hackhub/submissions-api/internal/audit"
	"github.com/hackhub/submissions-api/internal/logger"
	"github.com/hackhub/submissions-api/internal/queue"
	"github.com/hackhub/submissions-api/internal/types"
	"github.com/hackhub/submissions-api/internal/validator"
)

const name = "github.com/hackhub/submissions-api/cmd/server/internal/grading"

var tracer = otel.Tracer(name)

// How long a handler may work on one message before it is redelivered
const dequeueTimeout = 10 * time.Minute

// Wait after a failed dequeue
var errorPause = 5 * time.Second

// Records the grading service's results as scores
type GradeHandler struct {
	db *gorm.DB
}

var _ queue.MessageHandler = (*GradeHandler)(nil)

func NewGradeHandler(db *gorm.DB) *GradeHandler {
	return &GradeHandler{db: db}
}

func (h *GradeHandler) Handle(ctx context.Context, message []byte) error {
	ctx, span := tracer.Start(ctx, "GradeHandler.Handle", trace.WithNewRoot())
	defer span.End()

	var msg types.GradeMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to unmarshal grade message")
		return queue.Poison(err)
	}

	valid := validator.Create()
	if err := valid.Validate(msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid grade message")
		return queue.Poison(err)
	}

	submissionID, err := uuid.Parse(msg.SubmissionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse submission id")
		return queue.Poison(fmt.Errorf("failed to parse submission id: %w", err))
	}

	span.SetAttributes(attribute.String("submission.id", submissionID.String()))

	score := models.Score{
		SubmissionID: submissionID,
		Value:        models.ScoreText(msg.Score),
	}

	var submission *models.Submission
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submission, err = models.ByID[models.Submission](ctx, tx, submissionID)
		if err != nil {
			if models.IsNotFound(err) {
				return queue.Poison(fmt.Errorf("unknown submission %s", submissionID))
			}
			return err
		}

		if err := tx.Create(&score).Error; err != nil {
			return fmt.Errorf("failed to insert score: %w", err)
		}

		if msg.Solved != nil {
			err := tx.Model(&models.Submission{}).
				Where("id = ?", submissionID).
				Update("is_solved", *msg.Solved).
				Error
			if err != nil {
				return fmt.Errorf("failed to update solved state: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to record score")
		return err
	}

	teamID := submission.TeamID.String()
	challengeID := submission.ChallengeID.String()
	audit.LogScoreRecorded(
		audit.Context{TeamID: &teamID, ChallengeID: &challengeID},
		submissionID.String(),
		score.ID.String(),
		score.Value,
		msg.Solved,
	)

	span.SetAttributes(attribute.String("score.id", score.ID.String()))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "recorded score")
	return nil
}

// Handles grade messages until `ctx` is cancelled
func MonitorScoresQueue(ctx context.Context, db *gorm.DB, qr queue.Queuer) {
	ctx, span := tracer.Start(ctx, "MonitorScoresQueue")
	defer span.End()

	handler := NewGradeHandler(db)
	for {
		failed := func() bool {
			//nolint:govet // shadow: the loop span must not leak into the next iteration
			ctx, span := tracer.Start(ctx, "MonitorScoresQueue.Loop")
			defer span.End()

			if err := qr.Dequeue(ctx, dequeueTimeout, handler); err != nil {
				logger.Logger.WarnContext(ctx, "failed to handle grade message", "error", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to dequeue and handle message")
				return true
			}
			return false
		}()

		pause := time.Duration(0)
		if failed {
			// the queue itself is failing, avoid hammering it
			pause = errorPause
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pause):
		}
	}
}
