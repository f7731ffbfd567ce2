package models

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// One entry per (team, challenge, user), enforced by the database
type Submission struct {
	Challenge      *Challenge `json:"challenge,omitempty"`
	Team           *Team      `json:"team,omitempty"`
	User           *User      `json:"user,omitempty"`
	SubmissionText string     `json:"submissionText"`
	// object key of the manual submission file
	FileKey *string `json:"-" gorm:"column:submission_file"`
	// download URL of FileKey, presigned whenever the submission is read
	SubmissionFile *string `json:"submissionFile" gorm:"-"`
	// only set for automatically scored categories
	Accuracy decimal.NullDecimal `json:"accuracy" gorm:"type:numeric(5,2)"`
	Scores   []Score             `json:"scores"`
	Model
	ChallengeID uuid.UUID `json:"challengeId"`
	TeamID      uuid.UUID `json:"teamId"`
	UserID      uuid.UUID `json:"userId"`
	IsSolved    bool      `json:"isSolved"`
}

func (Submission) TableName() string {
	return "submission"
}

func (s Submission) GetID() uuid.UUID {
	return s.ID
}

// Which relations a submission read resolves
type Preload int

const (
	PreloadChallenge Preload = 1 << iota
	PreloadTeam
	PreloadUser
	PreloadScores

	PreloadAll = PreloadChallenge | PreloadTeam | PreloadUser | PreloadScores
)

func (p Preload) apply(db *gorm.DB) *gorm.DB {
	if p&PreloadChallenge != 0 {
		db = db.Preload("Challenge")
	}
	if p&PreloadTeam != 0 {
		db = db.Preload("Team")
	}
	if p&PreloadUser != 0 {
		db = db.Preload("User")
	}
	if p&PreloadScores != 0 {
		db = db.Preload("Scores", func(db *gorm.DB) *gorm.DB {
			return db.Order("score.created_at ASC")
		})
	}
	return db
}

// Submissions matching `query` oldest first. A nil query lists everything.
func ListSubmissions(
	ctx context.Context,
	db *gorm.DB,
	preload Preload,
	query any,
	args ...any,
) ([]Submission, error) {
	ctx, span := tracer.Start(ctx, "ListSubmissions", trace.WithAttributes(
		attribute.Int("preload", int(preload)),
	))
	defer span.End()

	tx := preload.apply(db.WithContext(ctx).Model(&Submission{}))
	if query != nil {
		tx = tx.Where(query, args...)
	}

	submissions := []Submission{}
	if err := tx.Order("submission.created_at ASC").Find(&submissions).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list submissions")
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(submissions)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed submissions")
	return submissions, nil
}

// One submission by id with its relations resolved
func SubmissionByID(
	ctx context.Context,
	db *gorm.DB,
	preload Preload,
	id uuid.UUID,
) (*Submission, error) {
	ctx, span := tracer.Start(ctx, "SubmissionByID", trace.WithAttributes(
		attribute.String("id", id.String()),
	))
	defer span.End()

	var submission Submission
	err := preload.apply(db.WithContext(ctx)).First(&submission, "id = ?", id).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get submission")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got submission")
	return &submission, nil
}
