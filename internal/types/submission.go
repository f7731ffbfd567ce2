package types

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Multipart form fields of a new submission, the file travels separately as `submissionFile`
type SubmissionRequest struct {
	ChallengeID    string  `form:"challengeId"    json:"challengeId"`
	TeamID         string  `form:"teamId"         json:"teamId"`
	UserID         string  `form:"userId"         json:"userId"`
	SubmissionText *string `form:"submissionText" json:"submissionText"`
}

type CreatedResponse[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"submission"`
}

type TeamScoreResponse struct {
	TeamID     uuid.UUID `json:"teamId"`
	TotalScore float64   `json:"totalScore"`
}

// Scores of one team keyed by challenge category
type CategoryScoresResponse map[string][]float64

// Published for manual category submissions so reviewers can pick them up
type ReviewRequest struct {
	SubmissionID   uuid.UUID `json:"submission_id"`
	ChallengeID    uuid.UUID `json:"challenge_id"`
	TeamID         uuid.UUID `json:"team_id"`
	Category       string    `json:"category"`
	SubmissionFile *string   `json:"submission_file"`
	SubmittedAt    UnixMilli `json:"submitted_at"`
}

// Written by the grading service once a submission has been graded
type GradeMessage struct {
	// Raw score as the grader wrote it, numbers and numeric strings count
	Score        json.RawMessage `json:"score"         validate:"required"`
	Solved       *bool           `json:"solved"`
	SubmissionID string          `json:"submission_id" validate:"required,uuid"`
}
