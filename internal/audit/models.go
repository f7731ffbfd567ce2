package audit

import (
	"github.com/hackhub/submissions-api/internal/types"
)

var schemaVersion = "0.1.0"
var logContext = "audit"

type Disposition string

const (
	DispositionNeutral Disposition = "neutral"
	DispositionGood    Disposition = "good"
	DispositionBad     Disposition = "bad"
)

type FileArchivedEntity string

const (
	EntitySubmission FileArchivedEntity = "submission"
)

type EventType string

const (
	EvtSubmissionCreated    EventType = "submission_created"
	EvtScoreRecorded        EventType = "score_recorded"
	EvtFileArchived         EventType = "file_archived"
	EvtTeamScoresAggregated EventType = "team_scores_aggregated"
)

type Message struct {
	TeamID        *string     `json:"team_id"`
	ChallengeID   *string     `json:"challenge_id"`
	LogContext    string      `json:"log_context" validate:"required"`
	SchemaVersion string      `json:"version"     validate:"required"`
	Disposition   Disposition `json:"disposition" validate:"required"`
	Type          EventType   `json:"event_type"  validate:"required"`

	Timestamp types.UnixMilli `json:"timestamp" validate:"required"`
}

type SubmissionCreatedEvent struct {
	SubmissionID string   `json:"submission_id" validate:"required"`
	UserID       string   `json:"user_id"       validate:"required"`
	Category     string   `json:"category"      validate:"required"`
	Accuracy     *float64 `json:"accuracy"`
	HasFile      bool     `json:"has_file"`
}

type SubmissionCreated struct {
	Event SubmissionCreatedEvent `json:"event" validate:"required"`
	Message
}

type ScoreRecordedEvent struct {
	SubmissionID string `json:"submission_id" validate:"required"`
	ScoreID      string `json:"score_id"      validate:"required"`
	Value        string `json:"value"`
	Solved       *bool  `json:"solved"`
}

type ScoreRecorded struct {
	Event ScoreRecordedEvent `json:"event" validate:"required"`
	Message
}

type FileArchivedEvent struct {
	BucketName   string             `json:"bucket_name"   validate:"required"`
	ObjectName   string             `json:"object_name"   validate:"required"`
	FileArchived types.ArchivedFile `json:"file_archived" validate:"required"`
	Entity       FileArchivedEntity `json:"entity"        validate:"required"`
	EntityID     string             `json:"entity_id"     validate:"required"`
}

type FileArchived struct {
	Event FileArchivedEvent `json:"event" validate:"required"`
	Message
}

type TeamScoresAggregatedEvent struct {
	Total       float64 `json:"total"`
	Submissions int     `json:"submissions"`
}

type TeamScoresAggregated struct {
	Event TeamScoresAggregatedEvent `json:"event" validate:"required"`
	Message
}
