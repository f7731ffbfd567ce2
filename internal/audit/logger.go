package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hackhub/submissions-api/internal/logger"
	"github.com/hackhub/submissions-api/internal/types"
)

type Context struct {
	TeamID      *string
	ChallengeID *string
}

func newMessage(c Context, evt EventType, disposition Disposition) Message {
	return Message{
		TeamID:        c.TeamID,
		ChallengeID:   c.ChallengeID,
		LogContext:    logContext,
		SchemaVersion: schemaVersion,
		Disposition:   disposition,
		Type:          evt,
		Timestamp:     types.UnixMilli(time.Now().UTC().UnixMilli()),
	}
}

// events go to stdout as one JSON document per line
func emit(event any, evt EventType, args ...any) {
	evtStr, err := json.Marshal(event)
	if err != nil {
		logger.Logger.Error(
			fmt.Sprintf("could not serialize %s event", evt),
			append([]any{"error", err}, args...)...,
		)
		return
	}

	fmt.Println(string(evtStr))
}

func LogSubmissionCreated(
	c Context,
	submissionID string,
	userID string,
	category string,
	accuracy *float64,
	hasFile bool,
) {
	event := SubmissionCreated{}
	event.Message = newMessage(c, EvtSubmissionCreated, DispositionNeutral)

	event.Event.SubmissionID = submissionID
	event.Event.UserID = userID
	event.Event.Category = category
	event.Event.Accuracy = accuracy
	event.Event.HasFile = hasFile

	emit(event, EvtSubmissionCreated, "submissionID", submissionID, "userID", userID)
}

func LogScoreRecorded(
	c Context,
	submissionID string,
	scoreID string,
	value string,
	solved *bool,
) {
	disposition := DispositionNeutral
	if solved != nil {
		if *solved {
			disposition = DispositionGood
		} else {
			disposition = DispositionBad
		}
	}

	event := ScoreRecorded{}
	event.Message = newMessage(c, EvtScoreRecorded, disposition)

	event.Event.SubmissionID = submissionID
	event.Event.ScoreID = scoreID
	event.Event.Value = value
	event.Event.Solved = solved

	emit(event, EvtScoreRecorded, "submissionID", submissionID, "scoreID", scoreID)
}

func LogFileArchived(
	c Context,
	bucketName string,
	objectName string,
	fileArchived types.ArchivedFile,
	entity FileArchivedEntity,
	entityID string,
) {
	event := FileArchived{}
	event.Message = newMessage(c, EvtFileArchived, DispositionNeutral)

	event.Event.BucketName = bucketName
	event.Event.ObjectName = objectName
	event.Event.FileArchived = fileArchived
	event.Event.Entity = entity
	event.Event.EntityID = entityID

	emit(
		event,
		EvtFileArchived,
		"bucketName", bucketName,
		"objectName", objectName,
		"entityID", entityID,
	)
}

func LogTeamScoresAggregated(c Context, total float64, submissions int) {
	event := TeamScoresAggregated{}
	event.Message = newMessage(c, EvtTeamScoresAggregated, DispositionNeutral)

	event.Event.Total = total
	event.Event.Submissions = submissions

	emit(event, EvtTeamScoresAggregated, "total", total)
}
