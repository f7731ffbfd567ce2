package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Written by the grading service. Value is stored as received.
type Score struct {
	Value        string    `json:"score"`
	SubmissionID uuid.UUID `json:"submissionId"`
	Model
}

func (Score) TableName() string {
	return "score"
}

func (s Score) GetID() uuid.UUID {
	return s.ID
}

// Numeric value of the score. Anything that is not a finite number counts as 0.
func (s Score) Numeric() float64 {
	return CoerceScore(s.Value)
}

// Decimal text only. Integer literals in another base ("0x10", "0b1") and
// digit separators are not numbers here and count as 0.
func CoerceScore(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}

	return value
}

// Text form of a grader supplied JSON score: strings are unquoted, numbers
// keep their literal text, anything else is kept verbatim
func ScoreText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	return strings.TrimSpace(string(raw))
}
