package models

import (
	"github.com/google/uuid"
)

// Submissions to this category are scored automatically against the ground truth
const CategoryAI = "AI"

// Seeded by the competition organisers, read only here
type Challenge struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Model
}

func (Challenge) TableName() string {
	return "challenge"
}

func (c Challenge) GetID() uuid.UUID {
	return c.ID
}

// Manual categories are reviewed by people instead of scored
func (c Challenge) IsAutomated() bool {
	return c.Category == CategoryAI
}
