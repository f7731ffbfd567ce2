package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Team struct {
	Name string `json:"name"`
	Model
	// cached sum of the team's scores, rewritten on every aggregation
	Scores decimal.Decimal `json:"scores" gorm:"type:numeric;not null;default:0"`
}

func (Team) TableName() string {
	return "team"
}

func (t Team) GetID() uuid.UUID {
	return t.ID
}
