package models

import (
	"github.com/google/uuid"
)

type User struct {
	Name   string     `json:"name"`
	TeamID *uuid.UUID `json:"teamId"`
	Model
}

// user is reserved in postgres
func (User) TableName() string {
	return "app_user"
}

func (u User) GetID() uuid.UUID {
	return u.ID
}
