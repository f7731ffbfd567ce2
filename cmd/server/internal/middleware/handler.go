package middleware

import (
	"gorm.io/gorm"
)

type Handler struct {
	DB *gorm.DB
	// Empty disables bearer tokens
	JWTSecret []byte
}
