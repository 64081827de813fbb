package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Username       string
	Email          string
	FirstName      string
	LastName       string
	HashedPassword string

	// Inactive until the user confirms the activation email
	Active bool

	// Updated on every successful login
	// Participates in activation/reset token salting, nil until first login
	LastLoginAt *time.Time
}
