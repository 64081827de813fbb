package models

import (
	"time"

	"github.com/google/uuid"
)

// Outbox mail statuses
const (
	MailStatusPending = "pending"
	MailStatusSending = "sending"
	MailStatusSent    = "sent"
	MailStatusFailed  = "failed"
)

// Mail queued for delivery in the outbox table
type Mail struct {
	ID        uuid.UUID
	To        string
	Subject   string
	Body      string
	Status    string
	Attempts  int
	CreatedAt time.Time
	ClaimedAt *time.Time // set when a sender claims the row, nil while pending
	SentAt    *time.Time // nil until delivered
}
