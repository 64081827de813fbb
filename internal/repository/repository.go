package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/accounts/internal/models"
)

type CreateUserParams struct {
	Username       string
	Email          string
	FirstName      string
	LastName       string
	HashedPassword string
}

// User repository interface
type UserRepo interface {
	// Create user (inactive until activated)
	// If username or email is taken has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by id, username or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Replace the user's password hash
	UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) (models.User, error)

	// Flip the active flag
	SetActive(ctx context.Context, id uuid.UUID, active bool) (models.User, error)

	// Stamp last successful login time
	SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) (models.User, error)
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	// Save token to repository
	Save(ctx context.Context, token models.RefreshToken) error

	// Return the token and mark it used in one step
	// If the token is already used, must return apperrors.ErrRefreshTokenIsUsed
	// and must not overwrite the existing 'usedAt'
	// If token not found must return apperrors.ErrRefreshTokenNotFound
	GetAndMarkUsed(ctx context.Context, tokenString string) (models.RefreshToken, error)
}

// Outgoing mail repository interface
type MailOutboxRepo interface {
	// Queue mail for delivery
	Enqueue(ctx context.Context, to string, subject string, body string) (models.Mail, error)

	// Claim up to limit pending mails for sending
	// Claimed mails are not returned to concurrent callers
	ClaimPending(ctx context.Context, limit int) ([]models.Mail, error)

	// Return mails claimed longer than olderThan ago back to pending
	// so mail held by a crashed or interrupted sender is delivered eventually
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error)

	// Mark mail delivered
	MarkSent(ctx context.Context, id uuid.UUID) (models.Mail, error)

	// Record a failed delivery attempt
	// The mail goes back to pending until maxAttempts is exhausted, then failed
	MarkFailed(ctx context.Context, id uuid.UUID, maxAttempts int) (models.Mail, error)
}

// Storage aggregates repositories sharing one connection or transaction
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Mail() MailOutboxRepo

	// Run fn within a database transaction
	InTx(ctx context.Context, fn func(s Storage) error) error
}
