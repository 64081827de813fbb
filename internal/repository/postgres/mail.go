package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/accounts/internal/apperrors"
	"github.com/nkiryanov/accounts/internal/models"
)

type MailOutboxRepo struct {
	DB DBTX
}

const mailColumns = `id, recipient, subject, body, status, attempts, created_at, claimed_at, sent_at`

const enqueueMail = `-- name: EnqueueMail
INSERT INTO mail_outbox (id, recipient, subject, body, status)
VALUES ($1, $2, $3, $4, 'pending')
RETURNING ` + mailColumns

func (r *MailOutboxRepo) Enqueue(ctx context.Context, to string, subject string, body string) (models.Mail, error) {
	rows, _ := r.DB.Query(ctx, enqueueMail, uuid.New(), to, subject, body)
	mail, err := pgx.CollectOneRow(rows, rowToMail)
	if err != nil {
		return mail, fmt.Errorf("db error: %w", err)
	}
	return mail, nil
}

const claimPending = `-- name: ClaimPendingMail
UPDATE mail_outbox
SET status = 'sending', claimed_at = clock_timestamp()
WHERE id IN (
    SELECT id FROM mail_outbox
    WHERE status = 'pending'
    ORDER BY created_at
    LIMIT $1
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + mailColumns

// Claim pending mails for delivery
// SKIP LOCKED keeps concurrent producers from claiming the same rows
func (r *MailOutboxRepo) ClaimPending(ctx context.Context, limit int) ([]models.Mail, error) {
	rows, _ := r.DB.Query(ctx, claimPending, limit)
	mails, err := pgx.CollectRows(rows, rowToMail)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return mails, nil
}

const reclaimStale = `-- name: ReclaimStaleMail
UPDATE mail_outbox
SET status = 'pending', claimed_at = NULL
WHERE status = 'sending' AND claimed_at < clock_timestamp() - $1
`

// Return claimed but never finished mails back to pending
// Covers senders that crashed or were shut down mid delivery
// clock_timestamp() is used over now() so age is measured against the wall
// clock, not the transaction start
func (r *MailOutboxRepo) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.DB.Exec(ctx, reclaimStale, olderThan)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

const markMailSent = `-- name: MarkMailSent
UPDATE mail_outbox
SET status = 'sent', attempts = attempts + 1, sent_at = now()
WHERE id = $1
RETURNING ` + mailColumns

func (r *MailOutboxRepo) MarkSent(ctx context.Context, id uuid.UUID) (models.Mail, error) {
	rows, _ := r.DB.Query(ctx, markMailSent, id)
	return collectMail(rows)
}

const markMailFailed = `-- name: MarkMailFailed
UPDATE mail_outbox
SET attempts = attempts + 1,
    status = CASE WHEN attempts + 1 >= $2 THEN 'failed' ELSE 'pending' END
WHERE id = $1
RETURNING ` + mailColumns

// Record failed attempt: back to pending until maxAttempts exhausted
func (r *MailOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, maxAttempts int) (models.Mail, error) {
	rows, _ := r.DB.Query(ctx, markMailFailed, id, maxAttempts)
	return collectMail(rows)
}

func collectMail(rows pgx.Rows) (models.Mail, error) {
	mail, err := pgx.CollectOneRow(rows, rowToMail)

	switch {
	case err == nil:
		return mail, nil
	case errors.Is(err, pgx.ErrNoRows):
		return mail, apperrors.ErrMailNotFound
	default:
		return mail, fmt.Errorf("db error: %w", err)
	}
}

func rowToMail(row pgx.CollectableRow) (models.Mail, error) {
	var m models.Mail
	err := row.Scan(&m.ID, &m.To, &m.Subject, &m.Body, &m.Status, &m.Attempts, &m.CreatedAt, &m.ClaimedAt, &m.SentAt)
	return m, err
}
