package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/accounts/internal/apperrors"
	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/testutil"
)

func Test_MailOutboxRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("enqueue ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MailOutboxRepo{DB: tx}

			mail, err := r.Enqueue(t.Context(), "user@example.com", "Hello", "<p>Hi there</p>")

			require.NoError(t, err)
			assert.Equal(t, "user@example.com", mail.To)
			assert.Equal(t, "Hello", mail.Subject)
			assert.Equal(t, "<p>Hi there</p>", mail.Body)
			assert.Equal(t, models.MailStatusPending, mail.Status)
			assert.Equal(t, 0, mail.Attempts)
			assert.Nil(t, mail.ClaimedAt)
			assert.Nil(t, mail.SentAt)
			assert.WithinDuration(t, time.Now(), mail.CreatedAt, time.Second, "CreatedAt should be recent")
		})
	})

	t.Run("claim pending honors limit", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MailOutboxRepo{DB: tx}
			first, err := r.Enqueue(t.Context(), "first@example.com", "1", "body")
			require.NoError(t, err)
			second, err := r.Enqueue(t.Context(), "second@example.com", "2", "body")
			require.NoError(t, err)

			claimed, err := r.ClaimPending(t.Context(), 1)

			require.NoError(t, err)
			require.Len(t, claimed, 1)
			assert.Contains(t, []uuid.UUID{first.ID, second.ID}, claimed[0].ID)
			assert.Equal(t, models.MailStatusSending, claimed[0].Status)
			assert.NotNil(t, claimed[0].ClaimedAt, "claim must be timestamped")
		})
	})

	t.Run("stale sending mail reclaimed", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MailOutboxRepo{DB: tx}
			mail, err := r.Enqueue(t.Context(), "stuck@example.com", "subject", "body")
			require.NoError(t, err)

			claimed, err := r.ClaimPending(t.Context(), 10)
			require.NoError(t, err)
			require.Len(t, claimed, 1)

			// Fresh claims stay with their sender
			reclaimed, err := r.ReclaimStale(t.Context(), time.Minute)
			require.NoError(t, err)
			assert.Zero(t, reclaimed, "recently claimed mail must not be touched")

			// A claim older than the cutoff is treated as abandoned
			reclaimed, err = r.ReclaimStale(t.Context(), 0)
			require.NoError(t, err)
			require.EqualValues(t, 1, reclaimed)

			claimed, err = r.ClaimPending(t.Context(), 10)
			require.NoError(t, err)
			require.Len(t, claimed, 1, "reclaimed mail must be claimable again")
			assert.Equal(t, mail.ID, claimed[0].ID)
			assert.Equal(t, models.MailStatusSending, claimed[0].Status)
		})
	})

	t.Run("claimed mail not claimed twice", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MailOutboxRepo{DB: tx}
			_, err := r.Enqueue(t.Context(), "once@example.com", "subject", "body")
			require.NoError(t, err)

			claimed, err := r.ClaimPending(t.Context(), 10)
			require.NoError(t, err)
			require.Len(t, claimed, 1)

			claimedAgain, err := r.ClaimPending(t.Context(), 10)
			require.NoError(t, err)
			assert.Empty(t, claimedAgain, "sending mail must not be claimed again")
		})
	})

	t.Run("mark sent ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MailOutboxRepo{DB: tx}
			mail, err := r.Enqueue(t.Context(), "sent@example.com", "subject", "body")
			require.NoError(t, err)

			got, err := r.MarkSent(t.Context(), mail.ID)

			require.NoError(t, err)
			assert.Equal(t, models.MailStatusSent, got.Status)
			assert.Equal(t, 1, got.Attempts)
			require.NotNil(t, got.SentAt)
			assert.WithinDuration(t, time.Now(), *got.SentAt, time.Second)
		})
	})

	t.Run("mark failed returns mail to pending", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MailOutboxRepo{DB: tx}
			mail, err := r.Enqueue(t.Context(), "retry@example.com", "subject", "body")
			require.NoError(t, err)

			got, err := r.MarkFailed(t.Context(), mail.ID, 3)

			require.NoError(t, err)
			assert.Equal(t, models.MailStatusPending, got.Status, "mail should go back to pending while attempts remain")
			assert.Equal(t, 1, got.Attempts)
		})
	})

	t.Run("mark failed gives up after max attempts", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MailOutboxRepo{DB: tx}
			mail, err := r.Enqueue(t.Context(), "doomed@example.com", "subject", "body")
			require.NoError(t, err)

			got, err := r.MarkFailed(t.Context(), mail.ID, 2)
			require.NoError(t, err)
			require.Equal(t, models.MailStatusPending, got.Status)

			got, err = r.MarkFailed(t.Context(), mail.ID, 2)
			require.NoError(t, err)
			assert.Equal(t, models.MailStatusFailed, got.Status)
			assert.Equal(t, 2, got.Attempts)
		})
	})

	t.Run("mark sent not existed mail", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MailOutboxRepo{DB: tx}

			_, err := r.MarkSent(t.Context(), uuid.New())

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrMailNotFound)
		})
	})
}
