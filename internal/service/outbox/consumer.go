package outbox

import (
	"context"
	"sync"

	"github.com/nkiryanov/accounts/internal/logger"
	"github.com/nkiryanov/accounts/internal/mailer"
	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/repository"
)

type Consumer struct {
	countWorkers int
	maxAttempts  int

	mailer   mailer.Mailer
	mailRepo repository.MailOutboxRepo
	logger   logger.Logger
}

func (c *Consumer) Consume(ctx context.Context, in <-chan models.Mail) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < c.countWorkers; i++ {
		wg.Add(1)
		go func() {
			c.worker(ctx, in)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Outbox consumer stopped")
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan models.Mail) {
	for {
		select {
		case <-ctx.Done():
			return

		case mail, ok := <-in:
			if !ok {
				c.logger.Debug("Outbox worker stopped, input channel closed")
				return
			}

			// Status writes use a detached context: the attempt has happened
			// and must be recorded even when ctx is already cancelled
			recordCtx := context.WithoutCancel(ctx)

			err := c.mailer.Send(ctx, mail.To, mail.Subject, mail.Body)
			if err != nil {
				c.logger.Error("Failed to deliver mail", "error", err, "mail_id", mail.ID, "attempts", mail.Attempts+1)

				if _, err := c.mailRepo.MarkFailed(recordCtx, mail.ID, c.maxAttempts); err != nil {
					c.logger.Error("Failed to record delivery failure", "error", err, "mail_id", mail.ID)
				}
				continue
			}

			if _, err := c.mailRepo.MarkSent(recordCtx, mail.ID); err != nil {
				c.logger.Error("Failed to mark mail sent", "error", err, "mail_id", mail.ID)
				continue
			}

			c.logger.Debug("Mail delivered", "mail_id", mail.ID, "to", mail.To)
		}
	}
}
