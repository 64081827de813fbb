package outbox

import (
	"context"
	"time"

	"github.com/nkiryanov/accounts/internal/logger"
	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/repository"
)

type Producer struct {
	interval     time.Duration
	batchSize    int
	reclaimAfter time.Duration
	mailRepo     repository.MailOutboxRepo
	logger       logger.Logger
}

func (p *Producer) Produce(ctx context.Context, out chan<- models.Mail) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting outbox producer", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Outbox producer stopped by context")
				return

			case <-ticker.C:
				p.logger.Debug("Outbox producer tick: claiming pending mail")

				// Rescue mail claimed by a sender that never finished,
				// e.g. after a crash or a shutdown mid delivery
				reclaimed, err := p.mailRepo.ReclaimStale(ctx, p.reclaimAfter)
				if err != nil {
					p.logger.Error("Failed to reclaim stale mail", "error", err)
				} else if reclaimed > 0 {
					p.logger.Warn("Reclaimed stale mail", "count", reclaimed)
				}

				mails, err := p.mailRepo.ClaimPending(ctx, p.batchSize)
				if err != nil {
					p.logger.Error("Failed to claim pending mail", "error", err)
					continue
				}

				// Send claimed mail to the output channel
				for _, mail := range mails {
					select {
					case <-ctx.Done():
						p.logger.Debug("Outbox producer stopped by context while dispatching mail")
						return
					case out <- mail:
						p.logger.Debug("Mail sent to channel", "mailID", mail.ID)
					}
				}
			}
		}
	}()

	return idleStopped
}
