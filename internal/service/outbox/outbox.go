// Package outbox delivers queued account emails in the background so a slow
// or failing mail endpoint never fails the originating request.
package outbox

import (
	"context"
	"time"

	"github.com/nkiryanov/accounts/internal/logger"
	"github.com/nkiryanov/accounts/internal/mailer"
	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/repository"
)

const (
	defaultCountWorkers = 2               // Number of workers to deliver mail
	defaultPollInterval = 5 * time.Second // Interval for claiming pending mail
	defaultBatchSize    = 20              // Mails claimed per poll
	defaultMaxAttempts  = 5               // Delivery attempts before a mail is failed
	defaultReclaimAfter = time.Minute     // Claimed mail older than this goes back to pending
)

type Processor struct {
	consumer *Consumer
	producer *Producer
}

func New(mailRepo repository.MailOutboxRepo, m mailer.Mailer, logger logger.Logger) *Processor {
	return &Processor{
		consumer: &Consumer{
			countWorkers: defaultCountWorkers,
			maxAttempts:  defaultMaxAttempts,
			mailer:       m,
			mailRepo:     mailRepo,
			logger:       logger,
		},
		producer: &Producer{
			interval:     defaultPollInterval,
			batchSize:    defaultBatchSize,
			reclaimAfter: defaultReclaimAfter,
			mailRepo:     mailRepo,
			logger:       logger,
		},
	}
}

// Process starts polling and delivering until ctx is cancelled
// The returned channel closes when producer and workers have stopped
func (p *Processor) Process(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	mailChan := make(chan models.Mail)

	// Start producer to claim pending mail
	producerStopped := p.producer.Produce(ctx, mailChan)

	// Start consumer workers to deliver it
	consumerStopped := p.consumer.Consume(ctx, mailChan)

	go func() {
		defer close(idleStopped)
		defer close(mailChan)
		<-producerStopped
		<-consumerStopped
		p.consumer.logger.Debug("Mail outbox processor stopped")
	}()

	return idleStopped
}
