package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/model"
	"go.uber.org/zap"
)

type OutboxStore interface {
	ClaimPending(ctx context.Context, limit int) ([]model.OutboxMessage, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) error
	MarkAttemptFailed(ctx context.Context, id string, lastErr string, maxAttempts int) error
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OutboxRelay moves committed outbox rows onto the mail queue. Delivery is at
// least once: a crash between publish and commit republishes the batch.
type OutboxRelay struct {
	cfg       config.OutboxConfig
	tx        TxRunner
	store     OutboxStore
	publisher Publisher
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewOutboxRelay(cfg config.OutboxConfig, tx TxRunner, store OutboxStore, publisher Publisher, logger *zap.SugaredLogger) *OutboxRelay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	return &OutboxRelay{
		cfg:       cfg,
		tx:        tx,
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// RelayOnce publishes one batch and returns how many messages were dispatched.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	dispatched := 0

	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		dispatched = 0

		msgs, err := r.store.ClaimPending(ctx, r.cfg.BatchSize)
		if err != nil {
			return err
		}

		for _, msg := range msgs {
			body, err := json.Marshal(NewMailJobFromOutbox(msg))
			if err == nil {
				err = r.publisher.Publish(ctx, QueueMail, body)
			}
			if err != nil {
				r.logger.Warnf("Failed to relay outbox message %s (attempt %d): %v", msg.ID, msg.Attempts+1, err)
				if err := r.store.MarkAttemptFailed(ctx, msg.ID, err.Error(), r.cfg.MaxAttempts); err != nil {
					return err
				}
				continue
			}

			if err := r.store.MarkDispatched(ctx, msg.ID, r.now().UTC()); err != nil {
				return err
			}
			dispatched++
		}
		return nil
	})

	return dispatched, err
}

// Run relays on every tick until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		n, err := r.RelayOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Errorf("Outbox relay batch failed: %v", err)
		}
		if n > 0 {
			r.logger.Infof("Relayed %d outbox message(s)", n)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
