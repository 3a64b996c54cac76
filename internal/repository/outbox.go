package repository

import (
	"context"
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OutboxRepository struct {
	*baseRepository
}

func (or OutboxRepository) Enqueue(ctx context.Context, msg *model.OutboxMessage) error {
	or.logger.Debugf("Enqueue outbox message %s to %s \n", msg.TemplateFile, msg.ToEmail)

	db := or.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return db.WithContext(ctx).Model(&model.OutboxMessage{}).Create(msg).Error
}

// ClaimPending locks up to limit PENDING messages for the surrounding
// transaction. Rows locked by another relay are skipped.
func (or OutboxRepository) ClaimPending(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	or.logger.Debugf("Claim up to %d pending outbox messages \n", limit)

	db := or.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var msgs []model.OutboxMessage
	if err := db.WithContext(ctx).Model(&model.OutboxMessage{}).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", constant.OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}

	return msgs, nil
}

func (or OutboxRepository) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	or.logger.Debugf("Mark outbox message %s as dispatched \n", id)

	db := or.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return db.WithContext(ctx).Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        constant.OutboxStatusDispatched,
			"dispatched_at": at,
			"attempts":      gorm.Expr("attempts + 1"),
		}).Error
}

// MarkAttemptFailed records a failed publish. The message turns FAILED once it
// reaches maxAttempts and stays PENDING otherwise.
func (or OutboxRepository) MarkAttemptFailed(ctx context.Context, id string, lastErr string, maxAttempts int) error {
	or.logger.Debugf("Mark outbox message %s attempt as failed: %s \n", id, lastErr)

	db := or.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return db.WithContext(ctx).Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastErr,
			"status": gorm.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE status END",
				maxAttempts, constant.OutboxStatusFailed),
		}).Error
}
