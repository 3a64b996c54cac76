package repository

import (
	"context"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
)

type AuditLogRepository struct {
	*baseRepository
}

func (ar AuditLogRepository) Append(ctx context.Context, entry *model.AuditLog) error {
	ar.logger.Debugf("Append audit log %s for document %s \n", entry.EventType, entry.DocumentID)

	db := ar.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return db.WithContext(ctx).Model(&model.AuditLog{}).Omit("Document").Create(entry).Error
}

func (ar AuditLogRepository) ListByDocument(ctx context.Context, documentID string) ([]model.AuditLog, error) {
	ar.logger.Debugf("List audit logs of document: %s \n", documentID)

	db := ar.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var logs []model.AuditLog
	if err := db.WithContext(ctx).Model(&model.AuditLog{}).
		Where("document_id = ?", documentID).
		Order("timestamp ASC, created_at ASC").
		Find(&logs).Error; err != nil {
		return nil, err
	}

	return logs, nil
}
