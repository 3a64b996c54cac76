package repository

import (
	"context"
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
)

type CCRecipientRepository struct {
	*baseRepository
}

func (cr CCRecipientRepository) CreateBatch(ctx context.Context, ccs []model.CCRecipient) error {
	cr.logger.Debugf("Create %d cc recipients \n", len(ccs))

	if len(ccs) == 0 {
		return nil
	}

	db := cr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return db.WithContext(ctx).Model(&model.CCRecipient{}).Omit("Document").Create(&ccs).Error
}

func (cr CCRecipientRepository) ListByDocument(ctx context.Context, documentID string) ([]model.CCRecipient, error) {
	cr.logger.Debugf("List cc recipients of document: %s \n", documentID)

	db := cr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var ccs []model.CCRecipient
	if err := db.WithContext(ctx).Model(&model.CCRecipient{}).
		Where("document_id = ?", documentID).
		Order("created_at ASC, id ASC").
		Find(&ccs).Error; err != nil {
		return nil, err
	}

	return ccs, nil
}

// MarkNotified stamps notified_at once. Only the caller that gets true may notify the recipient.
func (cr CCRecipientRepository) MarkNotified(ctx context.Context, id string, at time.Time) (bool, error) {
	cr.logger.Debugf("Mark cc recipient %s as notified \n", id)

	db := cr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	res := db.WithContext(ctx).Model(&model.CCRecipient{}).
		Where("id = ? AND notified_at IS NULL", id).
		Update("notified_at", at)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}
