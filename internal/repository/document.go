package repository

import (
	"context"
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
)

type DocumentRepository struct {
	*baseRepository
}

func (dr DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	dr.logger.Debugf("Create document with data: %v \n", doc)

	db := dr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return db.WithContext(ctx).Model(&model.Document{}).Omit("File").Create(doc).Error
}

func (dr DocumentRepository) GetByID(ctx context.Context, id string) (*model.Document, error) {
	dr.logger.Debugf("Get document with id: %s \n", id)

	db := dr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var doc model.Document
	if err := db.WithContext(ctx).Model(&model.Document{}).Where(model.Document{
		BaseModel: model.BaseModel{
			ID: id,
		},
	}).Preload("File").First(&doc).Error; err != nil {
		return nil, err
	}

	return &doc, nil
}

// GetByIDForOwner returns gorm.ErrRecordNotFound for documents that exist but
// belong to someone else, so ownership does not leak.
func (dr DocumentRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*model.Document, error) {
	dr.logger.Debugf("Get document with id: %s for owner: %s \n", id, ownerID)

	db := dr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var doc model.Document
	if err := db.WithContext(ctx).Model(&model.Document{}).Where(model.Document{
		BaseModel: model.BaseModel{
			ID: id,
		},
		OwnerID: ownerID,
	}).Preload("File").First(&doc).Error; err != nil {
		return nil, err
	}

	return &doc, nil
}

// TransitionStatus moves a document from one status to another only if it is
// still in the expected status. The bool reports whether this call won.
func (dr DocumentRepository) TransitionStatus(ctx context.Context, id string, from, to constant.DocumentStatus, change model.DocumentStatusChange) (bool, error) {
	dr.logger.Debugf("Transition document %s from %s to %s \n", id, from, to)

	db := dr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	res := db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND status = ?", id, from).
		Updates(change.Columns(to))
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

func (dr DocumentRepository) Delete(ctx context.Context, id string) error {
	dr.logger.Debugf("Delete document with id: %s \n", id)

	db := dr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return db.WithContext(ctx).Where("id = ?", id).Delete(&model.Document{}).Error
}

func (dr DocumentRepository) CountByFileID(ctx context.Context, fileID string) (int64, error) {
	dr.logger.Debugf("Count documents referencing file: %s \n", fileID)

	db := dr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var count int64
	if err := db.WithContext(ctx).Model(&model.Document{}).Where("file_id = ?", fileID).Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

// ListOverdue returns PENDING documents whose expires_at is before now, oldest first.
func (dr DocumentRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.Document, error) {
	dr.logger.Debugf("List overdue documents before %v, limit %d \n", now, limit)

	db := dr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var docs []model.Document
	if err := db.WithContext(ctx).Model(&model.Document{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", constant.DocumentStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&docs).Error; err != nil {
		return nil, err
	}

	return docs, nil
}
