package repository

import (
	"context"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
)

type FileRepository struct {
	*baseRepository
}

func (fr FileRepository) Create(ctx context.Context, file *model.File) error {
	fr.logger.Debugf("Create file with data: %v \n", file)

	db := fr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return db.WithContext(ctx).Model(&model.File{}).Create(file).Error
}

func (fr FileRepository) Delete(ctx context.Context, fileID string) error {
	fr.logger.Debugf("Delete file with fileID: %s \n", fileID)

	db := fr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return db.WithContext(ctx).Model(&model.File{}).Where(&model.File{
		BaseModel: model.BaseModel{
			ID: fileID,
		},
	}).Delete(&model.File{}).Error
}
