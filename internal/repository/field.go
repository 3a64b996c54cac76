package repository

import (
	"context"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
)

type FieldRepository struct {
	*baseRepository
}

func (fr FieldRepository) CreateBatch(ctx context.Context, fields []model.Field) error {
	fr.logger.Debugf("Create %d document fields \n", len(fields))

	if len(fields) == 0 {
		return nil
	}

	db := fr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return db.WithContext(ctx).Model(&model.Field{}).Omit("Document").Create(&fields).Error
}

func (fr FieldRepository) ListByDocument(ctx context.Context, documentID string) ([]model.Field, error) {
	fr.logger.Debugf("List fields of document: %s \n", documentID)

	db := fr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var fields []model.Field
	if err := db.WithContext(ctx).Model(&model.Field{}).
		Where("document_id = ?", documentID).
		Order("page ASC, y ASC, x ASC").
		Find(&fields).Error; err != nil {
		return nil, err
	}

	return fields, nil
}

// BindSignerIndex resolves the send-time signer index of every matching field to a signature.
func (fr FieldRepository) BindSignerIndex(ctx context.Context, documentID string, signerIndex int, signatureID string) error {
	fr.logger.Debugf("Bind fields of document %s with signer index %d to signature %s \n", documentID, signerIndex, signatureID)

	db := fr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return db.WithContext(ctx).Model(&model.Field{}).
		Where("document_id = ? AND signer_index = ?", documentID, signerIndex).
		Update("signature_id", signatureID).Error
}

// SetValue records a value and binds the field to the signature. Fields bound to
// another signer are left alone and reported as false.
func (fr FieldRepository) SetValue(ctx context.Context, documentID, fieldID, signatureID, value string) (bool, error) {
	fr.logger.Debugf("Set value of field %s by signature %s \n", fieldID, signatureID)

	db := fr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	res := db.WithContext(ctx).Model(&model.Field{}).
		Where("id = ? AND document_id = ? AND (signature_id IS NULL OR signature_id = ?)", fieldID, documentID, signatureID).
		Updates(map[string]any{
			"value":        value,
			"signature_id": signatureID,
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}
