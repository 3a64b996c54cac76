package repository

import (
	"context"
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"gorm.io/gorm/clause"
)

type SignatureRepository struct {
	*baseRepository
}

func (sr SignatureRepository) CreateBatch(ctx context.Context, sigs []model.Signature) error {
	sr.logger.Debugf("Create %d signatures \n", len(sigs))

	if len(sigs) == 0 {
		return nil
	}

	db := sr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return db.WithContext(ctx).Model(&model.Signature{}).Omit("Document").Create(&sigs).Error
}

func (sr SignatureRepository) GetByID(ctx context.Context, id string) (*model.Signature, error) {
	sr.logger.Debugf("Get signature with id: %s \n", id)

	db := sr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var sig model.Signature
	if err := db.WithContext(ctx).Model(&model.Signature{}).Where(model.Signature{
		BaseModel: model.BaseModel{
			ID: id,
		},
	}).First(&sig).Error; err != nil {
		return nil, err
	}

	return &sig, nil
}

func (sr SignatureRepository) ListByDocument(ctx context.Context, documentID string) ([]model.Signature, error) {
	sr.logger.Debugf("List signatures of document: %s \n", documentID)

	db := sr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var sigs []model.Signature
	if err := db.WithContext(ctx).Model(&model.Signature{}).
		Where("document_id = ?", documentID).
		Order("signing_order ASC, created_at ASC, id ASC").
		Find(&sigs).Error; err != nil {
		return nil, err
	}

	return sigs, nil
}

func (sr SignatureRepository) MarkSigned(ctx context.Context, id string, signed model.SignedSignature) (bool, error) {
	sr.logger.Debugf("Mark signature %s as signed \n", id)

	db := sr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	res := db.WithContext(ctx).Model(&model.Signature{}).
		Where("id = ? AND status = ?", id, constant.SignatureStatusPending).
		Updates(map[string]any{
			"status":         constant.SignatureStatusSigned,
			"signature_data": signed.SignatureData,
			"signature_type": signed.SignatureType,
			"signed_at":      signed.SignedAt,
			"ip_address":     signed.IPAddress,
			"user_agent":     signed.UserAgent,
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

func (sr SignatureRepository) MarkDeclined(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	sr.logger.Debugf("Mark signature %s as declined \n", id)

	db := sr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	res := db.WithContext(ctx).Model(&model.Signature{}).
		Where("id = ? AND status = ?", id, constant.SignatureStatusPending).
		Updates(map[string]any{
			"status":         constant.SignatureStatusDeclined,
			"decline_reason": reason,
			"declined_at":    at,
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

// DeclinePending flips every PENDING signature of a document to DECLINED and
// returns the rows it changed.
func (sr SignatureRepository) DeclinePending(ctx context.Context, documentID, reason string, at time.Time) ([]model.Signature, error) {
	sr.logger.Debugf("Decline pending signatures of document: %s \n", documentID)

	db := sr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var declined []model.Signature
	if err := db.WithContext(ctx).Model(&declined).
		Clauses(clause.Returning{}).
		Where("document_id = ? AND status = ?", documentID, constant.SignatureStatusPending).
		Updates(map[string]any{
			"status":         constant.SignatureStatusDeclined,
			"decline_reason": reason,
			"declined_at":    at,
		}).Error; err != nil {
		return nil, err
	}

	return declined, nil
}

// Delegate succeeds only while the signature is PENDING and oldToken is still its live token.
func (sr SignatureRepository) Delegate(ctx context.Context, id, oldToken string, d model.Delegation) (bool, error) {
	sr.logger.Debugf("Delegate signature %s to %s \n", id, d.NewEmail)

	db := sr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	res := db.WithContext(ctx).Model(&model.Signature{}).
		Where("id = ? AND status = ? AND token = ?", id, constant.SignatureStatusPending, oldToken).
		Updates(map[string]any{
			"signer_email":       d.NewEmail,
			"signer_name":        d.NewName,
			"delegated_to_email": d.NewEmail,
			"delegated_to_name":  d.NewName,
			"delegated_at":       d.DelegatedAt,
			"token":              d.NewToken,
			"invited_at":         d.InvitedAt,
			// a new signer has to pass the access code gate again
			"access_code_verified_at": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

// MarkInvited stamps invited_at once. Only the caller that gets true may send the invitation.
func (sr SignatureRepository) MarkInvited(ctx context.Context, id string, at time.Time) (bool, error) {
	sr.logger.Debugf("Mark signature %s as invited \n", id)

	db := sr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	res := db.WithContext(ctx).Model(&model.Signature{}).
		Where("id = ? AND status = ? AND invited_at IS NULL", id, constant.SignatureStatusPending).
		Update("invited_at", at)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

// StampReminder sets reminder_sent_at when no reminder was sent after cutoff.
func (sr SignatureRepository) StampReminder(ctx context.Context, id string, at, cutoff time.Time) (bool, error) {
	sr.logger.Debugf("Stamp reminder of signature %s \n", id)

	db := sr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	res := db.WithContext(ctx).Model(&model.Signature{}).
		Where("id = ? AND status = ? AND (reminder_sent_at IS NULL OR reminder_sent_at <= ?)", id, constant.SignatureStatusPending, cutoff).
		Update("reminder_sent_at", at)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

func (sr SignatureRepository) MarkAccessVerified(ctx context.Context, id string, at time.Time) error {
	sr.logger.Debugf("Mark access code verified for signature %s \n", id)

	db := sr.getDB(ctx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return db.WithContext(ctx).Model(&model.Signature{}).
		Where("id = ?", id).
		Update("access_code_verified_at", at).Error
}
