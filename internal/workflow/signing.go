package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SeakMengs/AutoSign/internal/apperror"
	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/mailer"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/SeakMengs/AutoSign/internal/util"
	"gorm.io/gorm"
)

type session struct {
	token string
	doc   *model.Document
	sig   *model.Signature
}

// resolveSession maps a signing token to its signature and document. Bad
// tokens and tokens rotated away by delegation are indistinguishable NOT_FOUNDs.
func (e *Engine) resolveSession(ctx context.Context, token string) (*session, error) {
	invalid := apperror.New(apperror.CodeNotFound, "signing link is invalid")

	claims, err := e.tokens.VerifySigningToken(token)
	if err != nil {
		return nil, invalid
	}

	sig, err := e.signatures.GetByID(ctx, claims.SignatureID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if sig.Token != token || sig.DocumentID != claims.DocumentID {
		return nil, invalid
	}

	doc, err := e.documents.GetByID(ctx, sig.DocumentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid
		}
		return nil, err
	}

	return &session{token: token, doc: doc, sig: sig}, nil
}

// checkReachable rejects sessions on voided or expired documents. Expiry wins
// over whatever status the signature is in.
func (e *Engine) checkReachable(s *session) error {
	if s.doc.Status == constant.DocumentStatusVoid {
		return apperror.New(apperror.CodeVoided, "document was voided by the sender")
	}

	now := e.now()
	if s.sig.IsTokenExpired(now) || s.doc.Status == constant.DocumentStatusExpired || s.doc.IsPastExpiry(now) {
		return apperror.New(apperror.CodeExpired, "signing link has expired")
	}
	return nil
}

// checkActionable is checkReachable plus both records still being PENDING.
func (e *Engine) checkActionable(s *session) error {
	if err := e.checkReachable(s); err != nil {
		return err
	}
	if s.sig.Status != constant.SignatureStatusPending {
		return apperror.Newf(apperror.CodeInvalidStatus, "signature is already %s", s.sig.Status)
	}
	if s.doc.Status != constant.DocumentStatusPending {
		return apperror.Newf(apperror.CodeInvalidStatus, "document is %s", s.doc.Status)
	}
	return nil
}

type SigningContext struct {
	SignatureID               string                   `json:"signatureId"`
	DocumentID                string                   `json:"documentId"`
	DocumentTitle             string                   `json:"documentTitle"`
	SignerEmail               string                   `json:"signerEmail"`
	SignerName                string                   `json:"signerName"`
	Status                    constant.SignatureStatus `json:"status"`
	WaitingForPreviousSigners bool                     `json:"waitingForPreviousSigners"`
	AccessCodeRequired        bool                     `json:"accessCodeRequired"`
	AccessCodeVerified        bool                     `json:"accessCodeVerified"`
	DocumentURL               string                   `json:"documentUrl"`
	Fields                    []model.Field            `json:"fields"`
}

func (e *Engine) GetSigningContext(ctx context.Context, token string) (*SigningContext, error) {
	s, err := e.resolveSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := e.checkReachable(s); err != nil {
		return nil, err
	}

	switch s.sig.Status {
	case constant.SignatureStatusSigned:
		return nil, apperror.New(apperror.CodeAlreadySigned, "you have already signed this document")
	case constant.SignatureStatusDeclined:
		return nil, apperror.New(apperror.CodeDeclined, "you declined to sign this document")
	}

	sigs, err := e.signatures.ListByDocument(ctx, s.doc.ID)
	if err != nil {
		return nil, err
	}

	fields, err := e.fields.ListByDocument(ctx, s.doc.ID)
	if err != nil {
		return nil, err
	}
	mine := make([]model.Field, 0, len(fields))
	for _, f := range fields {
		if f.SignatureID == "" || f.SignatureID == s.sig.ID {
			mine = append(mine, f)
		}
	}

	url, err := e.storage.GeneratePresignedUrl(ctx, s.doc.File.BucketName, s.doc.File.UniqueFileName)
	if err != nil {
		return nil, fmt.Errorf("presign document: %w", err)
	}

	if err := e.appendAudit(ctx, s.doc.ID, constant.AuditDocumentViewed, "", map[string]any{
		"signatureId": s.sig.ID,
		"signerEmail": s.sig.SignerEmail,
	}); err != nil {
		e.logger.Errorf("Failed to record view of document %s: %v", s.doc.ID, err)
	}

	return &SigningContext{
		SignatureID:               s.sig.ID,
		DocumentID:                s.doc.ID,
		DocumentTitle:             s.doc.Title,
		SignerEmail:               s.sig.SignerEmail,
		SignerName:                s.sig.SignerName,
		Status:                    s.sig.Status,
		WaitingForPreviousSigners: !CanAct(sigs, *s.sig),
		AccessCodeRequired:        s.sig.HasAccessCode(),
		AccessCodeVerified:        s.sig.AccessCodeVerifiedAt != nil,
		DocumentURL:               url,
		Fields:                    mine,
	}, nil
}

type FieldValue struct {
	FieldID string `json:"fieldId" binding:"required,strNotEmpty"`
	Value   string `json:"value"`
}

type SubmitInput struct {
	SignatureData string       `json:"signatureData" binding:"required,strNotEmpty"`
	SignatureType string       `json:"signatureType" binding:"required,oneof=drawn typed uploaded"`
	FieldValues   []FieldValue `json:"fieldValues" binding:"omitempty,dive"`
	IPAddress     string       `json:"-"`
	UserAgent     string       `json:"-"`
}

type SubmitResult struct {
	Signed            bool `json:"signed"`
	DocumentCompleted bool `json:"documentCompleted"`
}

// Submit signs the signature and records field values in one transaction.
// The completion cascade and the next stage invitation run after it commits.
func (e *Engine) Submit(ctx context.Context, token string, in SubmitInput) (*SubmitResult, error) {
	if strings.TrimSpace(in.SignatureData) == "" {
		return nil, apperror.New(apperror.CodeValidation, "signature data is required")
	}

	s, err := e.resolveSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := e.checkActionable(s); err != nil {
		return nil, err
	}
	if e.cfg.EnforceAccessCode && s.sig.HasAccessCode() && s.sig.AccessCodeVerifiedAt == nil {
		return nil, apperror.New(apperror.CodeInvalidCode, "access code must be verified before signing")
	}

	sigs, err := e.signatures.ListByDocument(ctx, s.doc.ID)
	if err != nil {
		return nil, err
	}
	if !CanAct(sigs, *s.sig) {
		return nil, apperror.New(apperror.CodeAwaitingPreviousSigners, "waiting for previous signers")
	}

	if err := e.checkFieldValues(ctx, s, in.FieldValues); err != nil {
		return nil, err
	}

	now := e.now()
	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		won, err := e.signatures.MarkSigned(ctx, s.sig.ID, model.SignedSignature{
			SignatureData: in.SignatureData,
			SignatureType: in.SignatureType,
			SignedAt:      now,
			IPAddress:     in.IPAddress,
			UserAgent:     in.UserAgent,
		})
		if err != nil {
			return err
		}
		if !won {
			return apperror.New(apperror.CodeInvalidStatus, "signature is no longer PENDING")
		}

		for _, fv := range in.FieldValues {
			ok, err := e.fields.SetValue(ctx, s.doc.ID, fv.FieldID, s.sig.ID, fv.Value)
			if err != nil {
				return err
			}
			if !ok {
				return apperror.Newf(apperror.CodeValidation, "field %s does not belong to this signer", fv.FieldID)
			}
		}

		return e.appendAudit(ctx, s.doc.ID, constant.AuditSignatureSigned, "", map[string]any{
			"signatureId":   s.sig.ID,
			"signerEmail":   s.sig.SignerEmail,
			"signatureType": in.SignatureType,
			"ipAddress":     in.IPAddress,
			"userAgent":     in.UserAgent,
			"fieldCount":    len(in.FieldValues),
		})
	})
	if err != nil {
		return nil, err
	}

	completed, err := e.completeIfAllSigned(ctx, s.doc)
	if err != nil {
		e.logger.Errorf("Completion cascade failed for document %s: %v", s.doc.ID, err)
	}
	if !completed {
		if err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
			return e.notifyNextStage(ctx, s.doc)
		}); err != nil {
			e.logger.Errorf("Failed to notify next stage of document %s: %v", s.doc.ID, err)
		}
	}

	return &SubmitResult{Signed: true, DocumentCompleted: completed}, nil
}

// checkFieldValues rejects values for unknown fields or fields bound to someone
// else, and requires every required non-signature field bound to this signer.
func (e *Engine) checkFieldValues(ctx context.Context, s *session, values []FieldValue) error {
	fields, err := e.fields.ListByDocument(ctx, s.doc.ID)
	if err != nil {
		return err
	}

	byID := make(map[string]model.Field, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}

	given := make(map[string]bool, len(values))
	for _, fv := range values {
		f, ok := byID[fv.FieldID]
		if !ok {
			return apperror.Newf(apperror.CodeValidation, "field %s does not exist on this document", fv.FieldID)
		}
		if f.SignatureID != "" && f.SignatureID != s.sig.ID {
			return apperror.Newf(apperror.CodeValidation, "field %s does not belong to this signer", fv.FieldID)
		}
		if strings.TrimSpace(fv.Value) != "" {
			given[fv.FieldID] = true
		}
	}

	for _, f := range fields {
		if f.SignatureID == s.sig.ID && f.Required && !f.Type.FilledBySignature() && !given[f.ID] {
			return apperror.Newf(apperror.CodeValidation, "field %s is required", f.ID)
		}
	}
	return nil
}

// Decline marks the signature DECLINED, tells the owner and lets the next
// stage proceed. Sibling signatures are left alone.
func (e *Engine) Decline(ctx context.Context, token, reason string) error {
	s, err := e.resolveSession(ctx, token)
	if err != nil {
		return err
	}
	if err := e.checkActionable(s); err != nil {
		return err
	}

	reason = strings.TrimSpace(reason)
	return e.tx.RunInTx(ctx, func(ctx context.Context) error {
		won, err := e.signatures.MarkDeclined(ctx, s.sig.ID, reason, e.now())
		if err != nil {
			return err
		}
		if !won {
			return apperror.New(apperror.CodeInvalidStatus, "signature is no longer PENDING")
		}

		if err := e.appendAudit(ctx, s.doc.ID, constant.AuditSignatureDeclined, "", map[string]any{
			"signatureId": s.sig.ID,
			"signerEmail": s.sig.SignerEmail,
			"reason":      reason,
		}); err != nil {
			return err
		}

		if err := e.enqueueMail(ctx, mailer.SignatureDeclinedTemplate, "", s.doc.OwnerEmail, mailer.SignatureDeclinedData{
			DocumentTitle: s.doc.Title,
			SignerName:    s.sig.SignerName,
			SignerEmail:   s.sig.SignerEmail,
			Reason:        reason,
		}); err != nil {
			return err
		}

		return e.notifyNextStage(ctx, s.doc)
	})
}

type DelegateInput struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required,strNotEmpty"`
}

type DelegateResult struct {
	Delegated      bool   `json:"delegated"`
	NewSignerEmail string `json:"newSignerEmail"`
}

// Delegate hands the signature to someone else. The token is rotated with the
// same business expiry, so the old link stops resolving.
func (e *Engine) Delegate(ctx context.Context, token string, in DelegateInput) (*DelegateResult, error) {
	newEmail := strings.TrimSpace(in.Email)
	newName := strings.TrimSpace(in.Name)
	if newEmail == "" {
		return nil, apperror.New(apperror.CodeValidation, "delegate email is required")
	}

	s, err := e.resolveSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := e.checkActionable(s); err != nil {
		return nil, err
	}
	if strings.EqualFold(newEmail, s.sig.SignerEmail) {
		return nil, apperror.New(apperror.CodeValidation, "cannot delegate to the current signer")
	}

	newToken, err := e.tokens.IssueSigningToken(s.sig.ID, s.doc.ID, newEmail, s.sig.TokenExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("issue signing token: %w", err)
	}

	sigs, err := e.signatures.ListByDocument(ctx, s.doc.ID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	canAct := CanAct(sigs, *s.sig)
	delegation := model.Delegation{
		OriginalEmail: s.sig.SignerEmail,
		OriginalName:  s.sig.SignerName,
		NewEmail:      newEmail,
		NewName:       newName,
		NewToken:      newToken,
		DelegatedAt:   now,
	}
	if canAct {
		delegation.InvitedAt = &now
	}

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		won, err := e.signatures.Delegate(ctx, s.sig.ID, token, delegation)
		if err != nil {
			return err
		}
		if !won {
			return apperror.New(apperror.CodeInvalidStatus, "signature is no longer PENDING")
		}

		if err := e.appendAudit(ctx, s.doc.ID, constant.AuditSignatureDelegated, "", map[string]any{
			"signatureId":   s.sig.ID,
			"originalEmail": delegation.OriginalEmail,
			"originalName":  delegation.OriginalName,
			"newEmail":      newEmail,
			"newName":       newName,
		}); err != nil {
			return err
		}

		if !canAct {
			return nil
		}

		delegated := *s.sig
		delegated.SignerEmail = newEmail
		delegated.SignerName = newName
		delegated.Token = newToken
		data := e.signingRequestData(s.doc, delegated)
		data.DelegatedBy = delegation.OriginalName
		if data.DelegatedBy == "" {
			data.DelegatedBy = delegation.OriginalEmail
		}
		return e.enqueueMail(ctx, mailer.SigningRequestTemplate, newName, newEmail, data)
	})
	if err != nil {
		return nil, err
	}

	return &DelegateResult{Delegated: true, NewSignerEmail: newEmail}, nil
}

type VerifyAccessCodeResult struct {
	Verified bool `json:"verified"`
}

// VerifyAccessCode checks the signer PIN. Signatures without one pass trivially.
func (e *Engine) VerifyAccessCode(ctx context.Context, token, code string) (*VerifyAccessCodeResult, error) {
	s, err := e.resolveSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := e.checkReachable(s); err != nil {
		return nil, err
	}

	if !s.sig.HasAccessCode() {
		return &VerifyAccessCodeResult{Verified: true}, nil
	}

	if !util.CompareAccessCode(s.sig.AccessCode, strings.TrimSpace(code)) {
		return nil, apperror.New(apperror.CodeInvalidCode, "access code is incorrect")
	}

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := e.signatures.MarkAccessVerified(ctx, s.sig.ID, e.now()); err != nil {
			return err
		}
		return e.appendAudit(ctx, s.doc.ID, constant.AuditSignatureAccessVerified, "", map[string]any{
			"signatureId": s.sig.ID,
			"signerEmail": s.sig.SignerEmail,
		})
	})
	if err != nil {
		return nil, err
	}

	return &VerifyAccessCodeResult{Verified: true}, nil
}
