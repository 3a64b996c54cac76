package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SeakMengs/AutoSign/internal/apperror"
	"github.com/SeakMengs/AutoSign/internal/auth"
	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/mailer"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/SeakMengs/AutoSign/internal/util"
	"github.com/google/uuid"
)

type FieldInput struct {
	Type        constant.FieldType `json:"type" binding:"required,strNotEmpty"`
	Page        uint               `json:"page" binding:"required,gte=1"`
	X           float64            `json:"x" binding:"gte=0"`
	Y           float64            `json:"y" binding:"gte=0"`
	Width       float64            `json:"width" binding:"required,gt=0"`
	Height      float64            `json:"height" binding:"required,gt=0"`
	Color       string             `json:"color"`
	Required    *bool              `json:"required"`
	SignerIndex *int               `json:"signerIndex" binding:"omitempty,gte=0"`
}

type CreateDraftInput struct {
	Title    string
	FileName string
	Content  []byte
	Fields   []FieldInput
}

// CreateDraft validates and stores the PDF, then creates a DRAFT document with its field layout.
func (e *Engine) CreateDraft(ctx context.Context, owner auth.JWTPayload, in CreateDraftInput) (*model.Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.New(apperror.CodeValidation, "title is required")
	}
	if len(in.Content) == 0 {
		return nil, apperror.New(apperror.CodeValidation, "file is required")
	}

	pages, err := e.pdf.PageCount(in.Content)
	if err != nil {
		return nil, apperror.New(apperror.CodeValidation, err.Error())
	}

	for i, f := range in.Fields {
		if !f.Type.Valid() {
			return nil, apperror.Newf(apperror.CodeValidation, "field %d has unknown type %q", i, f.Type)
		}
		if f.Page < 1 || int(f.Page) > pages {
			return nil, apperror.Newf(apperror.CodeValidation, "field %d is on page %d but the document has %d page(s)", i, f.Page, pages)
		}
		if f.Width <= 0 || f.Height <= 0 {
			return nil, apperror.Newf(apperror.CodeValidation, "field %d must have a positive size", i)
		}
		if f.SignerIndex != nil && *f.SignerIndex < 0 {
			return nil, apperror.Newf(apperror.CodeValidation, "field %d has a negative signer index", i)
		}
	}

	objectName := util.ToDocumentObjectName(owner.ID, in.FileName)
	bucket, err := e.storage.Upload(ctx, objectName, in.Content, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}

	file := &model.File{
		FileName:       in.FileName,
		UniqueFileName: objectName,
		BucketName:     bucket,
		Size:           int64(len(in.Content)),
	}
	doc := &model.Document{
		OwnerID:     owner.ID,
		OwnerEmail:  owner.Email,
		Title:       title,
		Status:      constant.DocumentStatusDraft,
		ContentHash: util.SHA256Hex(in.Content),
	}

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := e.files.Create(ctx, file); err != nil {
			return err
		}

		doc.FileID = file.ID
		if err := e.documents.Create(ctx, doc); err != nil {
			return err
		}

		fields := make([]model.Field, 0, len(in.Fields))
		for _, f := range in.Fields {
			fields = append(fields, f.toModel(doc.ID))
		}
		if err := e.fields.CreateBatch(ctx, fields); err != nil {
			return err
		}

		return e.appendAudit(ctx, doc.ID, constant.AuditDocumentCreated, owner.ID, map[string]any{
			"title":       doc.Title,
			"contentHash": doc.ContentHash,
			"pageCount":   pages,
			"fieldCount":  len(fields),
		})
	})
	if err != nil {
		if rmErr := e.storage.RemoveObject(ctx, bucket, objectName); rmErr != nil {
			e.logger.Errorf("Failed to remove orphan object %s after draft creation failed: %v", objectName, rmErr)
		}
		return nil, err
	}

	doc.File = *file
	return doc, nil
}

func (f FieldInput) toModel(documentID string) model.Field {
	required := true
	if f.Required != nil {
		required = *f.Required
	}

	return model.Field{
		BaseAnnotateModel: model.BaseAnnotateModel{
			Page:       f.Page,
			X:          f.X,
			Y:          f.Y,
			Width:      f.Width,
			Height:     f.Height,
			Color:      f.Color,
			DocumentID: documentID,
		},
		Type:        f.Type,
		Required:    required,
		SignerIndex: f.SignerIndex,
	}
}

type DocumentView struct {
	Document     *model.Document     `json:"document"`
	Signatures   []model.Signature   `json:"signatures"`
	Fields       []model.Field       `json:"fields"`
	CCRecipients []model.CCRecipient `json:"ccRecipients"`
	DocumentURL  string              `json:"documentUrl,omitempty"`
}

func (e *Engine) Get(ctx context.Context, owner auth.JWTPayload, documentID string) (*DocumentView, error) {
	doc, err := e.ownedDocument(ctx, owner, documentID)
	if err != nil {
		return nil, err
	}

	sigs, err := e.signatures.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	fields, err := e.fields.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	ccs, err := e.ccs.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	view := &DocumentView{Document: doc, Signatures: sigs, Fields: fields, CCRecipients: ccs}

	url, err := e.storage.GeneratePresignedUrl(ctx, doc.File.BucketName, doc.File.UniqueFileName)
	if err != nil {
		e.logger.Errorf("Failed to presign document %s: %v", doc.ID, err)
	} else {
		view.DocumentURL = url
	}

	return view, nil
}

type AuditEntry struct {
	ID        string              `json:"id"`
	EventType constant.AuditEvent `json:"eventType"`
	ActorID   string              `json:"actorId,omitempty"`
	Metadata  map[string]any      `json:"metadata"`
	Timestamp time.Time           `json:"timestamp"`
}

func (e *Engine) AuditTrail(ctx context.Context, owner auth.JWTPayload, documentID string) ([]AuditEntry, error) {
	doc, err := e.ownedDocument(ctx, owner, documentID)
	if err != nil {
		return nil, err
	}

	logs, err := e.audit.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]AuditEntry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, AuditEntry{
			ID:        l.ID,
			EventType: l.EventType,
			ActorID:   l.ActorID,
			Metadata:  l.MetadataMap(),
			Timestamp: l.Timestamp,
		})
	}
	return entries, nil
}

type SignerInput struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required,strNotEmpty"`
	// Defaults to the signer's position in the list, starting at 1
	Order              *int   `json:"order" binding:"omitempty,gte=1"`
	AccessCode         string `json:"accessCode" binding:"omitempty,cmin=4,cmax=32"`
	GenerateAccessCode bool   `json:"generateAccessCode"`
}

type CCInput struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
}

// Ten years. Also keeps days * 24h well inside time.Duration.
const MAX_EXPIRES_IN_DAYS = 3650

type SendInput struct {
	Signers       []SignerInput `json:"signers" binding:"required,min=1,dive"`
	CC            []CCInput     `json:"cc" binding:"omitempty,dive"`
	ExpiresInDays int           `json:"expiresInDays" binding:"gte=0,lte=3650"`
}

type SignatureLink struct {
	SignatureID string `json:"signatureId"`
	SignerEmail string `json:"signerEmail"`
	SignerName  string `json:"signerName"`
	Order       int    `json:"order"`
	SigningURL  string `json:"signingUrl"`
	// Only present for generated codes, it is never shown again
	AccessCode string `json:"accessCode,omitempty"`
}

type SendResult struct {
	DocumentID string                  `json:"documentId"`
	Status     constant.DocumentStatus `json:"status"`
	ExpiresAt  time.Time               `json:"expiresAt"`
	Signatures []SignatureLink         `json:"signatures"`
}

// Send turns a DRAFT into PENDING, creates one signature per signer and
// invites the first stage.
func (e *Engine) Send(ctx context.Context, owner auth.JWTPayload, documentID string, in SendInput) (*SendResult, error) {
	if len(in.Signers) == 0 {
		return nil, apperror.New(apperror.CodeValidation, "at least one signer is required")
	}
	if in.ExpiresInDays < 0 || in.ExpiresInDays > MAX_EXPIRES_IN_DAYS {
		return nil, apperror.Newf(apperror.CodeValidation, "expiresInDays must be between 0 and %d", MAX_EXPIRES_IN_DAYS)
	}

	doc, err := e.ownedDocument(ctx, owner, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != constant.DocumentStatusDraft {
		return nil, apperror.Newf(apperror.CodeInvalidStatus, "document is %s, only a DRAFT can be sent", doc.Status)
	}

	fields, err := e.fields.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if f.SignerIndex != nil && *f.SignerIndex >= len(in.Signers) {
			return nil, apperror.Newf(apperror.CodeValidation, "a field is assigned to signer %d but only %d signer(s) were given", *f.SignerIndex, len(in.Signers))
		}
	}

	days := in.ExpiresInDays
	if days == 0 {
		days = e.cfg.DefaultExpiresInDays
	}
	now := e.now()
	expiresAt := now.AddDate(0, 0, days)

	sigs := make([]model.Signature, 0, len(in.Signers))
	links := make([]SignatureLink, 0, len(in.Signers))
	for i, s := range in.Signers {
		email := strings.TrimSpace(s.Email)
		if email == "" {
			return nil, apperror.Newf(apperror.CodeValidation, "signer %d has no email", i)
		}

		order := i + 1
		if s.Order != nil {
			if *s.Order < 1 {
				return nil, apperror.Newf(apperror.CodeValidation, "signer %d has an order below 1", i)
			}
			order = *s.Order
		}

		sig := model.Signature{
			BaseModel:      model.BaseModel{ID: uuid.NewString()},
			DocumentID:     doc.ID,
			SignerEmail:    email,
			SignerName:     strings.TrimSpace(s.Name),
			SigningOrder:   order,
			Status:         constant.SignatureStatusPending,
			TokenExpiresAt: expiresAt,
		}

		sig.Token, err = e.tokens.IssueSigningToken(sig.ID, doc.ID, sig.SignerEmail, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("issue signing token: %w", err)
		}

		link := SignatureLink{
			SignatureID: sig.ID,
			SignerEmail: sig.SignerEmail,
			SignerName:  sig.SignerName,
			Order:       sig.SigningOrder,
			SigningURL:  util.SigningURL(e.cfg.BaseURL, sig.Token),
		}

		code := s.AccessCode
		if code == "" && s.GenerateAccessCode {
			if code, err = util.GenerateAccessCode(); err != nil {
				return nil, fmt.Errorf("generate access code: %w", err)
			}
			link.AccessCode = code
		}
		if code != "" {
			if sig.AccessCode, err = util.HashAccessCode(code); err != nil {
				return nil, fmt.Errorf("hash access code: %w", err)
			}
		}

		sigs = append(sigs, sig)
		links = append(links, link)
	}

	ccs := make([]model.CCRecipient, 0, len(in.CC))
	for _, cc := range in.CC {
		ccs = append(ccs, model.CCRecipient{DocumentID: doc.ID, Email: strings.TrimSpace(cc.Email), Name: cc.Name})
	}

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		won, err := e.documents.TransitionStatus(ctx, doc.ID, constant.DocumentStatusDraft, constant.DocumentStatusPending, model.DocumentStatusChange{
			ExpiresAt: &expiresAt,
		})
		if err != nil {
			return err
		}
		if !won {
			return apperror.New(apperror.CodeInvalidStatus, "document was already sent")
		}
		doc.Status = constant.DocumentStatusPending
		doc.ExpiresAt = &expiresAt

		if err := e.signatures.CreateBatch(ctx, sigs); err != nil {
			return err
		}
		for i, sig := range sigs {
			if err := e.fields.BindSignerIndex(ctx, doc.ID, i, sig.ID); err != nil {
				return err
			}
		}
		if err := e.ccs.CreateBatch(ctx, ccs); err != nil {
			return err
		}

		if err := e.appendAudit(ctx, doc.ID, constant.AuditDocumentSent, owner.ID, map[string]any{
			"signerCount":       len(sigs),
			"ccCount":           len(ccs),
			"expiresAt":         expiresAt,
			"hasMultipleOrders": HasMultipleOrders(sigs),
		}); err != nil {
			return err
		}

		for _, sig := range NextStage(sigs) {
			if err := e.invite(ctx, doc, sig); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &SendResult{
		DocumentID: doc.ID,
		Status:     doc.Status,
		ExpiresAt:  expiresAt,
		Signatures: links,
	}, nil
}

func (e *Engine) Void(ctx context.Context, owner auth.JWTPayload, documentID, reason string) error {
	doc, err := e.ownedDocument(ctx, owner, documentID)
	if err != nil {
		return err
	}
	if doc.Status != constant.DocumentStatusPending {
		return apperror.Newf(apperror.CodeInvalidStatus, "document is %s, only a PENDING document can be voided", doc.Status)
	}

	return e.tx.RunInTx(ctx, func(ctx context.Context) error {
		return e.voidInTx(ctx, doc, strings.TrimSpace(reason), owner.ID)
	})
}

// voidInTx flips the document to VOID, declines every pending signature and
// queues a void notice for each signer it declined.
func (e *Engine) voidInTx(ctx context.Context, doc *model.Document, reason, actorID string) error {
	now := e.now()
	won, err := e.documents.TransitionStatus(ctx, doc.ID, constant.DocumentStatusPending, constant.DocumentStatusVoid, model.DocumentStatusChange{
		VoidedAt:   &now,
		VoidReason: reason,
	})
	if err != nil {
		return err
	}
	if !won {
		return apperror.New(apperror.CodeInvalidStatus, "document is no longer PENDING")
	}
	doc.Status = constant.DocumentStatusVoid
	doc.VoidedAt = &now
	doc.VoidReason = reason

	declineReason := reason
	if declineReason == "" {
		declineReason = "Document voided"
	}
	declined, err := e.signatures.DeclinePending(ctx, doc.ID, declineReason, now)
	if err != nil {
		return err
	}

	if err := e.appendAudit(ctx, doc.ID, constant.AuditDocumentVoided, actorID, map[string]any{
		"reason":             reason,
		"declinedSignatures": len(declined),
	}); err != nil {
		return err
	}

	for _, sig := range declined {
		if err := e.enqueueMail(ctx, mailer.DocumentVoidedTemplate, sig.SignerName, sig.SignerEmail, mailer.DocumentVoidedData{
			SignerName:    sig.SignerName,
			DocumentTitle: doc.Title,
			Reason:        reason,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Resend copies a sent document into a fresh DRAFT with the same file and
// field layout. A PENDING source is voided in the same transaction.
func (e *Engine) Resend(ctx context.Context, owner auth.JWTPayload, documentID string) (string, error) {
	doc, err := e.ownedDocument(ctx, owner, documentID)
	if err != nil {
		return "", err
	}
	if doc.Status == constant.DocumentStatusDraft {
		return "", apperror.New(apperror.CodeInvalidStatus, "a DRAFT has nothing to resend")
	}

	fields, err := e.fields.ListByDocument(ctx, doc.ID)
	if err != nil {
		return "", err
	}

	copyDoc := &model.Document{
		OwnerID:     doc.OwnerID,
		OwnerEmail:  doc.OwnerEmail,
		Title:       doc.Title,
		Status:      constant.DocumentStatusDraft,
		FileID:      doc.FileID,
		ContentHash: doc.ContentHash,
	}

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		if doc.Status == constant.DocumentStatusPending {
			if err := e.voidInTx(ctx, doc, "Resent as a new document", owner.ID); err != nil {
				return err
			}
		}

		if err := e.documents.Create(ctx, copyDoc); err != nil {
			return err
		}

		copied := make([]model.Field, 0, len(fields))
		for _, f := range fields {
			copied = append(copied, f.CopyLayout(copyDoc.ID))
		}
		if err := e.fields.CreateBatch(ctx, copied); err != nil {
			return err
		}

		if err := e.appendAudit(ctx, copyDoc.ID, constant.AuditDocumentCreated, owner.ID, map[string]any{
			"title":       copyDoc.Title,
			"contentHash": copyDoc.ContentHash,
			"fieldCount":  len(copied),
		}); err != nil {
			return err
		}

		return e.appendAudit(ctx, doc.ID, constant.AuditDocumentResent, owner.ID, map[string]any{
			"newDocumentId": copyDoc.ID,
		})
	})
	if err != nil {
		return "", err
	}

	return copyDoc.ID, nil
}

// Delete removes a document and everything it owns. The stored PDF goes too
// once no other document (a resent copy) points at it.
func (e *Engine) Delete(ctx context.Context, owner auth.JWTPayload, documentID string, confirm bool) error {
	doc, err := e.ownedDocument(ctx, owner, documentID)
	if err != nil {
		return err
	}

	switch {
	case doc.Status == constant.DocumentStatusSigned:
		return apperror.New(apperror.CodeCannotDelete, "a signed document cannot be deleted")
	case doc.Status == constant.DocumentStatusPending && !confirm:
		return apperror.New(apperror.CodeConfirmationRequired, "document is out for signature, pass confirm=true to delete it")
	}

	orphaned := false
	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := e.documents.Delete(ctx, doc.ID); err != nil {
			return err
		}

		remaining, err := e.documents.CountByFileID(ctx, doc.FileID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}

		orphaned = true
		return e.files.Delete(ctx, doc.FileID)
	})
	if err != nil {
		return err
	}

	if orphaned {
		if err := e.storage.RemoveObject(ctx, doc.File.BucketName, doc.File.UniqueFileName); err != nil {
			e.logger.Errorf("Failed to remove object %s of deleted document %s: %v", doc.File.UniqueFileName, doc.ID, err)
		}
	}
	return nil
}

// ExpireOverdue moves PENDING documents past expires_at to EXPIRED and returns how many it moved.
func (e *Engine) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	docs, err := e.documents.ListOverdue(ctx, e.now(), limit)
	if err != nil {
		return 0, err
	}

	var errs []error
	expired := 0
	for i := range docs {
		doc := &docs[i]
		moved := false
		err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
			won, err := e.documents.TransitionStatus(ctx, doc.ID, constant.DocumentStatusPending, constant.DocumentStatusExpired, model.DocumentStatusChange{})
			if err != nil || !won {
				return err
			}

			moved = true
			return e.appendAudit(ctx, doc.ID, constant.AuditDocumentExpired, "", map[string]any{
				"expiresAt": doc.ExpiresAt,
			})
		})
		if err != nil {
			e.logger.Errorf("Failed to expire document %s: %v", doc.ID, err)
			errs = append(errs, fmt.Errorf("expire %s: %w", doc.ID, err))
			continue
		}
		if moved {
			expired++
		}
	}

	return expired, errors.Join(errs...)
}
