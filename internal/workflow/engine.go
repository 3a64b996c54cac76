// Package workflow implements the document and signature state machines:
// sending, signing, declining, delegating, reminders and the completion cascade.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/SeakMengs/AutoSign/internal/apperror"
	"github.com/SeakMengs/AutoSign/internal/auth"
	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, id string) (*model.Document, error)
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*model.Document, error)
	TransitionStatus(ctx context.Context, id string, from, to constant.DocumentStatus, change model.DocumentStatusChange) (bool, error)
	Delete(ctx context.Context, id string) error
	CountByFileID(ctx context.Context, fileID string) (int64, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.Document, error)
}

type SignatureStore interface {
	CreateBatch(ctx context.Context, sigs []model.Signature) error
	GetByID(ctx context.Context, id string) (*model.Signature, error)
	ListByDocument(ctx context.Context, documentID string) ([]model.Signature, error)
	MarkSigned(ctx context.Context, id string, signed model.SignedSignature) (bool, error)
	MarkDeclined(ctx context.Context, id, reason string, at time.Time) (bool, error)
	DeclinePending(ctx context.Context, documentID, reason string, at time.Time) ([]model.Signature, error)
	Delegate(ctx context.Context, id, oldToken string, d model.Delegation) (bool, error)
	MarkInvited(ctx context.Context, id string, at time.Time) (bool, error)
	StampReminder(ctx context.Context, id string, at, cutoff time.Time) (bool, error)
	MarkAccessVerified(ctx context.Context, id string, at time.Time) error
}

type FieldStore interface {
	CreateBatch(ctx context.Context, fields []model.Field) error
	ListByDocument(ctx context.Context, documentID string) ([]model.Field, error)
	BindSignerIndex(ctx context.Context, documentID string, signerIndex int, signatureID string) error
	SetValue(ctx context.Context, documentID, fieldID, signatureID, value string) (bool, error)
}

type CCRecipientStore interface {
	CreateBatch(ctx context.Context, ccs []model.CCRecipient) error
	ListByDocument(ctx context.Context, documentID string) ([]model.CCRecipient, error)
	MarkNotified(ctx context.Context, id string, at time.Time) (bool, error)
}

type AuditStore interface {
	Append(ctx context.Context, entry *model.AuditLog) error
	ListByDocument(ctx context.Context, documentID string) ([]model.AuditLog, error)
}

type OutboxStore interface {
	Enqueue(ctx context.Context, msg *model.OutboxMessage) error
}

type FileStore interface {
	Create(ctx context.Context, file *model.File) error
	Delete(ctx context.Context, fileID string) error
}

type ObjectStorage interface {
	Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
	GeneratePresignedUrl(ctx context.Context, bucket, objectName string) (string, error)
	RemoveObject(ctx context.Context, bucket, objectName string) error
}

type PDFInspector interface {
	PageCount(data []byte) (int, error)
}

type TokenCodec interface {
	IssueSigningToken(signatureID, documentID, signerEmail string, expiresAt time.Time) (string, error)
	VerifySigningToken(token string) (*auth.SigningClaims, error)
}

type Dependencies struct {
	Tx           TxManager
	Documents    DocumentStore
	Signatures   SignatureStore
	Fields       FieldStore
	CCRecipients CCRecipientStore
	Audit        AuditStore
	Outbox       OutboxStore
	Files        FileStore
	Storage      ObjectStorage
	PDF          PDFInspector
	Tokens       TokenCodec
	// Defaults to time.Now
	Now func() time.Time
}

type Engine struct {
	cfg        config.SigningConfig
	logger     *zap.SugaredLogger
	tx         TxManager
	documents  DocumentStore
	signatures SignatureStore
	fields     FieldStore
	ccs        CCRecipientStore
	audit      AuditStore
	outbox     OutboxStore
	files      FileStore
	storage    ObjectStorage
	pdf        PDFInspector
	tokens     TokenCodec
	now        func() time.Time
}

func NewEngine(cfg config.SigningConfig, logger *zap.SugaredLogger, deps Dependencies) *Engine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		cfg:        cfg,
		logger:     logger,
		tx:         deps.Tx,
		documents:  deps.Documents,
		signatures: deps.Signatures,
		fields:     deps.Fields,
		ccs:        deps.CCRecipients,
		audit:      deps.Audit,
		outbox:     deps.Outbox,
		files:      deps.Files,
		storage:    deps.Storage,
		pdf:        deps.PDF,
		tokens:     deps.Tokens,
		now:        func() time.Time { return now().UTC() },
	}
}

// ownedDocument loads a document for its owner. Missing and foreign documents
// both report NOT_FOUND.
func (e *Engine) ownedDocument(ctx context.Context, owner auth.JWTPayload, documentID string) (*model.Document, error) {
	doc, err := e.documents.GetByIDForOwner(ctx, documentID, owner.ID)
	if err != nil {
		return nil, notFound(err, "document not found")
	}
	return doc, nil
}

func (e *Engine) appendAudit(ctx context.Context, documentID string, event constant.AuditEvent, actorID string, metadata map[string]any) error {
	entry, err := model.NewAuditLog(documentID, event, actorID, metadata, e.now())
	if err != nil {
		return err
	}
	return e.audit.Append(ctx, entry)
}

func notFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.New(apperror.CodeNotFound, message)
	}
	return err
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006 15:04 MST")
}
