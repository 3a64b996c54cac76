package constant

type DocumentStatus string

const (
	DocumentStatusDraft   DocumentStatus = "DRAFT"
	DocumentStatusPending DocumentStatus = "PENDING"
	DocumentStatusSigned  DocumentStatus = "SIGNED"
	DocumentStatusVoid    DocumentStatus = "VOID"
	DocumentStatusExpired DocumentStatus = "EXPIRED"
)

type SignatureStatus string

const (
	SignatureStatusPending  SignatureStatus = "PENDING"
	SignatureStatusSigned   SignatureStatus = "SIGNED"
	SignatureStatusDeclined SignatureStatus = "DECLINED"
)

type FieldType string

const (
	FieldTypeSignature FieldType = "signature"
	FieldTypeInitials  FieldType = "initials"
	FieldTypeText      FieldType = "text"
	FieldTypeDate      FieldType = "date"
	FieldTypeCheckbox  FieldType = "checkbox"
)

func (ft FieldType) Valid() bool {
	switch ft {
	case FieldTypeSignature, FieldTypeInitials, FieldTypeText, FieldTypeDate, FieldTypeCheckbox:
		return true
	}
	return false
}

// Signature and initials fields are rendered from the submitted signature itself.
func (ft FieldType) FilledBySignature() bool {
	return ft == FieldTypeSignature || ft == FieldTypeInitials
}

type AuditEvent string

const (
	AuditDocumentCreated         AuditEvent = "document.created"
	AuditDocumentSent            AuditEvent = "document.sent"
	AuditDocumentViewed          AuditEvent = "document.viewed"
	AuditSignatureSigned         AuditEvent = "signature.signed"
	AuditSignatureDeclined       AuditEvent = "signature.declined"
	AuditSignatureDelegated      AuditEvent = "signature.delegated"
	AuditSignatureReminded       AuditEvent = "signature.reminded"
	AuditSignatureAccessVerified AuditEvent = "signature.access_verified"
	AuditDocumentCompleted       AuditEvent = "document.completed"
	AuditDocumentVoided          AuditEvent = "document.voided"
	AuditDocumentResent          AuditEvent = "document.resent"
	AuditDocumentExpired         AuditEvent = "document.expired"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusDispatched OutboxStatus = "DISPATCHED"
	OutboxStatusFailed     OutboxStatus = "FAILED"
)
