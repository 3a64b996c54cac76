package mailer

import (
	"encoding/json"
	"fmt"
)

type SigningRequestData struct {
	SignerName    string
	DocumentTitle string
	SenderEmail   string
	SigningURL    string
	ExpiresAt     string
	// Set when the signer received the request through delegation
	DelegatedBy string
}

type DocumentVoidedData struct {
	SignerName    string
	DocumentTitle string
	Reason        string
}

type SignatureDeclinedData struct {
	DocumentTitle string
	SignerName    string
	SignerEmail   string
	Reason        string
}

type DocumentCompletedData struct {
	RecipientName string
	DocumentTitle string
	OwnerEmail    string
	CompletedAt   string
	SignerCount   int
}

// DecodeTemplateData turns a queued JSON payload back into the struct its template expects.
func DecodeTemplateData(templateFile MailTemplateFile, raw []byte) (any, error) {
	var data any
	switch templateFile {
	case SigningRequestTemplate, SigningReminderTemplate:
		data = &SigningRequestData{}
	case DocumentVoidedTemplate:
		data = &DocumentVoidedData{}
	case SignatureDeclinedTemplate:
		data = &SignatureDeclinedData{}
	case DocumentCompletedTemplate, DocumentCompletedCCTemplate:
		data = &DocumentCompletedData{}
	default:
		return nil, fmt.Errorf("unknown mail template %q", templateFile)
	}

	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", templateFile, err)
	}

	return data, nil
}
