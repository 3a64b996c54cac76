package mailer

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/SeakMengs/AutoSign/internal/config"
	"go.uber.org/zap"
)

type MailTemplateFile string

const (
	FROM_NAME = "AutoSign"
	MAX_RETRY = 3

	SigningRequestTemplate      MailTemplateFile = "signing_request.tmpl"
	SigningReminderTemplate     MailTemplateFile = "signing_reminder.tmpl"
	DocumentVoidedTemplate      MailTemplateFile = "document_voided.tmpl"
	SignatureDeclinedTemplate   MailTemplateFile = "signature_declined.tmpl"
	DocumentCompletedTemplate   MailTemplateFile = "document_completed.tmpl"
	DocumentCompletedCCTemplate MailTemplateFile = "document_completed_cc.tmpl"
)

//go:embed "templates"
var FS embed.FS

type Client interface {
	Send(templateFile MailTemplateFile, toName, toEmail string, data any) (int, error)
}

// NewClient picks the provider named by MAIL_PROVIDER.
func NewClient(cfg config.MailConfig, isProduction bool, logger *zap.SugaredLogger) (Client, error) {
	switch strings.ToLower(cfg.PROVIDER) {
	case "", "sendgrid":
		return NewSendgrid(cfg.SEND_GRID.API_KEY, cfg.FROM_EMAIL, isProduction, logger), nil
	case "gmail":
		return NewGmailMailer(cfg.GMAIL_USERNAME, cfg.GMAIL_APP_PASSWORD, logger), nil
	}

	return nil, fmt.Errorf("unknown mail provider %q", cfg.PROVIDER)
}

// ErrRender marks a template that cannot be rendered with the given data.
// Retrying such a mail never helps.
var ErrRender = errors.New("render mail template")

// Render executes the "subject" and "body" blocks of a template.
func Render(templateFile MailTemplateFile, data any) (string, string, error) {
	tmpl, err := template.ParseFS(FS, "templates/layout.tmpl", "templates/"+string(templateFile))
	if err != nil {
		return "", "", fmt.Errorf("%w: parse %s: %w", ErrRender, templateFile, err)
	}

	subject := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(subject, "subject", data); err != nil {
		return "", "", fmt.Errorf("%w: execute subject of %s: %w", ErrRender, templateFile, err)
	}

	body := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(body, "layout", data); err != nil {
		return "", "", fmt.Errorf("%w: execute body of %s: %w", ErrRender, templateFile, err)
	}

	return strings.TrimSpace(subject.String()), body.String(), nil
}
