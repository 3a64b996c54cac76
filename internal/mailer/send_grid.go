package mailer

import (
	"fmt"
	"time"

	"github.com/SeakMengs/AutoSign/internal/util"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type SendGridMailer struct {
	fromEmail string
	client    *sendgrid.Client
	isSandBox bool
	logger    *zap.SugaredLogger
}

func NewSendgrid(apiKey string, fromEmail string, isProduction bool, logger *zap.SugaredLogger) *SendGridMailer {
	// For unit test
	if logger == nil {
		logger = util.NewLogger("test")
	}

	client := sendgrid.NewSendClient(apiKey)

	return &SendGridMailer{
		fromEmail: fromEmail,
		client:    client,
		// Sandbox mode is only used to validate your request. The email will never be delivered while this feature is enabled!
		isSandBox: !isProduction,
		logger:    logger,
	}
}

func (m SendGridMailer) Send(templateFile MailTemplateFile, toName, toEmail string, data any) (int, error) {
	from := mail.NewEmail(FROM_NAME, m.fromEmail)
	to := mail.NewEmail(toName, toEmail)

	subject, body, err := Render(templateFile, data)
	if err != nil {
		m.logger.Errorw("failed to render email template", "error", err, "templateFile", templateFile)
		return -1, err
	}

	message := mail.NewSingleEmail(from, subject, to, "", body)

	message.SetMailSettings(&mail.MailSettings{
		SandboxMode: &mail.Setting{
			Enable: &m.isSandBox,
		},
	})

	var lastErr error
	for i := 0; i < MAX_RETRY; i++ {
		response, err := m.client.Send(message)
		if err != nil {
			lastErr = err
			// linear backoff
			time.Sleep(time.Second * time.Duration(i+1))
			continue
		}

		if response.StatusCode >= 500 {
			lastErr = fmt.Errorf("sendgrid responded %d: %s", response.StatusCode, response.Body)
			time.Sleep(time.Second * time.Duration(i+1))
			continue
		}

		if response.StatusCode >= 400 {
			m.logger.Errorw("sendgrid rejected email", "status", response.StatusCode, "toEmail", toEmail, "templateFile", templateFile)
			return response.StatusCode, fmt.Errorf("sendgrid responded %d: %s", response.StatusCode, response.Body)
		}

		m.logger.Infow("email sent successfully", "toEmail", toEmail, "templateFile", templateFile)
		return response.StatusCode, nil
	}

	m.logger.Errorf("Failed to send email after %d attempt, error: %v", MAX_RETRY, lastErr)

	return -1, fmt.Errorf("failed to send email after %d attempt: %w", MAX_RETRY, lastErr)
}
