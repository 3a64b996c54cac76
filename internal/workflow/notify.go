package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/mailer"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/SeakMengs/AutoSign/internal/util"
)

// enqueueMail writes the email to the outbox of the transaction in ctx.
func (e *Engine) enqueueMail(ctx context.Context, template mailer.MailTemplateFile, toName, toEmail string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", template, err)
	}

	return e.outbox.Enqueue(ctx, &model.OutboxMessage{
		TemplateFile: string(template),
		ToEmail:      toEmail,
		ToName:       toName,
		Payload:      string(payload),
		Status:       constant.OutboxStatusPending,
	})
}

func (e *Engine) signingRequestData(doc *model.Document, sig model.Signature) mailer.SigningRequestData {
	return mailer.SigningRequestData{
		SignerName:    sig.SignerName,
		DocumentTitle: doc.Title,
		SenderEmail:   doc.OwnerEmail,
		SigningURL:    util.SigningURL(e.cfg.BaseURL, sig.Token),
		ExpiresAt:     formatTime(&sig.TokenExpiresAt),
	}
}

// invite stamps invited_at and queues the signing request. A signer already
// invited by a concurrent request is skipped.
func (e *Engine) invite(ctx context.Context, doc *model.Document, sig model.Signature) error {
	won, err := e.signatures.MarkInvited(ctx, sig.ID, e.now())
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	return e.enqueueMail(ctx, mailer.SigningRequestTemplate, sig.SignerName, sig.SignerEmail, e.signingRequestData(doc, sig))
}

// notifyNextStage invites every not yet invited signer of the current stage.
// Must run inside a transaction so the stamp and the outbox row commit together.
func (e *Engine) notifyNextStage(ctx context.Context, doc *model.Document) error {
	sigs, err := e.signatures.ListByDocument(ctx, doc.ID)
	if err != nil {
		return err
	}

	for _, sig := range NextStage(sigs) {
		if sig.InvitedAt != nil {
			continue
		}
		if err := e.invite(ctx, doc, sig); err != nil {
			return err
		}
	}
	return nil
}
