package workflow

import (
	"context"
	"time"

	"github.com/SeakMengs/AutoSign/internal/apperror"
	"github.com/SeakMengs/AutoSign/internal/auth"
	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/mailer"
)

type RemindResult struct {
	Reminded       bool      `json:"reminded"`
	ReminderSentAt time.Time `json:"reminderSentAt"`
	NextAvailable  time.Time `json:"nextAvailable"`
}

func cooldownError(nextAvailable time.Time) error {
	return apperror.New(apperror.CodeReminderCooldown, "a reminder was sent recently").
		WithDetail("nextAvailable", nextAvailable)
}

// Remind re-sends the signing link to a pending signer, at most once per cooldown.
func (e *Engine) Remind(ctx context.Context, owner auth.JWTPayload, documentID, signatureID string) (*RemindResult, error) {
	doc, err := e.ownedDocument(ctx, owner, documentID)
	if err != nil {
		return nil, err
	}

	sig, err := e.signatures.GetByID(ctx, signatureID)
	if err != nil {
		return nil, notFound(err, "signature not found")
	}
	if sig.DocumentID != doc.ID {
		return nil, apperror.New(apperror.CodeNotFound, "signature not found")
	}

	now := e.now()
	if doc.Status != constant.DocumentStatusPending || doc.IsPastExpiry(now) {
		return nil, apperror.Newf(apperror.CodeInvalidStatus, "document is %s", doc.Status)
	}
	if sig.Status != constant.SignatureStatusPending {
		return nil, apperror.Newf(apperror.CodeInvalidStatus, "signature is %s", sig.Status)
	}

	// a signer whose stage has not opened has no link to be reminded of yet
	sigs, err := e.signatures.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if !CanAct(sigs, *sig) || sig.InvitedAt == nil {
		return nil, apperror.New(apperror.CodeInvalidStatus, "signer is waiting for previous signers")
	}

	cooldown := e.cfg.ReminderCooldown
	if sig.ReminderSentAt != nil && now.Sub(*sig.ReminderSentAt) < cooldown {
		return nil, cooldownError(sig.ReminderSentAt.Add(cooldown))
	}

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		won, err := e.signatures.StampReminder(ctx, sig.ID, now, now.Add(-cooldown))
		if err != nil {
			return err
		}
		if !won {
			// lost to a concurrent reminder or the signer acted meanwhile
			current, err := e.signatures.GetByID(ctx, sig.ID)
			if err != nil {
				return err
			}
			if current.Status != constant.SignatureStatusPending {
				return apperror.Newf(apperror.CodeInvalidStatus, "signature is %s", current.Status)
			}
			next := now.Add(cooldown)
			if current.ReminderSentAt != nil {
				next = current.ReminderSentAt.Add(cooldown)
			}
			return cooldownError(next)
		}

		if err := e.enqueueMail(ctx, mailer.SigningReminderTemplate, sig.SignerName, sig.SignerEmail, e.signingRequestData(doc, *sig)); err != nil {
			return err
		}

		return e.appendAudit(ctx, doc.ID, constant.AuditSignatureReminded, owner.ID, map[string]any{
			"signatureId": sig.ID,
			"signerEmail": sig.SignerEmail,
		})
	})
	if err != nil {
		return nil, err
	}

	return &RemindResult{Reminded: true, ReminderSentAt: now, NextAvailable: now.Add(cooldown)}, nil
}
