package workflow

import (
	"context"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/mailer"
	"github.com/SeakMengs/AutoSign/internal/model"
)

// completeIfAllSigned flips the document to SIGNED once every signature is
// SIGNED. The PENDING->SIGNED update is conditional, so of several concurrent
// last signers only one writes the audit entry and queues the owner and CC
// emails. The bool reports whether the document is fully signed, whoever won.
func (e *Engine) completeIfAllSigned(ctx context.Context, doc *model.Document) (bool, error) {
	allSigned := false

	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		sigs, err := e.signatures.ListByDocument(ctx, doc.ID)
		if err != nil {
			return err
		}
		if !AllSigned(sigs) {
			return nil
		}
		allSigned = true

		now := e.now()
		won, err := e.documents.TransitionStatus(ctx, doc.ID, constant.DocumentStatusPending, constant.DocumentStatusSigned, model.DocumentStatusChange{
			CompletedAt: &now,
		})
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		doc.Status = constant.DocumentStatusSigned
		doc.CompletedAt = &now

		if err := e.appendAudit(ctx, doc.ID, constant.AuditDocumentCompleted, "", map[string]any{
			"signatureCount": len(sigs),
		}); err != nil {
			return err
		}

		data := mailer.DocumentCompletedData{
			RecipientName: doc.OwnerEmail,
			DocumentTitle: doc.Title,
			OwnerEmail:    doc.OwnerEmail,
			CompletedAt:   formatTime(&now),
			SignerCount:   len(sigs),
		}
		if err := e.enqueueMail(ctx, mailer.DocumentCompletedTemplate, "", doc.OwnerEmail, data); err != nil {
			return err
		}

		return e.fanOutCC(ctx, doc, data)
	})

	return allSigned, err
}

// fanOutCC notifies every CC recipient not notified yet. The stamp and the
// outbox row share the transaction so a recipient is queued exactly once.
func (e *Engine) fanOutCC(ctx context.Context, doc *model.Document, data mailer.DocumentCompletedData) error {
	ccs, err := e.ccs.ListByDocument(ctx, doc.ID)
	if err != nil {
		return err
	}

	for _, cc := range ccs {
		if cc.NotifiedAt != nil {
			continue
		}

		won, err := e.ccs.MarkNotified(ctx, cc.ID, e.now())
		if err != nil {
			return err
		}
		if !won {
			continue
		}

		ccData := data
		ccData.RecipientName = cc.Name
		if ccData.RecipientName == "" {
			ccData.RecipientName = cc.Email
		}
		if err := e.enqueueMail(ctx, mailer.DocumentCompletedCCTemplate, cc.Name, cc.Email, ccData); err != nil {
			return err
		}
	}
	return nil
}
