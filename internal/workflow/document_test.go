package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SeakMengs/AutoSign/internal/apperror"
	"github.com/SeakMengs/AutoSign/internal/auth"
	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/mailer"
	"github.com/SeakMengs/AutoSign/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signatureField(signerIndex int) FieldInput {
	return FieldInput{Type: constant.FieldTypeSignature, Page: 1, X: 10, Y: 10, Width: 120, Height: 40, SignerIndex: intPtr(signerIndex)}
}

func TestCreateDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	doc := h.draft(t, signatureField(0))

	assert.Equal(t, constant.DocumentStatusDraft, doc.Status)
	assert.Equal(t, h.owner.ID, doc.OwnerID)
	assert.Equal(t, util.SHA256Hex([]byte("%PDF-1.7 test content")), doc.ContentHash)
	assert.Equal(t, "test-bucket", doc.File.BucketName)
	assert.Contains(t, h.store.uploaded, doc.File.UniqueFileName)
	assert.Equal(t, 1, h.auditCount(doc.ID, constant.AuditDocumentCreated))

	fields, err := memFields{h.store}.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.True(t, fields[0].Required)
	assert.Empty(t, fields[0].SignatureID)
}

func TestCreateDraft_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		in    CreateDraftInput
		pdfOK bool
	}{
		{
			name:  "blank title",
			in:    CreateDraftInput{Title: "  ", FileName: "a.pdf", Content: []byte("%PDF-")},
			pdfOK: true,
		},
		{
			name:  "empty file",
			in:    CreateDraftInput{Title: "T", FileName: "a.pdf"},
			pdfOK: true,
		},
		{
			name: "not a pdf",
			in:   CreateDraftInput{Title: "T", FileName: "a.png", Content: []byte("\x89PNG")},
		},
		{
			name: "field past last page",
			in: CreateDraftInput{Title: "T", FileName: "a.pdf", Content: []byte("%PDF-"), Fields: []FieldInput{
				{Type: constant.FieldTypeText, Page: 3, Width: 10, Height: 10},
			}},
			pdfOK: true,
		},
		{
			name: "unknown field type",
			in: CreateDraftInput{Title: "T", FileName: "a.pdf", Content: []byte("%PDF-"), Fields: []FieldInput{
				{Type: "stamp", Page: 1, Width: 10, Height: 10},
			}},
			pdfOK: true,
		},
		{
			name: "zero sized field",
			in: CreateDraftInput{Title: "T", FileName: "a.pdf", Content: []byte("%PDF-"), Fields: []FieldInput{
				{Type: constant.FieldTypeDate, Page: 1, Width: 0, Height: 10},
			}},
			pdfOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if !tt.pdfOK {
				h.engine.pdf = fakePDF{err: errors.New("file is not a PDF")}
			}

			_, err := h.engine.CreateDraft(context.Background(), h.owner, tt.in)
			requireCode(t, err, apperror.CodeValidation)
			assert.Empty(t, h.store.docs)
			assert.Empty(t, h.store.uploaded)
		})
	}
}

func TestSend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.draft(t, signatureField(0), signatureField(1))

	res := h.send(t, doc.ID, SendInput{
		Signers: []SignerInput{
			{Email: "a@example.com", Name: "Alice"},
			{Email: "b@example.com", Name: "Bob"},
			{Email: "c@example.com", Name: "Carol"},
		},
		ExpiresInDays: 7,
	})

	wantExpiry := h.clock.Now().Add(7 * 24 * time.Hour)
	assert.Equal(t, constant.DocumentStatusPending, res.Status)
	assert.Equal(t, wantExpiry, res.ExpiresAt)
	require.Len(t, res.Signatures, 3)

	stored := h.document(t, doc.ID)
	assert.Equal(t, constant.DocumentStatusPending, stored.Status)
	require.NotNil(t, stored.ExpiresAt)
	assert.Equal(t, wantExpiry, *stored.ExpiresAt)

	tokens := map[string]bool{}
	for i, link := range res.Signatures {
		sig := h.signature(t, link.SignatureID)
		assert.Equal(t, constant.SignatureStatusPending, sig.Status)
		assert.Equal(t, wantExpiry, sig.TokenExpiresAt)
		assert.Equal(t, i+1, sig.SigningOrder, "order defaults to the list position")
		assert.Equal(t, util.SigningURL("https://sign.example.com", sig.Token), link.SigningURL)

		claims, err := h.codec.VerifySigningToken(sig.Token)
		require.NoError(t, err)
		assert.Equal(t, sig.ID, claims.SignatureID)
		assert.Equal(t, doc.ID, claims.DocumentID)

		tokens[sig.Token] = true
	}
	assert.Len(t, tokens, 3)

	// sequential by default, only the first stage is emailed
	assert.Equal(t, 1, h.mails(mailer.SigningRequestTemplate, "a@example.com"))
	assert.Equal(t, 0, h.mails(mailer.SigningRequestTemplate, "b@example.com"))
	assert.Equal(t, 0, h.mails(mailer.SigningRequestTemplate, "c@example.com"))

	fields, err := memFields{h.store}.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Signatures[0].SignatureID, fields[0].SignatureID)
	assert.Equal(t, res.Signatures[1].SignatureID, fields[1].SignatureID)

	assert.Equal(t, 1, h.auditCount(doc.ID, constant.AuditDocumentSent))
}

func TestSend_DefaultExpiryAndParallelStage(t *testing.T) {
	h := newHarness(t)
	doc := h.draft(t)

	res := h.send(t, doc.ID, SendInput{
		Signers: []SignerInput{signer("a@example.com", 1), signer("b@example.com", 1)},
	})

	assert.Equal(t, h.clock.Now().Add(30*24*time.Hour), res.ExpiresAt)
	assert.Equal(t, 1, h.mails(mailer.SigningRequestTemplate, "a@example.com"))
	assert.Equal(t, 1, h.mails(mailer.SigningRequestTemplate, "b@example.com"))
}

func TestSend_Rejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("no signers", func(t *testing.T) {
		doc := h.draft(t)
		_, err := h.engine.Send(ctx, h.owner, doc.ID, SendInput{})
		requireCode(t, err, apperror.CodeValidation)
	})

	t.Run("field bound past the signer list", func(t *testing.T) {
		doc := h.draft(t, signatureField(1))
		_, err := h.engine.Send(ctx, h.owner, doc.ID, SendInput{Signers: []SignerInput{signer("a@example.com", 1)}})
		requireCode(t, err, apperror.CodeValidation)
		assert.Equal(t, constant.DocumentStatusDraft, h.document(t, doc.ID).Status)
	})

	t.Run("someone else's document", func(t *testing.T) {
		doc := h.draft(t)
		stranger := auth.JWTPayload{ID: "owner-2", Email: "other@example.com"}
		_, err := h.engine.Send(ctx, stranger, doc.ID, SendInput{Signers: []SignerInput{signer("a@example.com", 1)}})
		requireCode(t, err, apperror.CodeNotFound)
	})

	t.Run("already sent", func(t *testing.T) {
		doc := h.draft(t)
		h.send(t, doc.ID, SendInput{Signers: []SignerInput{signer("a@example.com", 1)}})
		_, err := h.engine.Send(ctx, h.owner, doc.ID, SendInput{Signers: []SignerInput{signer("a@example.com", 1)}})
		requireCode(t, err, apperror.CodeInvalidStatus)
	})

	t.Run("expiry out of range", func(t *testing.T) {
		for _, days := range []int{-1, MAX_EXPIRES_IN_DAYS + 1, 200000} {
			doc := h.draft(t)
			_, err := h.engine.Send(ctx, h.owner, doc.ID, SendInput{
				Signers:       []SignerInput{signer("a@example.com", 1)},
				ExpiresInDays: days,
			})
			requireCode(t, err, apperror.CodeValidation)
			assert.Equal(t, constant.DocumentStatusDraft, h.document(t, doc.ID).Status)
		}
	})
}

func TestSend_LongestExpiry(t *testing.T) {
	h := newHarness(t)
	doc := h.draft(t)

	res := h.send(t, doc.ID, SendInput{
		Signers:       []SignerInput{signer("a@example.com", 1)},
		ExpiresInDays: MAX_EXPIRES_IN_DAYS,
	})

	assert.Equal(t, h.clock.Now().AddDate(0, 0, MAX_EXPIRES_IN_DAYS), res.ExpiresAt)
	assert.True(t, res.ExpiresAt.After(h.clock.Now()))

	sctx, err := h.engine.GetSigningContext(context.Background(), h.tokenOf(t, res, "a@example.com"))
	require.NoError(t, err)
	assert.Equal(t, doc.ID, sctx.DocumentID)
}

func TestSend_AccessCodes(t *testing.T) {
	h := newHarness(t)
	doc := h.draft(t)

	res := h.send(t, doc.ID, SendInput{Signers: []SignerInput{
		{Email: "a@example.com", Name: "A", AccessCode: "4821"},
		{Email: "b@example.com", Name: "B", GenerateAccessCode: true},
		{Email: "c@example.com", Name: "C"},
	}})

	a := h.signature(t, res.Signatures[0].SignatureID)
	assert.Empty(t, res.Signatures[0].AccessCode, "a chosen code is not echoed back")
	assert.NotEqual(t, "4821", a.AccessCode)
	assert.True(t, util.CompareAccessCode(a.AccessCode, "4821"))

	generated := res.Signatures[1].AccessCode
	assert.Len(t, generated, util.ACCESS_CODE_LENGTH)
	assert.True(t, util.CompareAccessCode(h.signature(t, res.Signatures[1].SignatureID).AccessCode, generated))

	assert.False(t, h.signature(t, res.Signatures[2].SignatureID).HasAccessCode())
}

func TestGetAndAuditTrail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.draft(t, signatureField(0))
	h.send(t, doc.ID, SendInput{
		Signers: []SignerInput{signer("a@example.com", 1)},
		CC:      []CCInput{{Email: "cc@example.com", Name: "CC"}},
	})

	view, err := h.engine.Get(ctx, h.owner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constant.DocumentStatusPending, view.Document.Status)
	assert.Len(t, view.Signatures, 1)
	assert.Len(t, view.Fields, 1)
	assert.Len(t, view.CCRecipients, 1)
	assert.Equal(t, "https://storage.test/test-bucket/"+doc.File.UniqueFileName, view.DocumentURL)

	trail, err := h.engine.AuditTrail(ctx, h.owner, doc.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, constant.AuditDocumentCreated, trail[0].EventType)
	assert.Equal(t, constant.AuditDocumentSent, trail[1].EventType)
	assert.EqualValues(t, 1, trail[1].Metadata["signerCount"])

	stranger := auth.JWTPayload{ID: "owner-2"}
	_, err = h.engine.Get(ctx, stranger, doc.ID)
	requireCode(t, err, apperror.CodeNotFound)
	_, err = h.engine.AuditTrail(ctx, stranger, doc.ID)
	requireCode(t, err, apperror.CodeNotFound)
}

func TestVoid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.draft(t)
	res := h.send(t, doc.ID, SendInput{Signers: []SignerInput{signer("a@example.com", 1), signer("b@example.com", 1)}})
	tokenA := h.tokenOf(t, res, "a@example.com")
	tokenB := h.tokenOf(t, res, "b@example.com")

	h.sign(t, tokenA)
	require.NoError(t, h.engine.Void(ctx, h.owner, doc.ID, "Terms changed"))

	stored := h.document(t, doc.ID)
	assert.Equal(t, constant.DocumentStatusVoid, stored.Status)
	assert.Equal(t, "Terms changed", stored.VoidReason)
	require.NotNil(t, stored.VoidedAt)

	a := h.signature(t, res.Signatures[0].SignatureID)
	b := h.signature(t, res.Signatures[1].SignatureID)
	assert.Equal(t, constant.SignatureStatusSigned, a.Status, "signed signatures are kept")
	assert.Equal(t, constant.SignatureStatusDeclined, b.Status)
	assert.Equal(t, "Terms changed", b.DeclineReason)

	assert.Equal(t, 0, h.mails(mailer.DocumentVoidedTemplate, "a@example.com"))
	assert.Equal(t, 1, h.mails(mailer.DocumentVoidedTemplate, "b@example.com"))
	assert.Equal(t, 1, h.auditCount(doc.ID, constant.AuditDocumentVoided))

	for _, token := range []string{tokenA, tokenB} {
		_, err := h.engine.GetSigningContext(ctx, token)
		requireCode(t, err, apperror.CodeVoided)

		_, err = h.engine.Submit(ctx, token, SubmitInput{SignatureData: "data:image/png;base64,AAAA", SignatureType: "drawn"})
		requireCode(t, err, apperror.CodeVoided)

		requireCode(t, h.engine.Decline(ctx, token, "too late"), apperror.CodeVoided)

		_, err = h.engine.Delegate(ctx, token, DelegateInput{Email: "d@example.com", Name: "D"})
		requireCode(t, err, apperror.CodeVoided)
	}

	requireCode(t, h.engine.Void(ctx, h.owner, doc.ID, "again"), apperror.CodeInvalidStatus)

	// nothing above moved the void document or its signatures
	assert.Equal(t, constant.DocumentStatusVoid, h.document(t, doc.ID).Status)
	assert.Equal(t, constant.SignatureStatusSigned, h.signature(t, a.ID).Status)
	assert.Equal(t, constant.SignatureStatusDeclined, h.signature(t, b.ID).Status)
	assert.Equal(t, "Terms changed", h.signature(t, b.ID).DeclineReason)
	assert.Equal(t, 1, h.auditCount(doc.ID, constant.AuditDocumentVoided))
}

func TestVoid_OnlyPending(t *testing.T) {
	h := newHarness(t)
	doc := h.draft(t)

	requireCode(t, h.engine.Void(context.Background(), h.owner, doc.ID, ""), apperror.CodeInvalidStatus)
}

func TestResend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.draft(t, signatureField(0), FieldInput{Type: constant.FieldTypeText, Page: 2, Width: 50, Height: 10, SignerIndex: intPtr(0)})
	h.send(t, doc.ID, SendInput{Signers: []SignerInput{signer("a@example.com", 1)}})

	newID, err := h.engine.Resend(ctx, h.owner, doc.ID)
	require.NoError(t, err)

	source := h.document(t, doc.ID)
	assert.Equal(t, constant.DocumentStatusVoid, source.Status)
	assert.Equal(t, 1, h.mails(mailer.DocumentVoidedTemplate, "a@example.com"))
	assert.Equal(t, 1, h.auditCount(doc.ID, constant.AuditDocumentResent))

	trail, err := h.engine.AuditTrail(ctx, h.owner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, newID, trail[len(trail)-1].Metadata["newDocumentId"])

	copyDoc := h.document(t, newID)
	assert.Equal(t, constant.DocumentStatusDraft, copyDoc.Status)
	assert.Equal(t, source.FileID, copyDoc.FileID)
	assert.Equal(t, source.ContentHash, copyDoc.ContentHash)
	assert.Nil(t, copyDoc.ExpiresAt)

	fields, err := memFields{h.store}.ListByDocument(ctx, newID)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	for _, f := range fields {
		assert.Empty(t, f.SignatureID)
		assert.Empty(t, f.Value)
		require.NotNil(t, f.SignerIndex)
		assert.Equal(t, 0, *f.SignerIndex)
	}

	// the copy is a normal draft
	h.send(t, newID, SendInput{Signers: []SignerInput{signer("a@example.com", 1)}})
	assert.Equal(t, 2, h.mails(mailer.SigningRequestTemplate, "a@example.com"))
}

func TestResend_Draft(t *testing.T) {
	h := newHarness(t)
	doc := h.draft(t)

	_, err := h.engine.Resend(context.Background(), h.owner, doc.ID)
	requireCode(t, err, apperror.CodeInvalidStatus)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("draft removes the file", func(t *testing.T) {
		h := newHarness(t)
		doc := h.draft(t, signatureField(0))

		require.NoError(t, h.engine.Delete(ctx, h.owner, doc.ID, false))
		assert.Empty(t, h.store.docs)
		assert.Empty(t, h.store.fields)
		assert.Empty(t, h.store.files)
		assert.Equal(t, []string{doc.File.UniqueFileName}, h.store.removed)
	})

	t.Run("pending needs confirmation", func(t *testing.T) {
		h := newHarness(t)
		doc := h.draft(t)
		h.send(t, doc.ID, SendInput{Signers: []SignerInput{signer("a@example.com", 1)}})

		requireCode(t, h.engine.Delete(ctx, h.owner, doc.ID, false), apperror.CodeConfirmationRequired)
		require.NoError(t, h.engine.Delete(ctx, h.owner, doc.ID, true))
		assert.Empty(t, h.store.sigs)
	})

	t.Run("signed is kept", func(t *testing.T) {
		h := newHarness(t)
		doc := h.draft(t)
		res := h.send(t, doc.ID, SendInput{Signers: []SignerInput{signer("a@example.com", 1)}})
		h.sign(t, h.tokenOf(t, res, "a@example.com"))

		requireCode(t, h.engine.Delete(ctx, h.owner, doc.ID, true), apperror.CodeCannotDelete)
		assert.Equal(t, constant.DocumentStatusSigned, h.document(t, doc.ID).Status)
	})

	t.Run("shared file survives until the last document", func(t *testing.T) {
		h := newHarness(t)
		doc := h.draft(t)
		h.send(t, doc.ID, SendInput{Signers: []SignerInput{signer("a@example.com", 1)}})
		copyID, err := h.engine.Resend(ctx, h.owner, doc.ID)
		require.NoError(t, err)

		require.NoError(t, h.engine.Delete(ctx, h.owner, copyID, false))
		assert.Len(t, h.store.files, 1)
		assert.Empty(t, h.store.removed)

		require.NoError(t, h.engine.Delete(ctx, h.owner, doc.ID, false))
		assert.Empty(t, h.store.files)
		assert.Len(t, h.store.removed, 1)
	})

	t.Run("foreign document", func(t *testing.T) {
		h := newHarness(t)
		doc := h.draft(t)

		requireCode(t, h.engine.Delete(ctx, auth.JWTPayload{ID: "owner-2"}, doc.ID, true), apperror.CodeNotFound)
	})
}

func TestExpireOverdue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	short := h.draft(t)
	h.send(t, short.ID, SendInput{Signers: []SignerInput{signer("a@example.com", 1)}, ExpiresInDays: 1})
	long := h.draft(t)
	h.send(t, long.ID, SendInput{Signers: []SignerInput{signer("a@example.com", 1)}, ExpiresInDays: 10})

	h.clock.Advance(2 * 24 * time.Hour)

	n, err := h.engine.ExpireOverdue(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, constant.DocumentStatusExpired, h.document(t, short.ID).Status)
	assert.Equal(t, constant.DocumentStatusPending, h.document(t, long.ID).Status)
	assert.Equal(t, 1, h.auditCount(short.ID, constant.AuditDocumentExpired))

	n, err = h.engine.ExpireOverdue(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, n)
}
