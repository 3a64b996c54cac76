package workflow

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/SeakMengs/AutoSign/internal/apperror"
	"github.com/SeakMengs/AutoSign/internal/auth"
	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/mailer"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// memStore is an in-memory stand-in for the gorm repositories. Transactions
// snapshot the whole store and restore it on error.
type memStore struct {
	mu sync.Mutex

	docs    map[string]model.Document
	sigs    map[string]model.Signature
	fields  map[string]model.Field
	ccs     map[string]model.CCRecipient
	files   map[string]model.File
	audits  []model.AuditLog
	outbox  []model.OutboxMessage
	created map[string]int
	seq     int

	uploaded map[string][]byte
	removed  []string
}

type memSnapshot struct {
	docs    map[string]model.Document
	sigs    map[string]model.Signature
	fields  map[string]model.Field
	ccs     map[string]model.CCRecipient
	files   map[string]model.File
	audits  []model.AuditLog
	outbox  []model.OutboxMessage
	created map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		docs:     map[string]model.Document{},
		sigs:     map[string]model.Signature{},
		fields:   map[string]model.Field{},
		ccs:      map[string]model.CCRecipient{},
		files:    map[string]model.File{},
		created:  map[string]int{},
		uploaded: map[string][]byte{},
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return memSnapshot{
		docs:    cloneMap(s.docs),
		sigs:    cloneMap(s.sigs),
		fields:  cloneMap(s.fields),
		ccs:     cloneMap(s.ccs),
		files:   cloneMap(s.files),
		audits:  append([]model.AuditLog(nil), s.audits...),
		outbox:  append([]model.OutboxMessage(nil), s.outbox...),
		created: cloneMap(s.created),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs, s.sigs, s.fields, s.ccs, s.files = snap.docs, snap.sigs, snap.fields, snap.ccs, snap.files
	s.audits, s.outbox, s.created = snap.audits, snap.outbox, snap.created
}

// assignID mimics BaseModel.BeforeCreate and remembers insertion order.
func (s *memStore) assignID(bm *model.BaseModel) {
	if bm.ID == "" {
		bm.ID = uuid.NewString()
	}
	s.seq++
	s.created[bm.ID] = s.seq
}

type txMarker struct{}

type memTx struct{ store *memStore }

func (m memTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}

	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

type memDocuments struct{ *memStore }

func (s memDocuments) Create(ctx context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignID(&doc.BaseModel)
	stored := *doc
	stored.File = model.File{}
	s.docs[doc.ID] = stored
	return nil
}

func (s memDocuments) withFile(doc model.Document) *model.Document {
	doc.File = s.files[doc.FileID]
	return &doc
}

func (s memDocuments) GetByID(ctx context.Context, id string) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s.withFile(doc), nil
}

func (s memDocuments) GetByIDForOwner(ctx context.Context, id, ownerID string) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.withFile(doc), nil
}

func (s memDocuments) TransitionStatus(ctx context.Context, id string, from, to constant.DocumentStatus, change model.DocumentStatusChange) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok || doc.Status != from {
		return false, nil
	}

	doc.Status = to
	if change.ExpiresAt != nil {
		doc.ExpiresAt = change.ExpiresAt
	}
	if change.VoidedAt != nil {
		doc.VoidedAt = change.VoidedAt
		doc.VoidReason = change.VoidReason
	}
	if change.CompletedAt != nil {
		doc.CompletedAt = change.CompletedAt
	}
	s.docs[id] = doc
	return true, nil
}

func (s memDocuments) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, id)
	for k, v := range s.sigs {
		if v.DocumentID == id {
			delete(s.sigs, k)
		}
	}
	for k, v := range s.fields {
		if v.DocumentID == id {
			delete(s.fields, k)
		}
	}
	for k, v := range s.ccs {
		if v.DocumentID == id {
			delete(s.ccs, k)
		}
	}
	kept := s.audits[:0]
	for _, a := range s.audits {
		if a.DocumentID != id {
			kept = append(kept, a)
		}
	}
	s.audits = kept
	return nil
}

func (s memDocuments) CountByFileID(ctx context.Context, fileID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, d := range s.docs {
		if d.FileID == fileID {
			n++
		}
	}
	return n, nil
}

func (s memDocuments) ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Document
	for _, d := range s.docs {
		if d.Status == constant.DocumentStatusPending && d.ExpiresAt != nil && d.ExpiresAt.Before(now) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memSignatures struct{ *memStore }

func (s memSignatures) CreateBatch(ctx context.Context, sigs []model.Signature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range sigs {
		s.assignID(&sigs[i].BaseModel)
		s.sigs[sigs[i].ID] = sigs[i]
	}
	return nil
}

func (s memSignatures) GetByID(ctx context.Context, id string) (*model.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.sigs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &sig, nil
}

func (s memSignatures) ListByDocument(ctx context.Context, documentID string) ([]model.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Signature
	for _, sig := range s.sigs {
		if sig.DocumentID == documentID {
			out = append(out, sig)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SigningOrder != out[j].SigningOrder {
			return out[i].SigningOrder < out[j].SigningOrder
		}
		return s.created[out[i].ID] < s.created[out[j].ID]
	})
	return out, nil
}

func (s memSignatures) update(id string, cond func(model.Signature) bool, apply func(*model.Signature)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.sigs[id]
	if !ok || !cond(sig) {
		return false
	}
	apply(&sig)
	s.sigs[id] = sig
	return true
}

func isPending(sig model.Signature) bool {
	return sig.Status == constant.SignatureStatusPending
}

func (s memSignatures) MarkSigned(ctx context.Context, id string, signed model.SignedSignature) (bool, error) {
	return s.update(id, isPending, func(sig *model.Signature) {
		sig.Status = constant.SignatureStatusSigned
		sig.SignatureData = signed.SignatureData
		sig.SignatureType = signed.SignatureType
		sig.SignedAt = &signed.SignedAt
		sig.IPAddress = signed.IPAddress
		sig.UserAgent = signed.UserAgent
	}), nil
}

func (s memSignatures) MarkDeclined(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	return s.update(id, isPending, func(sig *model.Signature) {
		sig.Status = constant.SignatureStatusDeclined
		sig.DeclineReason = reason
		sig.DeclinedAt = &at
	}), nil
}

func (s memSignatures) DeclinePending(ctx context.Context, documentID, reason string, at time.Time) ([]model.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Signature
	for id, sig := range s.sigs {
		if sig.DocumentID != documentID || sig.Status != constant.SignatureStatusPending {
			continue
		}
		sig.Status = constant.SignatureStatusDeclined
		sig.DeclineReason = reason
		sig.DeclinedAt = &at
		s.sigs[id] = sig
		out = append(out, sig)
	}
	return out, nil
}

func (s memSignatures) Delegate(ctx context.Context, id, oldToken string, d model.Delegation) (bool, error) {
	return s.update(id, func(sig model.Signature) bool {
		return isPending(sig) && sig.Token == oldToken
	}, func(sig *model.Signature) {
		sig.SignerEmail = d.NewEmail
		sig.SignerName = d.NewName
		sig.DelegatedToEmail = d.NewEmail
		sig.DelegatedToName = d.NewName
		sig.DelegatedAt = &d.DelegatedAt
		sig.Token = d.NewToken
		sig.InvitedAt = d.InvitedAt
		sig.AccessCodeVerifiedAt = nil
	}), nil
}

func (s memSignatures) MarkInvited(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.update(id, func(sig model.Signature) bool {
		return isPending(sig) && sig.InvitedAt == nil
	}, func(sig *model.Signature) {
		sig.InvitedAt = &at
	}), nil
}

func (s memSignatures) StampReminder(ctx context.Context, id string, at, cutoff time.Time) (bool, error) {
	return s.update(id, func(sig model.Signature) bool {
		return isPending(sig) && (sig.ReminderSentAt == nil || !sig.ReminderSentAt.After(cutoff))
	}, func(sig *model.Signature) {
		sig.ReminderSentAt = &at
	}), nil
}

func (s memSignatures) MarkAccessVerified(ctx context.Context, id string, at time.Time) error {
	s.update(id, func(model.Signature) bool { return true }, func(sig *model.Signature) {
		sig.AccessCodeVerifiedAt = &at
	})
	return nil
}

type memFields struct{ *memStore }

func (s memFields) CreateBatch(ctx context.Context, fields []model.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range fields {
		s.assignID(&fields[i].BaseModel)
		s.fields[fields[i].ID] = fields[i]
	}
	return nil
}

func (s memFields) ListByDocument(ctx context.Context, documentID string) ([]model.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Field
	for _, f := range s.fields {
		if f.DocumentID == documentID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.created[out[i].ID] < s.created[out[j].ID] })
	return out, nil
}

func (s memFields) BindSignerIndex(ctx context.Context, documentID string, signerIndex int, signatureID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, f := range s.fields {
		if f.DocumentID == documentID && f.SignerIndex != nil && *f.SignerIndex == signerIndex {
			f.SignatureID = signatureID
			s.fields[id] = f
		}
	}
	return nil
}

func (s memFields) SetValue(ctx context.Context, documentID, fieldID, signatureID, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fields[fieldID]
	if !ok || f.DocumentID != documentID || (f.SignatureID != "" && f.SignatureID != signatureID) {
		return false, nil
	}
	f.Value = value
	f.SignatureID = signatureID
	s.fields[fieldID] = f
	return true, nil
}

type memCCs struct{ *memStore }

func (s memCCs) CreateBatch(ctx context.Context, ccs []model.CCRecipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range ccs {
		s.assignID(&ccs[i].BaseModel)
		s.ccs[ccs[i].ID] = ccs[i]
	}
	return nil
}

func (s memCCs) ListByDocument(ctx context.Context, documentID string) ([]model.CCRecipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.CCRecipient
	for _, cc := range s.ccs {
		if cc.DocumentID == documentID {
			out = append(out, cc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.created[out[i].ID] < s.created[out[j].ID] })
	return out, nil
}

func (s memCCs) MarkNotified(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cc, ok := s.ccs[id]
	if !ok || cc.NotifiedAt != nil {
		return false, nil
	}
	cc.NotifiedAt = &at
	s.ccs[id] = cc
	return true, nil
}

type memAudit struct{ *memStore }

func (s memAudit) Append(ctx context.Context, entry *model.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignID(&entry.BaseModel)
	s.audits = append(s.audits, *entry)
	return nil
}

func (s memAudit) ListByDocument(ctx context.Context, documentID string) ([]model.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.AuditLog
	for _, a := range s.audits {
		if a.DocumentID == documentID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memOutbox struct{ *memStore }

func (s memOutbox) Enqueue(ctx context.Context, msg *model.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignID(&msg.BaseModel)
	s.outbox = append(s.outbox, *msg)
	return nil
}

type memFiles struct{ *memStore }

func (s memFiles) Create(ctx context.Context, file *model.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignID(&file.BaseModel)
	s.files[file.ID] = *file
	return nil
}

func (s memFiles) Delete(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files, fileID)
	return nil
}

type memObjects struct{ *memStore }

func (s memObjects) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploaded[objectName] = data
	return "test-bucket", nil
}

func (s memObjects) GeneratePresignedUrl(ctx context.Context, bucket, objectName string) (string, error) {
	return "https://storage.test/" + bucket + "/" + objectName, nil
}

func (s memObjects) RemoveObject(ctx context.Context, bucket, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removed = append(s.removed, objectName)
	return nil
}

type fakePDF struct {
	pages int
	err   error
}

func (f fakePDF) PageCount(data []byte) (int, error) {
	return f.pages, f.err
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	engine *Engine
	store  *memStore
	clock  *testClock
	codec  *auth.SigningTokenCodec
	owner  auth.JWTPayload
}

func newHarness(t *testing.T, tweak ...func(*config.SigningConfig)) *harness {
	t.Helper()

	cfg := config.SigningConfig{
		BaseURL:              "https://sign.example.com",
		TokenSecret:          "test-signing-secret",
		TokenGrace:           30 * 24 * time.Hour,
		ReminderCooldown:     24 * time.Hour,
		DefaultExpiresInDays: 30,
	}
	for _, fn := range tweak {
		fn(&cfg)
	}

	store := newMemStore()
	clock := &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	codec := auth.NewSigningTokenCodec(cfg).WithClock(clock.Now)

	engine := NewEngine(cfg, zap.NewNop().Sugar(), Dependencies{
		Tx:           memTx{store},
		Documents:    memDocuments{store},
		Signatures:   memSignatures{store},
		Fields:       memFields{store},
		CCRecipients: memCCs{store},
		Audit:        memAudit{store},
		Outbox:       memOutbox{store},
		Files:        memFiles{store},
		Storage:      memObjects{store},
		PDF:          fakePDF{pages: 2},
		Tokens:       codec,
		Now:          clock.Now,
	})

	return &harness{
		engine: engine,
		store:  store,
		clock:  clock,
		codec:  codec,
		owner:  auth.JWTPayload{ID: "owner-1", Email: "owner@example.com"},
	}
}

func intPtr(i int) *int { return &i }

func requireCode(t *testing.T, err error, code apperror.Code) {
	t.Helper()

	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok, "expected an app error, got %v", err)
	require.Equal(t, code, appErr.Code, appErr.Message)
}

func (h *harness) draft(t *testing.T, fields ...FieldInput) *model.Document {
	t.Helper()

	doc, err := h.engine.CreateDraft(context.Background(), h.owner, CreateDraftInput{
		Title:    "Service Agreement",
		FileName: "agreement.pdf",
		Content:  []byte("%PDF-1.7 test content"),
		Fields:   fields,
	})
	require.NoError(t, err)
	return doc
}

func signer(email string, order int) SignerInput {
	return SignerInput{Email: email, Name: email[:1], Order: intPtr(order)}
}

func (h *harness) send(t *testing.T, docID string, in SendInput) *SendResult {
	t.Helper()

	res, err := h.engine.Send(context.Background(), h.owner, docID, in)
	require.NoError(t, err)
	return res
}

func (h *harness) tokenOf(t *testing.T, res *SendResult, email string) string {
	t.Helper()

	for _, link := range res.Signatures {
		if link.SignerEmail == email {
			return h.signature(t, link.SignatureID).Token
		}
	}
	t.Fatalf("no signer %s", email)
	return ""
}

func (h *harness) signature(t *testing.T, id string) model.Signature {
	t.Helper()

	sig, err := memSignatures{h.store}.GetByID(context.Background(), id)
	require.NoError(t, err)
	return *sig
}

func (h *harness) document(t *testing.T, id string) model.Document {
	t.Helper()

	doc, err := memDocuments{h.store}.GetByID(context.Background(), id)
	require.NoError(t, err)
	return *doc
}

func (h *harness) mails(template mailer.MailTemplateFile, toEmail string) int {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	n := 0
	for _, m := range h.store.outbox {
		if m.TemplateFile == string(template) && m.ToEmail == toEmail {
			n++
		}
	}
	return n
}

func (h *harness) auditCount(documentID string, event constant.AuditEvent) int {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	n := 0
	for _, a := range h.store.audits {
		if a.DocumentID == documentID && a.EventType == event {
			n++
		}
	}
	return n
}

func (h *harness) sign(t *testing.T, token string) *SubmitResult {
	t.Helper()

	res, err := h.engine.Submit(context.Background(), token, SubmitInput{SignatureData: "data:image/png;base64,AAAA", SignatureType: "drawn"})
	require.NoError(t, err)
	return res
}

func modelSigned(at time.Time) model.SignedSignature {
	return model.SignedSignature{SignatureData: "data", SignatureType: "drawn", SignedAt: at}
}
