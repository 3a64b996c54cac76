package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/SeakMengs/AutoSign/internal/auth"
	"github.com/SeakMengs/AutoSign/internal/util"
	"github.com/SeakMengs/AutoSign/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type DocumentController struct {
	*baseController
	documents documentService
}

const (
	// 25 MiB
	MAX_DOCUMENT_SIZE = 25 << 20

	ErrDocumentIdRequired = "document id is required"
)

// CreateDocument accepts multipart form data: title, file (PDF) and an
// optional JSON encoded fields array.
func (dc DocumentController) CreateDocument(ctx *gin.Context) {
	type Request struct {
		Title  string `form:"title" binding:"required,strNotEmpty,cmax=255"`
		Fields string `form:"fields"`
	}
	var body Request

	user, err := dc.getAuthUser(ctx)
	if err != nil {
		util.ResponseFailed(ctx, http.StatusUnauthorized, "Unauthorized", util.GenerateErrorMessages(err), nil)
		return
	}

	if err := ctx.ShouldBind(&body); err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "Invalid request", util.GenerateErrorMessages(err), nil)
		return
	}

	var fields []workflow.FieldInput
	if strings.TrimSpace(body.Fields) != "" {
		if err := json.Unmarshal([]byte(body.Fields), &fields); err != nil {
			util.ResponseFailed(ctx, http.StatusBadRequest, "Invalid fields", util.GenerateErrorMessages(errors.New("fields must be a JSON array"), "fields"), nil)
			return
		}
		if err := binding.Validator.ValidateStruct(fields); err != nil {
			util.ResponseFailed(ctx, http.StatusBadRequest, "Invalid fields", util.GenerateErrorMessages(err), nil)
			return
		}
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "No document uploaded", util.GenerateErrorMessages(errors.New("file is required"), "file"), nil)
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		util.ResponseFailed(ctx, http.StatusBadRequest, "Invalid file type", util.GenerateErrorMessages(errors.New("only PDF documents are accepted"), "file"), nil)
		return
	}
	if fileHeader.Size > MAX_DOCUMENT_SIZE {
		util.ResponseFailed(ctx, http.StatusBadRequest, "File too large", util.GenerateErrorMessages(errors.New("document exceeds the 25 MiB limit"), "file"), nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		dc.app.Logger.Errorf("Failed to open uploaded document: %v", err)
		util.ResponseFailed(ctx, http.StatusInternalServerError, "Failed to read document", util.GenerateErrorMessages(err), nil)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, MAX_DOCUMENT_SIZE+1))
	if err != nil {
		dc.app.Logger.Errorf("Failed to read uploaded document: %v", err)
		util.ResponseFailed(ctx, http.StatusInternalServerError, "Failed to read document", util.GenerateErrorMessages(err), nil)
		return
	}

	doc, err := dc.documents.CreateDraft(ctx, *user, workflow.CreateDraftInput{
		Title:    body.Title,
		FileName: fileHeader.Filename,
		Content:  content,
		Fields:   fields,
	})
	if err != nil {
		dc.app.Logger.Errorf("Failed to create document: %v", err)
		util.ResponseAppError(ctx, err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"document": doc,
	})
}

func (dc DocumentController) GetDocument(ctx *gin.Context) {
	user, documentId, ok := dc.ownerAndDocument(ctx)
	if !ok {
		return
	}

	view, err := dc.documents.Get(ctx, *user, documentId)
	if err != nil {
		util.ResponseAppError(ctx, err)
		return
	}

	util.ResponseSuccess(ctx, view)
}

func (dc DocumentController) GetAuditTrail(ctx *gin.Context) {
	user, documentId, ok := dc.ownerAndDocument(ctx)
	if !ok {
		return
	}

	entries, err := dc.documents.AuditTrail(ctx, *user, documentId)
	if err != nil {
		util.ResponseAppError(ctx, err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"auditTrail": entries,
	})
}

func (dc DocumentController) SendDocument(ctx *gin.Context) {
	var body workflow.SendInput

	user, documentId, ok := dc.ownerAndDocument(ctx)
	if !ok {
		return
	}

	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "Invalid request", util.GenerateErrorMessages(err), nil)
		return
	}

	res, err := dc.documents.Send(ctx, *user, documentId, body)
	if err != nil {
		dc.app.Logger.Errorf("Failed to send document %s: %v", documentId, err)
		util.ResponseAppError(ctx, err)
		return
	}

	util.ResponseSuccess(ctx, res)
}

func (dc DocumentController) VoidDocument(ctx *gin.Context) {
	type Request struct {
		Reason string `json:"reason" binding:"cmax=500"`
	}
	var body Request

	user, documentId, ok := dc.ownerAndDocument(ctx)
	if !ok {
		return
	}

	// body is optional
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&body); err != nil {
			util.ResponseFailed(ctx, http.StatusBadRequest, "Invalid request", util.GenerateErrorMessages(err), nil)
			return
		}
	}

	if err := dc.documents.Void(ctx, *user, documentId, body.Reason); err != nil {
		util.ResponseAppError(ctx, err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"voided": true,
	})
}

func (dc DocumentController) ResendDocument(ctx *gin.Context) {
	user, documentId, ok := dc.ownerAndDocument(ctx)
	if !ok {
		return
	}

	newId, err := dc.documents.Resend(ctx, *user, documentId)
	if err != nil {
		util.ResponseAppError(ctx, err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"newDocumentId": newId,
	})
}

func (dc DocumentController) DeleteDocument(ctx *gin.Context) {
	user, documentId, ok := dc.ownerAndDocument(ctx)
	if !ok {
		return
	}

	confirm, _ := strconv.ParseBool(ctx.DefaultQuery("confirm", "false"))
	if err := dc.documents.Delete(ctx, *user, documentId, confirm); err != nil {
		util.ResponseAppError(ctx, err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"deleted": true,
	})
}

func (dc DocumentController) RemindSigner(ctx *gin.Context) {
	user, documentId, ok := dc.ownerAndDocument(ctx)
	if !ok {
		return
	}

	signatureId := ctx.Params.ByName("signatureId")
	if signatureId == "" {
		util.ResponseFailed(ctx, http.StatusBadRequest, "Signature id is required", util.GenerateErrorMessages(errors.New("signature id is required"), "signatureId"), nil)
		return
	}

	res, err := dc.documents.Remind(ctx, *user, documentId, signatureId)
	if err != nil {
		util.ResponseAppError(ctx, err)
		return
	}

	util.ResponseSuccess(ctx, res)
}

// ownerAndDocument writes the failure response itself and reports false when
// the request has no authenticated owner or document id.
func (dc DocumentController) ownerAndDocument(ctx *gin.Context) (*auth.JWTPayload, string, bool) {
	user, err := dc.getAuthUser(ctx)
	if err != nil {
		dc.app.Logger.Debugf("Failed to get auth user: %v", err)
		util.ResponseFailed(ctx, http.StatusUnauthorized, "Unauthorized", util.GenerateErrorMessages(err), nil)
		return nil, "", false
	}

	documentId := ctx.Params.ByName("documentId")
	if documentId == "" {
		util.ResponseFailed(ctx, http.StatusBadRequest, "Document id is required", util.GenerateErrorMessages(errors.New(ErrDocumentIdRequired), "documentId"), nil)
		return nil, "", false
	}

	return user, documentId, true
}
