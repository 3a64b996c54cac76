package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	appcontext "github.com/SeakMengs/AutoSign/internal/app_context"
	"github.com/SeakMengs/AutoSign/internal/auth"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/SeakMengs/AutoSign/internal/workflow"
	"github.com/gin-gonic/gin"
)

type baseController struct {
	app *appcontext.Application
}

type documentService interface {
	CreateDraft(ctx context.Context, owner auth.JWTPayload, in workflow.CreateDraftInput) (*model.Document, error)
	Get(ctx context.Context, owner auth.JWTPayload, documentID string) (*workflow.DocumentView, error)
	AuditTrail(ctx context.Context, owner auth.JWTPayload, documentID string) ([]workflow.AuditEntry, error)
	Send(ctx context.Context, owner auth.JWTPayload, documentID string, in workflow.SendInput) (*workflow.SendResult, error)
	Void(ctx context.Context, owner auth.JWTPayload, documentID, reason string) error
	Resend(ctx context.Context, owner auth.JWTPayload, documentID string) (string, error)
	Delete(ctx context.Context, owner auth.JWTPayload, documentID string, confirm bool) error
	Remind(ctx context.Context, owner auth.JWTPayload, documentID, signatureID string) (*workflow.RemindResult, error)
}

type signingService interface {
	GetSigningContext(ctx context.Context, token string) (*workflow.SigningContext, error)
	Submit(ctx context.Context, token string, in workflow.SubmitInput) (*workflow.SubmitResult, error)
	Decline(ctx context.Context, token, reason string) error
	Delegate(ctx context.Context, token string, in workflow.DelegateInput) (*workflow.DelegateResult, error)
	VerifyAccessCode(ctx context.Context, token, code string) (*workflow.VerifyAccessCodeResult, error)
}

type Controller struct {
	Index    *IndexController
	Document *DocumentController
	Signing  *SigningController
}

func newBaseController(app *appcontext.Application) *baseController {
	return &baseController{app: app}
}

func NewController(app *appcontext.Application) *Controller {
	bc := newBaseController(app)

	return &Controller{
		Index:    &IndexController{baseController: bc},
		Document: &DocumentController{baseController: bc, documents: app.Workflow},
		Signing:  &SigningController{baseController: bc, signing: app.Workflow},
	}
}

func (b *baseController) getAuthUser(ctx *gin.Context) (*auth.JWTPayload, error) {
	user, exists := ctx.Get("user")
	if !exists {
		return nil, errors.New("user not found in context")
	}

	if payload, ok := user.(auth.JWTPayload); ok {
		return &payload, nil
	}

	jsonUser, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}

	var authUser *auth.JWTPayload
	err = json.Unmarshal(jsonUser, &authUser)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	if authUser == nil || authUser.ID == "" {
		return nil, errors.New("user not found in context")
	}

	return authUser, nil
}
