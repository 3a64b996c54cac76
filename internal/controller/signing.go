package controller

import (
	"errors"
	"net/http"

	"github.com/SeakMengs/AutoSign/internal/util"
	"github.com/SeakMengs/AutoSign/internal/workflow"
	"github.com/gin-gonic/gin"
)

// SigningController serves the anonymous signer endpoints. The signing token
// in the path is the only credential.
type SigningController struct {
	*baseController
	signing signingService
}

func signingToken(ctx *gin.Context) (string, bool) {
	token := ctx.Params.ByName("token")
	if token == "" {
		util.ResponseFailed(ctx, http.StatusBadRequest, "Signing token is required", util.GenerateErrorMessages(errors.New("signing token is required"), "token"), nil)
		return "", false
	}
	return token, true
}

func (sc SigningController) GetSigningContext(ctx *gin.Context) {
	token, ok := signingToken(ctx)
	if !ok {
		return
	}

	res, err := sc.signing.GetSigningContext(ctx, token)
	if err != nil {
		util.ResponseAppError(ctx, err)
		return
	}

	util.ResponseSuccess(ctx, res)
}

func (sc SigningController) Submit(ctx *gin.Context) {
	var body workflow.SubmitInput

	token, ok := signingToken(ctx)
	if !ok {
		return
	}

	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "Invalid request", util.GenerateErrorMessages(err), nil)
		return
	}
	body.IPAddress = ctx.ClientIP()
	body.UserAgent = ctx.Request.UserAgent()

	res, err := sc.signing.Submit(ctx, token, body)
	if err != nil {
		sc.app.Logger.Debugf("Failed to submit signature: %v", err)
		util.ResponseAppError(ctx, err)
		return
	}

	util.ResponseSuccess(ctx, res)
}

func (sc SigningController) Decline(ctx *gin.Context) {
	type Request struct {
		Reason string `json:"reason" binding:"cmax=500"`
	}
	var body Request

	token, ok := signingToken(ctx)
	if !ok {
		return
	}

	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&body); err != nil {
			util.ResponseFailed(ctx, http.StatusBadRequest, "Invalid request", util.GenerateErrorMessages(err), nil)
			return
		}
	}

	if err := sc.signing.Decline(ctx, token, body.Reason); err != nil {
		util.ResponseAppError(ctx, err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"declined": true,
	})
}

func (sc SigningController) Delegate(ctx *gin.Context) {
	var body workflow.DelegateInput

	token, ok := signingToken(ctx)
	if !ok {
		return
	}

	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "Invalid request", util.GenerateErrorMessages(err), nil)
		return
	}

	res, err := sc.signing.Delegate(ctx, token, body)
	if err != nil {
		util.ResponseAppError(ctx, err)
		return
	}

	util.ResponseSuccess(ctx, res)
}

func (sc SigningController) VerifyAccessCode(ctx *gin.Context) {
	type Request struct {
		AccessCode string `json:"accessCode" binding:"required,strNotEmpty"`
	}
	var body Request

	token, ok := signingToken(ctx)
	if !ok {
		return
	}

	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "Invalid request", util.GenerateErrorMessages(err), nil)
		return
	}

	res, err := sc.signing.VerifyAccessCode(ctx, token, body.AccessCode)
	if err != nil {
		util.ResponseAppError(ctx, err)
		return
	}

	util.ResponseSuccess(ctx, res)
}
