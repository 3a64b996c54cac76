package util

import (
	"errors"
	"net/http"

	"github.com/SeakMengs/AutoSign/internal/apperror"
	constant "github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Errors  any    `json:"errors,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func BuildResponseSuccess(data any) Response {
	return Response{
		Success: true,
		Message: constant.REQUEST_SUCCESSFUL,
		Data:    data,
	}
}

func ResponseSuccess(ctx *gin.Context, data any) {
	if data == nil {
		data = gin.H{}
	}

	ctx.JSON(http.StatusOK, BuildResponseSuccess(data))
	ctx.Abort()
}

func BuildResponseFailed(message string, err any, data any) Response {
	if message == "" {
		message = constant.REQUEST_UNSUCCESSFUL
	}

	// Sometimes we define err type any but err type is error
	if e, ok := err.(error); ok {
		err = GenerateErrorMessages(e)
	}

	if err == nil {
		err = gin.H{}
	}

	if data == nil {
		data = gin.H{}
	}

	return Response{
		Success: false,
		Message: message,
		Errors:  err,
		Data:    data,
	}
}

func ResponseFailed(ctx *gin.Context, code int, message string, err any, data any) {
	ctx.JSON(code, BuildResponseFailed(message, err, data))
	ctx.Abort()
}

// ResponseAppError writes the failure envelope for any error coming out of the workflow.
// Typed application errors keep their status and expose their code under data.code,
// validation errors become 400 and anything else is reported as 500 without details.
func ResponseAppError(ctx *gin.Context, err error) {
	if appErr, ok := apperror.As(err); ok {
		data := gin.H{"code": appErr.Code.String()}
		for k, v := range appErr.Details {
			data[k] = v
		}

		ResponseFailed(ctx, appErr.Code.HTTPStatus(), appErr.Message, []ApiError{{Field: appErr.Code.String(), Message: appErr.Error()}}, data)
		return
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		ResponseFailed(ctx, http.StatusBadRequest, "", err, gin.H{"code": apperror.CodeValidation.String()})
		return
	}

	ResponseFailed(ctx, http.StatusInternalServerError, "Internal server error", []ApiError{{Field: "Unknown", Message: "internal server error"}}, nil)
}
