package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Code int

const (
	CodeNotFound Code = iota + 1
	CodeInvalidStatus
	CodeExpired
	CodeVoided
	CodeAlreadySigned
	CodeDeclined
	CodeAwaitingPreviousSigners
	CodeReminderCooldown
	CodeInvalidCode
	CodeCannotDelete
	CodeConfirmationRequired
	CodeValidation
)

func (c Code) String() string {
	switch c {
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeInvalidStatus:
		return "INVALID_STATUS"
	case CodeExpired:
		return "EXPIRED"
	case CodeVoided:
		return "VOIDED"
	case CodeAlreadySigned:
		return "ALREADY_SIGNED"
	case CodeDeclined:
		return "DECLINED"
	case CodeAwaitingPreviousSigners:
		return "AWAITING_PREVIOUS_SIGNERS"
	case CodeReminderCooldown:
		return "REMINDER_COOLDOWN"
	case CodeInvalidCode:
		return "INVALID_CODE"
	case CodeCannotDelete:
		return "CANNOT_DELETE"
	case CodeConfirmationRequired:
		return "CONFIRMATION_REQUIRED"
	case CodeValidation:
		return "VALIDATION"
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeExpired, CodeVoided:
		return http.StatusGone
	case CodeAwaitingPreviousSigners:
		return http.StatusConflict
	case CodeReminderCooldown:
		return http.StatusTooManyRequests
	case CodeInvalidCode:
		return http.StatusForbidden
	case CodeInvalidStatus, CodeAlreadySigned, CodeDeclined, CodeCannotDelete, CodeConfirmationRequired, CodeValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Error is the only error type the workflow hands back to callers on purpose.
// Anything else reaching the HTTP boundary is treated as an internal failure.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Message
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
