package utils

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// AppError is a domain failure carrying the HTTP status it maps to
type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(code int, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func NewValidationError(format string, args ...any) *AppError {
	return NewAppError(http.StatusBadRequest, format, args...)
}

func NewUnauthorizedError(format string, args ...any) *AppError {
	return NewAppError(http.StatusUnauthorized, format, args...)
}

func NewForbiddenError(format string, args ...any) *AppError {
	return NewAppError(http.StatusForbidden, format, args...)
}

func NewNotFoundError(format string, args ...any) *AppError {
	return NewAppError(http.StatusNotFound, format, args...)
}

func NewConflictError(format string, args ...any) *AppError {
	return NewAppError(http.StatusConflict, format, args...)
}

func NewLockedError(format string, args ...any) *AppError {
	return NewAppError(http.StatusLocked, format, args...)
}

// AsAppError unwraps err into an *AppError when it is one
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsConflict reports whether err is a Conflict-class domain error
func IsConflict(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == http.StatusConflict
}

// TranslateDBError converts the gorm sentinel errors produced with
// TranslateError enabled into domain errors. Other errors pass through.
// resource names the entity in the resulting message ("Sender").
func TranslateDBError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NewNotFoundError("%s not found", resource)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return NewConflictError("%s already exists", resource)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return NewValidationError("Referenced resource does not exist")
	}
	return err
}
