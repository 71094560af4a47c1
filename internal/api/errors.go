package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/gossip/internal/auth"
	"github.com/npezzotti/gossip/internal/blobstore"
	"github.com/npezzotti/gossip/internal/database"
	"github.com/npezzotti/gossip/internal/membership"
	"github.com/npezzotti/gossip/internal/server"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newApiError(code int) *ApiError {
	return &ApiError{
		StatusCode: code,
		Message:    lower(http.StatusText(code)),
	}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest)
}

// NewValidationError is a bad request carrying the reason the input was
// rejected.
func NewValidationError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    err.Error(),
		Err:        err,
	}
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound)
}

func NewInternalServerError(err error) *ApiError {
	e := newApiError(http.StatusInternalServerError)
	e.Err = err
	return e
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized)
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden)
}

func NewConflictError() *ApiError {
	return newApiError(http.StatusConflict)
}

func NewBadGatewayError(err error) *ApiError {
	e := newApiError(http.StatusBadGateway)
	e.Err = err
	return e
}

func NewServiceUnavailableError() *ApiError {
	return newApiError(http.StatusServiceUnavailable)
}

// errorFrom maps an error returned by the chat server or the store to the
// response sent to the client.
func errorFrom(err error) *ApiError {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return NewUnauthorizedError()
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, membership.ErrTargetNotMember):
		return NewNotFoundError()
	case errors.Is(err, database.ErrConstraintViolation):
		return NewConflictError()
	case errors.Is(err, server.ErrNotChatMember),
		errors.Is(err, server.ErrNotMessageSender),
		errors.Is(err, membership.ErrForbidden),
		errors.Is(err, membership.ErrNotMember):
		return NewForbiddenError()
	case server.IsValidationError(err):
		return NewValidationError(err)
	case errors.Is(err, server.ErrShuttingDown):
		return NewServiceUnavailableError()
	case errors.Is(err, blobstore.ErrUploadFailed):
		return NewBadGatewayError(err)
	default:
		return NewInternalServerError(err)
	}
}
