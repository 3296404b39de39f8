// Package rpc holds the typed error model and input binding shared by the
// procedures the studio UI calls.
package rpc

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/newtube/backend/internal/models"
	"github.com/newtube/backend/pkg/response"
)

// Code is a procedure error code understood by the UI.
type Code string

const (
	CodeBadRequest          Code = "BAD_REQUEST"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeNotFound            Code = "NOT_FOUND"
	CodeTooManyRequests     Code = "TOO_MANY_REQUESTS"
	CodeInternalServerError Code = "INTERNAL_SERVER_ERROR"
)

// HTTPStatus maps a code to its transport status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is returned by procedures to signal a typed failure.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Errorf builds a typed error.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a typed error around a cause.
func Wrap(code Code, cause error, msg string) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// Abort renders err as an error envelope. Untyped errors become INTERNAL_SERVER_ERROR
// unless they wrap models.ErrNotFound.
func Abort(c *gin.Context, err error) {
	var rpcErr *Error
	switch {
	case errors.As(err, &rpcErr):
	case errors.Is(err, models.ErrNotFound):
		rpcErr = &Error{Code: CodeNotFound, Message: "not found"}
	default:
		rpcErr = &Error{Code: CodeInternalServerError, Message: "internal server error", Cause: err}
	}
	_ = c.Error(err)
	response.Fail(c, rpcErr.Code.HTTPStatus(), string(rpcErr.Code), rpcErr.Message)
	c.Abort()
}
