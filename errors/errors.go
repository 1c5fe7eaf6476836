package errors

import (
	"fmt"
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
)

// Error is the error type every service returns to the http layer.
// Status is the http status the handler answers with, Code is a stable
// machine readable reason.
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Code    string `json:"code,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on Code so callers can compare against the sentinels below
// even when the message was customised.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Code != "" || t.Code != "" {
		return e.Code == t.Code
	}
	return e.Message == t.Message && e.Status == t.Status
}

func New(message string, status int) *Error {
	return &Error{
		Message: message,
		Status:  status,
	}
}

func newCoded(code, message string, status int) *Error {
	return &Error{Message: message, Status: status, Code: code}
}

const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeForbidden  = "FORBIDDEN"
	CodeCapacity   = "CAPACITY_EXCEEDED"
	CodeStorage    = "STORAGE_FAILURE"
)

func Validation(message string) *Error {
	return newCoded(CodeValidation, message, http.StatusBadRequest)
}

func NotFound(message string) *Error {
	return newCoded(CodeNotFound, message, http.StatusNotFound)
}

// Forbidden carries the policy reason as its code, e.g. NOT_ADMIN.
func Forbidden(code, message string) *Error {
	if code == "" {
		code = CodeForbidden
	}
	return newCoded(code, message, http.StatusForbidden)
}

// Rejected is a client error carrying a specific reason code.
func Rejected(code, message string) *Error {
	return newCoded(code, message, http.StatusBadRequest)
}

func Capacity(message string) *Error {
	return newCoded(CodeCapacity, message, http.StatusBadRequest)
}

// Storage hides the underlying cause; log it before calling this.
func Storage(action string) *Error {
	return newCoded(CodeStorage, fmt.Sprintf("unable to %s", action), http.StatusInternalServerError)
}

var (
	ErrNotFound            = New("not found", http.StatusNotFound)
	ErrInternalServerError = New("internal server error", http.StatusInternalServerError)
	ErrBadRequest          = New("bad request", http.StatusBadRequest)
	ErrUnauthorized        = New("unauthorized", http.StatusUnauthorized)
	ErrTooManyRequests     = New("too many requests", http.StatusTooManyRequests)
)

// ErrorHandler answers requests rejected by the rate limiter.
func ErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"message": "",
		"data":    nil,
		"errors":  fmt.Sprintf("too many requests, try again in %s", time.Until(info.ResetTime).Round(time.Second)),
		"status":  http.StatusText(http.StatusTooManyRequests),
	})
}
