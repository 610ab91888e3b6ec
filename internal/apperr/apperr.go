// Package apperr carries classified errors from services to transports.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Invalid      Kind = "invalid"
	NotFound     Kind = "not_found"
	Unauthorized Kind = "unauthorized"
	Forbidden    Kind = "forbidden"
	Conflict     Kind = "conflict"
	Internal     Kind = "internal"
)

type AppError struct {
	Kind      Kind
	PublicMsg string            // safe to show to the caller
	Fields    map[string]string // per-field validation messages
	Err       error             // internal cause, logged only
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.PublicMsg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.PublicMsg)
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

func InvalidErr(publicMsg string, fields map[string]string) *AppError {
	return &AppError{Kind: Invalid, PublicMsg: publicMsg, Fields: fields}
}

func NotFoundErr(publicMsg string) *AppError {
	return &AppError{Kind: NotFound, PublicMsg: publicMsg}
}

func UnauthorizedErr(publicMsg string) *AppError {
	return &AppError{Kind: Unauthorized, PublicMsg: publicMsg}
}

func ForbiddenErr(publicMsg string) *AppError {
	return &AppError{Kind: Forbidden, PublicMsg: publicMsg}
}

func ConflictErr(publicMsg string) *AppError {
	return &AppError{Kind: Conflict, PublicMsg: publicMsg}
}

// Wrap hides err behind a generic 500 message. Already classified errors
// pass through unchanged.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	return &AppError{Kind: Internal, PublicMsg: "unexpected error", Err: err}
}

func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Is reports whether err is an AppError of kind k.
func Is(err error, k Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == k
}

func HTTPStatus(err error) int {
	if ae, ok := As(err); ok {
		switch ae.Kind {
		case Invalid:
			return http.StatusBadRequest
		case Unauthorized:
			return http.StatusUnauthorized
		case Forbidden:
			return http.StatusForbidden
		case NotFound:
			return http.StatusNotFound
		case Conflict:
			return http.StatusConflict
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.PublicMsg != "" {
		return ae.PublicMsg
	}
	return "unexpected error"
}
