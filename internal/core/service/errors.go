package service

import (
	"errors"

	"github.com/momoworks/momo-ops/internal/apperr"
	"github.com/momoworks/momo-ops/internal/port"
)

var (
	ErrDuplicateRequest          = apperr.ConflictErr("duplicate request")
	ErrInsufficientStock         = apperr.ConflictErr("insufficient stock")
	ErrInsufficientLeave         = apperr.InvalidErr("insufficient leave balance", nil)
	ErrRecalibrationWindowClosed = apperr.ForbiddenErr("recalibration window is closed")
	ErrForbidden                 = apperr.ForbiddenErr("not allowed")
	ErrStaleVersion              = apperr.ConflictErr("record was modified, reload and retry")
	ErrInvalidTransition         = apperr.ConflictErr("status change not allowed")
	ErrNotPending                = apperr.ConflictErr("only pending entries can be changed")
)

// storeErr maps repository sentinels to classified errors. what names the
// record in the public message.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, port.ErrNotFound):
		return apperr.NotFoundErr(what + " not found")
	case errors.Is(err, port.ErrDuplicate):
		return apperr.ConflictErr(what + " already exists")
	case errors.Is(err, port.ErrOptimisticLock):
		return ErrStaleVersion
	}
	return apperr.Wrap(err)
}

func notFound(what string) error {
	return apperr.NotFoundErr(what + " not found")
}

func invalid(field, msg string) error {
	return apperr.InvalidErr("validation failed", map[string]string{field: msg})
}

func invalidFields(fields map[string]string) error {
	return apperr.InvalidErr("validation failed", fields)
}

func conflict(msg string) error {
	return apperr.ConflictErr(msg)
}
