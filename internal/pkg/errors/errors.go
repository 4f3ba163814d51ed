package errors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalid         = errors.New("invalid")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal")
	ErrReservedFolder  = errors.New("reserved folder")
	ErrUploadExpired   = errors.New("upload session expired")
	ErrUploadConfirmed = errors.New("upload already confirmed")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
