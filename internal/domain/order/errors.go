package order

import "errors"

var (
	ErrNotFound          = errors.New("order: not found")
	ErrConflict          = errors.New("order: conflict")
	ErrInvalidTransition = errors.New("order: invalid status transition")
	ErrInvalidActor      = errors.New("order: actor may not perform this change")
	ErrUnknownStatus     = errors.New("order: unknown status")
	ErrUnknownRole       = errors.New("order: unknown role")
)
