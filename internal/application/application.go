package application

import (
	"context"
	"errors"
	"fmt"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

var (
	// ErrValidation marks malformed client input.
	ErrValidation = errors.New("validation")
	// ErrPersistence marks a storage failure the caller did not cause.
	ErrPersistence = errors.New("persistence failure")
)

func NewValidation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// WrapPersistence tags err as a storage failure unless it already is one.
func WrapPersistence(err error) error {
	if err == nil || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
