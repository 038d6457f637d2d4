package service

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers classify with errors.Is.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotFound         = errors.New("not found")
)

// Specialised not-found errors.
var (
	ErrNoActiveHeat       = fmt.Errorf("%w: no active heat", ErrNotFound)
	ErrUnknownScenario    = fmt.Errorf("%w: unknown scenario", ErrNotFound)
	ErrUnknownAction      = fmt.Errorf("%w: unknown action", ErrNotFound)
	ErrHeatRecordNotFound = fmt.Errorf("%w: heat record", ErrNotFound)
)

func invalidParam(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}
