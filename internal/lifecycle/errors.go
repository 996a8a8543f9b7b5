package lifecycle

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrStaleSelection     = errors.New("booking no longer in snapshot")
	ErrTransitionInFlight = errors.New("transition already in progress")
	ErrProvider           = errors.New("provider error")
)

// ProviderError is returned when the data provider fails to persist a
// transition. The local snapshot is left untouched.
type ProviderError struct {
	Op        Action
	BookingID string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s booking %s: %v", e.Op, e.BookingID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrProvider) match any ProviderError.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// IsProviderError reports whether err is a provider failure.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
