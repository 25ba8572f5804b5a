package translate

import (
	"errors"
	"fmt"
)

// ErrService is matched by every *ServiceError.
var ErrService = errors.New("translation service failed")

// ServiceError wraps a failed generation call or a reply that could not be
// read as a translation result. The layer that returns it never retries.
type ServiceError struct {
	// Op is "translate" or "review".
	Op string
	// Reply holds the raw service output when the failure was a parse error.
	Reply string
	Err   error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrService, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Is(target error) bool { return target == ErrService }
