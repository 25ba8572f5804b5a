package glossary

import (
	"errors"
	"fmt"
)

// ErrLookup is matched by every *LookupError.
var ErrLookup = errors.New("terminology lookup failed")

// LookupError reports a dictionary that could not be loaded. It is raised
// while building the dictionary at startup, never per request.
type LookupError struct {
	Path   string
	Term   string
	Reason string
	Err    error
}

func (e *LookupError) Error() string {
	msg := ErrLookup.Error()
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Term != "" {
		msg += fmt.Sprintf(": %q", e.Term)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LookupError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrLookup) hold while Unwrap still exposes the
// underlying cause.
func (e *LookupError) Is(target error) bool { return target == ErrLookup }
