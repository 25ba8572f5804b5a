package spanguard

import (
	"errors"
	"fmt"
)

var (
	// ErrProtection is matched by every *ProtectionError.
	ErrProtection = errors.New("span protection failed")
	// ErrRestoration is matched by every *RestorationError.
	ErrRestoration = errors.New("span restoration failed")
)

// ProtectionError reports a generated token that collides with text already
// present in the document. It is never retried.
type ProtectionError struct {
	Token  string
	Reason string
}

func (e *ProtectionError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrProtection, e.Token, e.Reason)
}

func (e *ProtectionError) Unwrap() error { return ErrProtection }

// RestorationError reports a token that could not be resolved after
// translation. Field names the record field being translated, when known.
type RestorationError struct {
	Token  string
	Field  string
	Reason string
}

func (e *RestorationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%v: field %s: %s: %s", ErrRestoration, e.Field, e.Token, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrRestoration, e.Token, e.Reason)
}

func (e *RestorationError) Unwrap() error { return ErrRestoration }
