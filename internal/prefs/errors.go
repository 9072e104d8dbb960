package prefs

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrContextInvalidated means the backend can no longer be used, e.g.
	// because it was closed while the page was still running.
	ErrContextInvalidated = errors.New("extension context invalidated")
	ErrUnknownKey         = errors.New("unknown preference key")
	ErrInvalidValue       = errors.New("invalid preference value")
)

// PersistenceError is returned when a write cannot be stored.
type PersistenceError struct {
	Op   string
	Keys []Key
	Err  error
}

func (e *PersistenceError) Error() string {
	keys := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		keys[i] = string(k)
	}
	slices.Sort(keys)
	return fmt.Sprintf("%s preferences [%s]: %v", e.Op, strings.Join(keys, ","), e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError reports a key or value outside the schema.
type ValidationError struct {
	Key   Key
	Value Value
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %q for %q", e.Err, e.Value, e.Key)
	}
	return fmt.Sprintf("%s: %q", e.Err, e.Key)
}

func (e *ValidationError) Unwrap() error { return e.Err }
