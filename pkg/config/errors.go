package config

import (
	"errors"
	"fmt"
)

// ErrSiteNotFound is returned when a mutation targets an unknown site id.
var ErrSiteNotFound = errors.New("site not found")

// StoreError reports a failed configuration or statistics write.
// It is meant to be surfaced to the user.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ValidationError reports a site rule rejected before it reaches the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
