package runner

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchCollection marks a collection that could not be retrieved
	ErrFetchCollection = errors.New("failed to fetch collection")

	// ErrFetchEnvironment marks an environment that could not be retrieved
	ErrFetchEnvironment = errors.New("failed to fetch environment")

	// ErrEngine marks a hard failure reported by the run engine
	ErrEngine = errors.New("collection run failed")
)

// FetchError wraps a transport or API failure while retrieving a document
type FetchError struct {
	Kind error
	ID   string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.ID)
}

// Unwrap exposes both the taxonomy value and the original cause
func (e *FetchError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Cause returns the underlying transport error
func (e *FetchError) Cause() error {
	return e.Err
}
