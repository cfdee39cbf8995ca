package runtime

import (
	"errors"
	"fmt"
)

// CascadeError reports a cache updater that failed after its mutation's
// primary dispatch. It is dispatched as an error action; the remaining
// updaters of the same mutation still run.
type CascadeError struct {
	// OperationID identifies the mutation.
	OperationID string

	// Index is the updater's position in Mutation.UpdateCache.
	Index int

	ParentType string
	ParentID   string

	// Err is the resolver's error, or a *PanicError when it panicked.
	Err error
}

func (e *CascadeError) Error() string {
	if e.ParentType != "" {
		return fmt.Sprintf("cascade update %d (%s:%s) for operation %s: %v",
			e.Index, e.ParentType, e.ParentID, e.OperationID, e.Err)
	}
	return fmt.Sprintf("cascade update %d for operation %s: %v", e.Index, e.OperationID, e.Err)
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}

// IsCascadeError reports whether err wraps a *CascadeError.
func IsCascadeError(err error) bool {
	var ce *CascadeError
	return errors.As(err, &ce)
}

// PanicError carries a recovered panic value.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
