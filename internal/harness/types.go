package harness

import (
	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/journal"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Journal holds every dispatch in order. It is the trace compared
	// against golden files.
	Journal []journal.Entry `json:"journal"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Cache is the final entity table.
	Cache ir.EntityTable `json:"cache"`

	// LastError is the final error state, empty when there is none.
	LastError string `json:"last_error,omitempty"`

	// Dispatches counts store dispatches.
	Dispatches int64 `json:"dispatches"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Journal: []journal.Entry{},
		Errors:  []string{},
		Cache:   ir.EntityTable{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
