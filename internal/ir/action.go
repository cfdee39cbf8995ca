package ir

import "fmt"

// ActionKind tags an Action.
type ActionKind string

// UpdateCache is the only action kind: merge a delta, or record an error.
const UpdateCache ActionKind = "UPDATE_CACHE"

// Action is the store's only mutation vector.
//
// When IsError is false, Payload is merged into the entity table. When
// IsError is true, Err is recorded as error state and Payload is ignored.
type Action struct {
	Kind    ActionKind
	Payload Delta
	Err     error
	IsError bool
}

// UpdateAction builds a successful UPDATE_CACHE action.
func UpdateAction(payload Delta) Action {
	return Action{Kind: UpdateCache, Payload: payload}
}

// ErrorAction builds an error-flagged UPDATE_CACHE action.
func ErrorAction(err error) Action {
	return Action{Kind: UpdateCache, Err: err, IsError: true}
}

// Validate checks the action shape.
func (a Action) Validate() error {
	if a.Kind != UpdateCache {
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	if a.IsError && a.Err == nil {
		return fmt.Errorf("error action without error value")
	}
	return nil
}
