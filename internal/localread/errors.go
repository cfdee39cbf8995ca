package localread

import (
	"errors"
	"fmt"
)

// QueryError reports a document that cannot be evaluated.
type QueryError struct {
	Message string
	Line    int
	Column  int
}

func (e *QueryError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("local read %d:%d: %s", e.Line, e.Column, e.Message)
	}
	return "local read: " + e.Message
}

// IsQueryError reports whether err wraps a *QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
