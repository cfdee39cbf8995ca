package transport

import (
	"errors"
	"fmt"
	"strings"
)

// TransportError reports a failed exchange with the endpoint: a network
// failure, a non-2xx status, an open circuit, or an unsupported request.
type TransportError struct {
	Endpoint   string
	StatusCode int // 0 when no HTTP status was received
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("transport")
	if e.Endpoint != "" {
		b.WriteString(" ")
		b.WriteString(e.Endpoint)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ResponseError is returned by Response.Err for a response that carries only
// GraphQL errors.
type ResponseError struct {
	Errors []GraphQLError
}

func (e *ResponseError) Error() string {
	if len(e.Errors) == 0 {
		return "graphql: empty response"
	}
	msgs := make([]string, len(e.Errors))
	for i, ge := range e.Errors {
		msgs[i] = ge.Message
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// IsResponseError reports whether err wraps a *ResponseError.
func IsResponseError(err error) bool {
	var re *ResponseError
	return errors.As(err, &re)
}
