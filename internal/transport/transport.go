package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/graphcache/internal/ir"
)

// DefaultEndpoint is used when no endpoint is configured.
const DefaultEndpoint = "/graphql"

// Request is the operation sent to the endpoint. Exactly one of Query or
// Mutation is set.
type Request struct {
	Query    string    `json:"query,omitempty"`
	Mutation string    `json:"mutation,omitempty"`
	Params   ir.Object `json:"params,omitempty"`
}

// Document returns whichever document the request carries.
func (r Request) Document() string {
	if r.Mutation != "" {
		return r.Mutation
	}
	return r.Query
}

// IsMutation reports whether the request carries a mutation document.
func (r Request) IsMutation() bool {
	return r.Mutation != ""
}

// File is an upload attached to a mutation.
type File struct {
	// Field is the multipart field name. Defaults to file<index>.
	Field       string
	Name        string
	ContentType string
	Content     io.Reader
}

// GraphQLError is one entry of a response's errors array.
type GraphQLError struct {
	Message string         `json:"message"`
	Path    []any          `json:"path,omitempty"`
	Extra   map[string]any `json:"extensions,omitempty"`
}

// Response is a decoded GraphQL response.
type Response struct {
	Data   ir.Object      `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// Err returns a *ResponseError when the response carries errors and no data.
// A response with partial data and errors is not treated as a failure.
func (r *Response) Err() error {
	if r == nil {
		return &ResponseError{}
	}
	if len(r.Errors) > 0 && len(r.Data) == 0 {
		return &ResponseError{Errors: r.Errors}
	}
	return nil
}

// Transport performs one request against an endpoint.
type Transport interface {
	Request(ctx context.Context, endpoint string, req Request, files []File) (*Response, error)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, endpoint string, req Request, files []File) (*Response, error)

// Request calls f.
func (f Func) Request(ctx context.Context, endpoint string, req Request, files []File) (*Response, error) {
	return f(ctx, endpoint, req, files)
}

// DecodeResponse parses a response body of the form {"data": ..., "errors": [...]}.
func DecodeResponse(body []byte) (*Response, error) {
	var raw struct {
		Data   json.RawMessage `json:"data"`
		Errors []GraphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	resp := &Response{Errors: raw.Errors}
	data := strings.TrimSpace(string(raw.Data))
	if data == "" || data == "null" {
		return resp, nil
	}
	obj, err := ir.DecodeObject(raw.Data)
	if err != nil {
		return nil, fmt.Errorf("decode response data: %w", err)
	}
	resp.Data = obj
	return resp, nil
}
