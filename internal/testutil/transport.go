package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/transport"
)

// Call records one request seen by a StubTransport.
type Call struct {
	Endpoint string
	Request  transport.Request
	Files    []transport.File
}

// Reply is a scripted outcome. Err, when set, is returned instead of a response.
type Reply struct {
	Data   ir.Object
	Errors []transport.GraphQLError
	Err    error
}

// StubTransport answers requests from a script keyed by document text.
// Replies for a document are consumed in order; the last one repeats.
//
// Hold makes every request block until Release, which lets tests observe
// the state between issuing an operation and its dispatch.
//
// Thread-safety: safe for concurrent use.
type StubTransport struct {
	mu      sync.Mutex
	replies map[string][]Reply
	calls   []Call
	held    chan struct{}
}

// NewStubTransport creates an empty stub.
func NewStubTransport() *StubTransport {
	return &StubTransport{replies: make(map[string][]Reply)}
}

// Respond scripts a successful reply for document.
func (s *StubTransport) Respond(document string, data ir.Object) *StubTransport {
	return s.Script(document, Reply{Data: data})
}

// RespondJSON scripts a successful reply decoded from a JSON object.
// Panics on invalid JSON.
func (s *StubTransport) RespondJSON(document, dataJSON string) *StubTransport {
	data, err := ir.DecodeObject([]byte(dataJSON))
	if err != nil {
		panic(fmt.Sprintf("RespondJSON: %v", err))
	}
	return s.Respond(document, data)
}

// Fail scripts a transport failure for document.
func (s *StubTransport) Fail(document string, err error) *StubTransport {
	return s.Script(document, Reply{Err: err})
}

// Script appends a reply for document.
func (s *StubTransport) Script(document string, r Reply) *StubTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[document] = append(s.replies[document], r)
	return s
}

// Hold blocks subsequent requests until Release is called.
func (s *StubTransport) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held == nil {
		s.held = make(chan struct{})
	}
}

// Release unblocks held requests.
func (s *StubTransport) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held != nil {
		close(s.held)
		s.held = nil
	}
}

// Calls returns the requests seen so far.
func (s *StubTransport) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Request implements transport.Transport.
func (s *StubTransport) Request(ctx context.Context, endpoint string, req transport.Request, files []transport.File) (*transport.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Endpoint: endpoint, Request: req, Files: files})
	held := s.held
	doc := req.Document()
	script := s.replies[doc]
	var reply Reply
	found := len(script) > 0
	if found {
		reply = script[0]
		if len(script) > 1 {
			s.replies[doc] = script[1:]
		}
	}
	s.mu.Unlock()

	if held != nil {
		select {
		case <-held:
		case <-ctx.Done():
			return nil, &transport.TransportError{Endpoint: endpoint, Err: ctx.Err()}
		}
	}

	if !found {
		return nil, &transport.TransportError{Endpoint: endpoint, Message: fmt.Sprintf("no stubbed response for %q", doc)}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &transport.Response{Data: reply.Data, Errors: reply.Errors}, nil
}
