package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/journal"
	"github.com/roach88/graphcache/internal/localread"
	"github.com/roach88/graphcache/internal/normalize"
	"github.com/roach88/graphcache/internal/schema"
	"github.com/roach88/graphcache/internal/store"
	"github.com/roach88/graphcache/internal/transport"
)

// Config wires a Runtime to its collaborators.
type Config struct {
	Store     *store.Store
	Schema    *schema.Descriptor
	Transport transport.Transport

	// Endpoint defaults to transport.DefaultEndpoint.
	Endpoint string

	// Journal, when set, records every dispatch.
	Journal *journal.Journal

	// Metrics, when set, is updated for every operation and dispatch.
	Metrics *Metrics

	// IDs defaults to UUIDv7Generator.
	IDs IDGenerator

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Runtime runs the query and mutation pipelines.
//
// Thread-safety model:
//   - PerformQuery, PerformMutation, Wait: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// All store dispatches happen in the Run goroutine.
type Runtime struct {
	store     *store.Store
	schema    *schema.Descriptor
	transport transport.Transport
	endpoint  string
	journal   *journal.Journal
	metrics   *Metrics
	ids       IDGenerator
	logger    *slog.Logger

	clock    *Clock
	queue    *eventQueue
	inflight *inflightCounter
}

// New validates cfg and creates a Runtime. Run must be started before issued
// operations are dispatched.
func New(cfg Config) (*Runtime, error) {
	if cfg.Store == nil {
		return nil, ir.NewConfigurationError("store", "a cache store is required")
	}
	if cfg.Schema == nil {
		return nil, ir.NewConfigurationError("schema", "a schema descriptor is required")
	}
	if cfg.Transport == nil {
		return nil, ir.NewConfigurationError("transport", "a transport is required")
	}

	r := &Runtime{
		store:     cfg.Store,
		schema:    cfg.Schema,
		transport: cfg.Transport,
		endpoint:  cfg.Endpoint,
		journal:   cfg.Journal,
		metrics:   cfg.Metrics,
		ids:       cfg.IDs,
		logger:    cfg.Logger,
		clock:     NewClock(),
		queue:     newEventQueue(),
		inflight:  newInflightCounter(),
	}
	if r.endpoint == "" {
		r.endpoint = transport.DefaultEndpoint
	}
	if r.ids == nil {
		r.ids = UUIDv7Generator{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

// Store returns the store the runtime dispatches to.
func (r *Runtime) Store() *store.Store {
	return r.store
}

// Schema returns the schema descriptor used for normalization.
func (r *Runtime) Schema() *schema.Descriptor {
	return r.schema
}

// PerformQuery issues query and returns its operation id. The result is
// dispatched later by the Run loop; nothing is returned to the caller.
func (r *Runtime) PerformQuery(ctx context.Context, query string, params ir.Object) string {
	op := r.begin(query, nil)
	if query == "" {
		r.enqueue(event{
			kind: eventQueryDone,
			op:   op,
			err:  ir.NewConfigurationError("query", "query document is empty"),
		})
		return op.id
	}

	req := transport.Request{Query: query, Params: params}
	go r.call(ctx, eventQueryDone, op, req, nil)
	return op.id
}

// PerformMutation issues m and returns its operation id. A mutation without a
// document fails synchronously with a *ir.ConfigurationError and never
// reaches the transport.
func (r *Runtime) PerformMutation(ctx context.Context, m Mutation, params ir.Object, files []transport.File) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}

	updaters := make([]CacheUpdater, len(m.UpdateCache))
	copy(updaters, m.UpdateCache)

	op := r.begin(m.Document, updaters)
	req := transport.Request{Mutation: m.Document, Params: params}
	go r.call(ctx, eventMutationDone, op, req, files)
	return op.id, nil
}

func (r *Runtime) begin(document string, updaters []CacheUpdater) *operation {
	r.inflight.add()
	r.metrics.operationStarted()
	return &operation{
		id:       r.ids.Generate(),
		document: document,
		updaters: updaters,
		started:  time.Now(),
	}
}

// call runs in its own goroutine. It performs the transport request and hands
// the outcome to the Run loop.
func (r *Runtime) call(ctx context.Context, kind eventKind, op *operation, req transport.Request, files []transport.File) {
	resp, err := r.transport.Request(ctx, r.endpoint, req, files)
	r.enqueue(event{kind: kind, op: op, response: resp, err: err})
}

func (r *Runtime) enqueue(ev event) {
	if !r.queue.Enqueue(ev) {
		r.logger.Warn("runtime stopped: operation result dropped", "operation", ev.op.id)
		r.metrics.operationFinished(ev.kind.String(), "dropped", time.Since(ev.op.started).Seconds())
		r.inflight.done()
	}
}

// Run starts the single-writer dispatch loop. It blocks until ctx is
// cancelled or Stop is called, after draining every queued outcome.
//
// Must be called from exactly one goroutine.
func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("runtime starting", "endpoint", r.endpoint)

	for {
		if ev, ok := r.queue.TryDequeue(); ok {
			r.process(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.Info("runtime stopping: context cancelled")
			r.queue.Close()
			r.drain(context.WithoutCancel(ctx))
			return ctx.Err()

		case <-r.queue.Wait():
			if r.queue.Len() == 0 && r.isClosed() {
				r.logger.Info("runtime stopping: queue closed")
				return nil
			}
		}
	}
}

func (r *Runtime) isClosed() bool {
	r.queue.mu.Lock()
	defer r.queue.mu.Unlock()
	return r.queue.closed
}

// drain processes outcomes that were queued before the loop stopped.
func (r *Runtime) drain(ctx context.Context) {
	for {
		ev, ok := r.queue.TryDequeue()
		if !ok {
			return
		}
		r.process(ctx, ev)
	}
}

// Stop closes the queue. Run returns once queued outcomes are processed.
// Operations still waiting on the transport are dropped.
func (r *Runtime) Stop() {
	r.queue.Close()
}

// Wait blocks until every issued operation has been dispatched or dropped.
// Run must be active, or Wait may never return. Operations issued while Wait
// is blocked are waited for too.
func (r *Runtime) Wait() {
	r.inflight.wait()
}

// Pending returns the number of issued operations not yet dispatched.
func (r *Runtime) Pending() int {
	return r.inflight.count()
}

// process handles one operation outcome.
// Called only from the Run goroutine.
func (r *Runtime) process(ctx context.Context, ev event) {
	defer r.inflight.done()

	kind := ev.kind.String()
	outcome := "ok"
	defer func() {
		r.metrics.operationFinished(kind, outcome, time.Since(ev.op.started).Seconds())
	}()

	data, err := r.responseData(ev)
	if err != nil {
		outcome = "error"
		r.logger.Warn("operation failed",
			"operation", ev.op.id,
			"kind", kind,
			"error", err)
		r.dispatch(ctx, ev.op.id, ir.ErrorAction(err))
		return
	}

	delta, err := normalize.Normalize(r.schema, data, normalize.WithAliases(rootAliases(ev.op.document)))
	if err != nil {
		outcome = "error"
		r.logger.Warn("normalization failed",
			"operation", ev.op.id,
			"kind", kind,
			"error", err)
		r.dispatch(ctx, ev.op.id, ir.ErrorAction(err))
		return
	}

	if !r.dispatch(ctx, ev.op.id, ir.UpdateAction(delta)) {
		outcome = "error"
		return
	}

	if ev.kind == eventMutationDone && len(ev.op.updaters) > 0 {
		r.cascade(ctx, ev.op, data)
	}
}

// rootAliases resolves aliased root fields of document. A document the
// parser rejects yields no aliases; the server accepted it, so its data is
// still normalized by plain field name.
func rootAliases(document string) map[string]string {
	aliases, err := localread.RootAliases(document)
	if err != nil {
		return nil
	}
	return aliases
}

// responseData extracts the data of a successful outcome.
func (r *Runtime) responseData(ev event) (ir.Object, error) {
	if ev.err != nil {
		return nil, ev.err
	}
	if err := ev.response.Err(); err != nil {
		return nil, err
	}
	if len(ev.response.Errors) > 0 {
		r.logger.Warn("operation returned partial data",
			"operation", ev.op.id,
			"errors", len(ev.response.Errors))
	}
	if ev.response.Data == nil {
		return ir.Object{}, nil
	}
	return ev.response.Data, nil
}

// dispatch applies action to the store, then journals it. Reports whether
// the store accepted the action.
func (r *Runtime) dispatch(ctx context.Context, operationID string, action ir.Action) bool {
	if err := r.store.Dispatch(action); err != nil {
		r.logger.Error("dispatch rejected",
			"operation", operationID,
			"error", err)
		return false
	}
	seq := r.clock.Next()
	r.metrics.dispatched(action.IsError)

	r.logger.Debug("dispatched",
		"operation", operationID,
		"seq", seq,
		"is_error", action.IsError,
		"entities", action.Payload.Len())

	if r.journal != nil {
		if _, err := r.journal.Append(ctx, operationID, action); err != nil {
			r.logger.Error("journal append failed",
				"operation", operationID,
				"seq", seq,
				"error", err)
		}
	}
	return true
}

// DispatchCount returns the number of dispatches the runtime has made.
func (r *Runtime) DispatchCount() int64 {
	return r.clock.Current()
}

func (k eventKind) String() string {
	switch k {
	case eventQueryDone:
		return "query"
	case eventMutationDone:
		return "mutation"
	default:
		return "unknown"
	}
}
