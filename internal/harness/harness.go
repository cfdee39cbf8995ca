package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/journal"
	"github.com/roach88/graphcache/internal/runtime"
	"github.com/roach88/graphcache/internal/schema"
	"github.com/roach88/graphcache/internal/store"
	"github.com/roach88/graphcache/internal/testutil"
	"github.com/roach88/graphcache/internal/transport"
)

// Harness executes one scenario.
type Harness struct {
	schema  *schema.Descriptor
	store   *store.Store
	runtime *runtime.Runtime
	journal *journal.Journal
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh store and an in-memory journal.
// Operation ids come from testutil.SequentialIDs and every step completes
// before the next starts, so journals are identical across runs.
//
// Execution flow:
// 1. Compile the schema and seed the store with the initial cache
// 2. Script the stub transport with the scenario's responses
// 3. Perform each step and wait for its dispatches
// 4. Evaluate assertions against the final state
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with runtime logging sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	desc, err := schema.LoadFile(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	initial, err := tableFromYAML(scenario.InitialCache)
	if err != nil {
		return nil, fmt.Errorf("failed to convert initial_cache: %w", err)
	}

	j, err := journal.Open(journal.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.Close()

	endpoint := scenario.Endpoint
	if endpoint == "" {
		endpoint = transport.DefaultEndpoint
	}
	stub, err := scriptTransport(scenario.Responses, endpoint)
	if err != nil {
		return nil, err
	}

	st := store.New(store.WithInitialState(initial), store.WithLogger(logger))
	rt, err := runtime.New(runtime.Config{
		Store:     st,
		Schema:    desc,
		Transport: stub,
		Endpoint:  endpoint,
		Journal:   j,
		IDs:       testutil.NewSequentialIDs("op"),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}

	h := &Harness{
		schema:  desc,
		store:   st,
		runtime: rt,
		journal: j,
		logger:  logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	stepErr := h.executeSteps(ctx, scenario.Steps)

	rt.Stop()
	<-done

	if stepErr != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", stepErr)
	}

	result, err := h.collect(ctx)
	if err != nil {
		return nil, err
	}

	actx := &AssertionContext{Ctx: ctx, Schema: h.schema}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSteps performs each step and waits for its dispatches before the
// next, which keeps journal order deterministic.
func (h *Harness) executeSteps(ctx context.Context, steps []Step) error {
	for i, step := range steps {
		params, err := objectFromYAML(step.Params)
		if err != nil {
			return fmt.Errorf("step %d: failed to convert params: %w", i, err)
		}

		var opID string
		if step.Query != "" {
			opID = h.runtime.PerformQuery(ctx, strings.TrimSpace(step.Query), params)
		} else {
			updates, err := step.listUpdates()
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			m := runtime.Mutation{Document: strings.TrimSpace(step.Mutation)}
			for _, u := range updates {
				m.UpdateCache = append(m.UpdateCache, u.Updater())
			}
			opID, err = h.runtime.PerformMutation(ctx, m, params, stepFiles(step.Files))
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		}

		h.runtime.Wait()

		h.logger.Info("step completed",
			"step", i,
			"operation", opID,
			"dispatches", h.runtime.DispatchCount(),
		)
	}
	return nil
}

func (h *Harness) collect(ctx context.Context) (*Result, error) {
	result := NewResult()

	entries, err := h.journal.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	result.Journal = entries

	state := h.store.GetState()
	result.Cache = state.Cache
	if state.LastError != nil {
		result.LastError = state.LastError.Error()
	}
	result.Dispatches = h.runtime.DispatchCount()
	return result, nil
}

// scriptTransport builds the stub transport. Documents are matched with
// surrounding whitespace trimmed.
func scriptTransport(responses []Response, endpoint string) (*testutil.StubTransport, error) {
	stub := testutil.NewStubTransport()
	for i, r := range responses {
		reply := testutil.Reply{}
		switch {
		case r.Error != "":
			reply.Err = &transport.TransportError{Endpoint: endpoint, Message: r.Error}
		default:
			if r.Data != nil {
				data, err := objectFromYAML(r.Data)
				if err != nil {
					return nil, fmt.Errorf("responses[%d]: failed to convert data: %w", i, err)
				}
				reply.Data = data
			}
			for _, e := range r.Errors {
				reply.Errors = append(reply.Errors, transport.GraphQLError{Message: e.Message, Path: e.Path})
			}
		}
		stub.Script(strings.TrimSpace(r.Document), reply)
	}
	return stub, nil
}

func stepFiles(files []FileStep) []transport.File {
	if len(files) == 0 {
		return nil
	}
	out := make([]transport.File, len(files))
	for i, f := range files {
		out[i] = transport.File{
			Field:   f.Field,
			Name:    f.Name,
			Content: strings.NewReader(f.Content),
		}
	}
	return out
}

// objectFromYAML converts YAML-decoded values to an ir.Object.
func objectFromYAML(m map[string]any) (ir.Object, error) {
	if m == nil {
		return nil, nil
	}
	v, err := valueFromYAML(m)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("expected object, got %s", ir.KindOf(v))
	}
	return obj, nil
}

// valueFromYAML converts a YAML-decoded value, turning {"__ref": "Type:ID"}
// objects into references.
func valueFromYAML(raw any) (ir.Value, error) {
	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, err
	}
	return resolveRefs(v), nil
}

func resolveRefs(v ir.Value) ir.Value {
	switch val := v.(type) {
	case ir.Array:
		out := make(ir.Array, len(val))
		for i, e := range val {
			out[i] = resolveRefs(e)
		}
		return out
	case ir.Object:
		if key, ok := val["__ref"].(ir.String); ok && len(val) == 1 {
			if ref, ok := ir.ParseRefKey(string(key)); ok {
				return ref
			}
		}
		out := make(ir.Object, len(val))
		for k, e := range val {
			out[k] = resolveRefs(e)
		}
		return out
	default:
		return v
	}
}

func tableFromYAML(raw map[string]map[string]map[string]any) (ir.EntityTable, error) {
	table := ir.EntityTable{}
	for typeName, byID := range raw {
		for id, fields := range byID {
			obj, err := objectFromYAML(fields)
			if err != nil {
				return nil, fmt.Errorf("%s:%s: %w", typeName, id, err)
			}
			table.Put(typeName, id, ir.Record(obj))
		}
	}
	return table, nil
}
