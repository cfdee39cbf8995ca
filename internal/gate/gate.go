package gate

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/localread"
	"github.com/roach88/graphcache/internal/schema"
	"github.com/roach88/graphcache/internal/store"
)

// Slice is what a consumer receives.
type Slice map[string]any

// SelectFunc maps the store's non-cache state to a map. Results of any
// other shape are rejected with a *ir.ConfigurationError.
type SelectFunc func(meta store.Meta) any

// DefaultSelect exposes the last error under "lastError".
func DefaultSelect(meta store.Meta) any {
	return map[string]any{"lastError": meta.LastError}
}

// Config describes what a gate derives.
type Config struct {
	// Select defaults to DefaultSelect.
	Select SelectFunc

	// Read is an optional local read document evaluated against the cache.
	// It requires Schema.
	Read   string
	Params ir.Object
	Schema *schema.Descriptor

	// Executor defaults to a zero localread.Executor.
	Executor *localread.Executor

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Gate recomputes a slice on every store change and delivers it when it
// differs from the last delivered one.
//
// deliver runs synchronously, either inside a store notification or inside
// Activate/SetSelect. It may call Slice, Err, Active and Deactivate; it must
// not call SetSelect or re-activate the gate.
type Gate struct {
	store   *store.Store
	deliver func(Slice)
	logger  *slog.Logger

	// deliverMu orders computations and deliveries; mu guards the fields
	// below and is never held while deliver runs.
	deliverMu sync.Mutex

	mu          sync.Mutex
	cfg         Config
	slice       Slice
	delivered   bool
	lastErr     error
	unsubscribe func()
}

// New creates an inactive gate.
func New(s *store.Store, cfg Config, deliver func(Slice)) (*Gate, error) {
	if s == nil {
		return nil, ir.NewConfigurationError("store", "a gate needs a store")
	}
	if deliver == nil {
		return nil, ir.NewConfigurationError("deliver", "a gate needs a deliver function")
	}
	if cfg.Read != "" && cfg.Schema == nil {
		return nil, ir.NewConfigurationError("schema", "a local read requires a schema descriptor")
	}
	if cfg.Select == nil {
		cfg.Select = DefaultSelect
	}
	if cfg.Executor == nil {
		cfg.Executor = &localread.Executor{Logger: cfg.Logger}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: s, cfg: cfg, deliver: deliver, logger: logger}, nil
}

// Compute derives the slice for state without delivering it.
func (g *Gate) Compute(state store.State) (Slice, error) {
	g.mu.Lock()
	cfg := g.cfg
	g.mu.Unlock()
	return compute(cfg, state)
}

func compute(cfg Config, state store.State) (Slice, error) {
	selected := cfg.Select(state.Meta())

	var out Slice
	switch m := selected.(type) {
	case map[string]any:
		out = make(Slice, len(m))
		for k, v := range m {
			out[k] = v
		}
	case Slice:
		out = make(Slice, len(m))
		for k, v := range m {
			out[k] = v
		}
	default:
		return nil, ir.NewConfigurationError("select",
			"the return value of select must be a map[string]any, instead received %T", selected)
	}

	if cfg.Read == "" {
		return out, nil
	}
	res, err := cfg.Executor.Execute(context.Background(), cfg.Schema, state.Cache, cfg.Read, cfg.Params)
	if err != nil {
		return nil, err
	}
	for k, v := range res.Data {
		out[k] = v
	}
	return out, nil
}

// Activate subscribes to the store and delivers the current slice.
// Activating an active gate does nothing.
func (g *Gate) Activate() {
	g.mu.Lock()
	if g.unsubscribe != nil {
		g.mu.Unlock()
		return
	}
	g.unsubscribe = g.store.Subscribe(g.handleChange)
	g.mu.Unlock()

	g.update(false, true)
}

// Deactivate unsubscribes from the store. It is idempotent. Operations the
// consumer already issued still dispatch; the gate just stops delivering.
func (g *Gate) Deactivate() {
	g.mu.Lock()
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Active reports whether the gate is subscribed.
func (g *Gate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unsubscribe != nil
}

// SetSelect replaces the select function. When fn is a different function
// the slice is recomputed and delivered even if it compares equal.
func (g *Gate) SetSelect(fn SelectFunc) {
	if fn == nil {
		fn = DefaultSelect
	}
	g.mu.Lock()
	changed := funcPointer(fn) != funcPointer(g.cfg.Select)
	g.cfg.Select = fn
	g.mu.Unlock()

	if changed {
		g.update(true, false)
	}
}

// funcPointer identifies a function value. Closures created by the same
// literal share a code pointer and compare equal.
func funcPointer(fn SelectFunc) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// Slice returns the last delivered slice.
func (g *Gate) Slice() Slice {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.slice
}

// Err returns the error of the most recent computation, if it failed.
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

func (g *Gate) handleChange() {
	g.update(false, true)
}

// update recomputes and delivers. A store-driven update is skipped once the
// gate is inactive, which covers a notification round that snapshotted the
// listener before Deactivate.
func (g *Gate) update(force, onlyActive bool) {
	g.deliverMu.Lock()
	defer g.deliverMu.Unlock()

	g.mu.Lock()
	if onlyActive && g.unsubscribe == nil {
		g.mu.Unlock()
		return
	}
	cfg := g.cfg
	g.mu.Unlock()

	next, err := compute(cfg, g.store.GetState())

	g.mu.Lock()
	if err != nil {
		g.lastErr = err
		g.mu.Unlock()
		g.logger.Error("slice computation failed", "error", err)
		return
	}
	g.lastErr = nil
	if g.delivered {
		next = carryOver(g.slice, next)
		if !force && IsSliceEqual(g.slice, next) {
			g.mu.Unlock()
			return
		}
	}
	g.slice = next
	g.delivered = true
	g.mu.Unlock()

	g.deliver(next)
}

// carryOver replaces read values in next that are deeply equal to the
// previous slice's values with the previous values, preserving identity.
func carryOver(prev, next Slice) Slice {
	for k, nv := range next {
		nval, ok := nv.(ir.Value)
		if !ok {
			continue
		}
		pval, ok := prev[k].(ir.Value)
		if ok && ir.Equal(pval, nval) {
			next[k] = pval
		}
	}
	return next
}
