package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/graphcache/internal/gate"
	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/journal"
	"github.com/roach88/graphcache/internal/runtime"
	"github.com/roach88/graphcache/internal/schema"
	"github.com/roach88/graphcache/internal/store"
	"github.com/roach88/graphcache/internal/transport"
)

// OperationOptions holds the flags shared by query and mutate.
type OperationOptions struct {
	*RootOptions
	Schema  string
	Config  string
	Params  string
	URL     string // overrides transport.url
	Journal string // overrides journal.path

	// Transport replaces the configured transport (for testing).
	Transport transport.Transport

	// IDs overrides the operation id generator (for testing).
	IDs runtime.IDGenerator
}

// OperationResult is the outcome of one query or mutation.
type OperationResult struct {
	OperationID string         `json:"operation_id"`
	Dispatches  int64          `json:"dispatches"`
	Error       string         `json:"error,omitempty"`
	Cache       ir.EntityTable `json:"cache"`
	Read        ir.Object      `json:"read,omitempty"`
}

func (o *OperationOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Schema, "schema", "", "path to the CUE schema (required)")
	_ = cmd.MarkFlagRequired("schema")
	cmd.Flags().StringVar(&o.Config, "config", "", "path to the YAML configuration")
	cmd.Flags().StringVar(&o.Params, "params", "", "operation variables as a JSON object")
	cmd.Flags().StringVar(&o.URL, "url", "", "override the transport URL")
	cmd.Flags().StringVar(&o.Journal, "journal", "", "override the journal path")
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OperationOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <document>",
		Short: "Run a query and print the resulting cache",
		Long: `Send a query through the configured transport, normalize the response into
an empty cache and print the cache together with a local read of the same
document. The document is inline text or @file.

Exit codes:
  0 - The query was cached
  1 - The query dispatched an error
  2 - Command error (schema, config, transport setup)

Examples:
  graphcache query --schema blog.cue --config graphcache.yaml '{ user(id: "1") { id name } }'
  graphcache query --schema blog.cue @user.graphql --params '{"id":"1"}' --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(opts, cmd, args[0], nil)
		},
	}

	opts.addFlags(cmd)
	return cmd
}

// readDocument returns arg, or the content of the file it names when it
// starts with "@".
func readDocument(arg string) (string, error) {
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", &LoadError{Code: ErrCodeNotFound, Err: fmt.Errorf("read document: %w", err)}
		}
		arg = string(data)
	}
	doc := strings.TrimSpace(arg)
	if doc == "" {
		return "", &LoadError{Code: ErrCodeInput, Err: errors.New("document is empty")}
	}
	return doc, nil
}

// runOperation performs one operation against a fresh store. A nil mutation
// runs document as a query.
func runOperation(opts *OperationOptions, cmd *cobra.Command, arg string, mutation *runtime.Mutation) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	document, err := readDocument(arg)
	if err != nil {
		return loadError(formatter, err)
	}
	desc, err := LoadSchema(opts.Schema)
	if err != nil {
		return loadError(formatter, err)
	}
	params, err := LoadParams(opts.Params)
	if err != nil {
		return loadError(formatter, err)
	}
	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return loadError(formatter, err)
	}
	if opts.URL != "" {
		cfg.Transport.URL = opts.URL
	}
	if opts.Journal != "" {
		cfg.Journal.Path = opts.Journal
	}
	if err := cfg.Validate(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr(), cfg.LogLevel())

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	tr := opts.Transport
	if tr == nil {
		conn, err := cfg.Connect(ctx, logger)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeTransport, err)
		}
		defer conn.Close()
		tr = conn.Transport
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, err)
	}
	defer func() {
		if err := j.Close(); err != nil {
			logger.Error("error closing journal", "error", err)
		}
	}()

	st := store.New(store.WithLogger(logger))
	rt, err := runtime.New(runtime.Config{
		Store:     st,
		Schema:    desc,
		Transport: tr,
		Endpoint:  cfg.Endpoint,
		Journal:   j,
		Metrics:   runtime.NewMetrics(cfg.Metrics.Namespace),
		IDs:       opts.IDs,
		Logger:    logger,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}

	var read ir.Object
	if mutation == nil {
		g, err := watchRead(st, desc, document, params, logger, func(data ir.Object) { read = data })
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInput, err)
		}
		defer g.Deactivate()
	}

	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	var opID string
	if mutation == nil {
		opID = rt.PerformQuery(ctx, document, params)
	} else {
		mutation.Document = document
		opID, err = rt.PerformMutation(ctx, *mutation, params, nil)
	}
	if err == nil {
		rt.Wait()
	}
	rt.Stop()
	if runErr := <-done; runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("runtime stopped with error", "error", runErr)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}

	state := st.GetState()
	result := OperationResult{
		OperationID: opID,
		Dispatches:  rt.DispatchCount(),
		Cache:       state.Cache,
		Read:        read,
	}
	if state.LastError != nil {
		result.Error = state.LastError.Error()
	}
	formatter.VerboseLog("operation %s: %d dispatches, %d entities", opID, result.Dispatches, state.Cache.Len())

	return outputOperation(formatter, result, state.LastError)
}

// watchRead activates a gate that evaluates document against the cache and
// reports its data to onRead after every change.
func watchRead(st *store.Store, desc *schema.Descriptor, document string, params ir.Object, logger *slog.Logger, onRead func(ir.Object)) (*gate.Gate, error) {
	g, err := gate.New(st, gate.Config{
		Read:   document,
		Params: params,
		Schema: desc,
		Logger: logger,
	}, func(s gate.Slice) {
		data := ir.Object{}
		for k, v := range s {
			if val, ok := v.(ir.Value); ok {
				data[k] = val
			}
		}
		onRead(data)
	})
	if err != nil {
		return nil, err
	}
	g.Activate()
	if err := g.Err(); err != nil {
		g.Deactivate()
		return nil, err
	}
	return g, nil
}

func outputOperation(formatter *OutputFormatter, result OperationResult, opErr error) error {
	code := ErrCodeOperation
	if transport.IsTransportError(opErr) {
		code = ErrCodeTransport
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if opErr != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: code, Message: opErr.Error()}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		if err := writeOperationText(formatter, result); err != nil {
			return err
		}
	}

	if opErr != nil {
		return WrapExitError(ExitFailure, code, opErr)
	}
	return nil
}

func writeOperationText(formatter *OutputFormatter, result OperationResult) error {
	w := formatter.Writer
	if result.Error != "" {
		fmt.Fprintf(w, "✗ %s: %s\n", result.OperationID, result.Error)
	} else {
		fmt.Fprintf(w, "✓ %s (%d dispatches)\n", result.OperationID, result.Dispatches)
	}

	cache, err := ir.MarshalCanonical(result.Cache.Object())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "cache: %s\n", cache)

	if result.Read != nil {
		read, err := ir.MarshalCanonical(result.Read)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "read: %s\n", read)
	}
	return nil
}

// signalContext cancels on SIGINT/SIGTERM or when parent is done.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
