package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/graphcache/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal   string
	Operation string // optional - filter to one operation id
	Errors    bool   // only error dispatches
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline   []journal.Entry  `json:"timeline"`
	Operations []OperationTrace `json:"operations"`
	Stats      TraceStats       `json:"stats"`
}

// OperationTrace summarises the dispatches of one operation.
type OperationTrace struct {
	OperationID string  `json:"operation_id"`
	Seqs        []int64 `json:"seqs"`
	Errors      int     `json:"errors"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Dispatches int `json:"dispatches"`
	Errors     int `json:"errors"`
	Operations int `json:"operations"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the dispatch journal",
		Long: `Print the dispatches recorded in a journal file.

The output includes:
- Timeline: every dispatch in sequence order
- Operations: the dispatches grouped by operation id (primary first, then cascades)
- Stats: summary counts

Examples:
  graphcache trace --journal ./graphcache.db
  graphcache trace --journal ./graphcache.db --operation 0190a0c4-...
  graphcache trace --journal ./graphcache.db --errors --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the journal database (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().StringVar(&opts.Operation, "operation", "", "filter to one operation id")
	cmd.Flags().BoolVar(&opts.Errors, "errors", false, "only show error dispatches")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	entries, err := readJournal(cmd.Context(), opts.Journal, opts.Operation)
	if err != nil {
		return loadError(formatter, err)
	}

	result := buildTrace(entries, opts.Errors)

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

// readJournal opens an existing journal file and reads its entries,
// optionally for one operation.
func readJournal(ctx context.Context, path, operationID string) ([]journal.Entry, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Err: fmt.Errorf("journal not found: %s", path)}
	}

	j, err := journal.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeJournal, Err: err}
	}
	defer j.Close()

	var entries []journal.Entry
	if operationID != "" {
		entries, err = j.ReadOperation(ctx, operationID)
	} else {
		entries, err = j.ReadAll(ctx)
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeJournal, Err: err}
	}
	return entries, nil
}

func buildTrace(entries []journal.Entry, errorsOnly bool) TraceResult {
	result := TraceResult{
		Timeline:   []journal.Entry{},
		Operations: []OperationTrace{},
	}

	index := map[string]int{}
	for _, e := range entries {
		if errorsOnly && !e.IsError {
			continue
		}
		result.Timeline = append(result.Timeline, e)

		i, ok := index[e.OperationID]
		if !ok {
			i = len(result.Operations)
			index[e.OperationID] = i
			result.Operations = append(result.Operations, OperationTrace{OperationID: e.OperationID})
		}
		op := &result.Operations[i]
		op.Seqs = append(op.Seqs, e.Seq)
		if e.IsError {
			op.Errors++
			result.Stats.Errors++
		}
	}

	result.Stats.Dispatches = len(result.Timeline)
	result.Stats.Operations = len(result.Operations)
	return result
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no dispatches)")
	}
	for _, e := range result.Timeline {
		if e.IsError {
			fmt.Fprintf(w, "  [%d] %s ERROR %s\n", e.Seq, truncateID(e.OperationID), e.Error)
		} else {
			fmt.Fprintf(w, "  [%d] %s %s %s\n", e.Seq, truncateID(e.OperationID), e.Kind, e.Payload)
		}
		if verbose {
			fmt.Fprintf(w, "       Digest: %s\n", e.Digest)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Operations ===")
	for _, op := range result.Operations {
		fmt.Fprintf(w, "  %s: %d dispatches, %d errors\n", op.OperationID, len(op.Seqs), op.Errors)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Dispatches: %d\n", result.Stats.Dispatches)
	fmt.Fprintf(w, "  Errors:     %d\n", result.Stats.Errors)
	fmt.Fprintf(w, "  Operations: %d\n", result.Stats.Operations)
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
