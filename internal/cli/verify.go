package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/graphcache/internal/journal"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Journal string
}

// VerifyResult holds the verification outcome.
type VerifyResult struct {
	Entries    int                `json:"entries"`
	Intact     bool               `json:"intact"`
	Mismatches []journal.Mismatch `json:"mismatches"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check journal digests",
		Long: `Recompute the digest of every journal entry and check that sequence
numbers are dense.

Exit codes:
  0 - Every entry matches its digest
  1 - One or more entries were altered or are missing
  2 - Command error (journal not found, etc.)

Examples:
  graphcache verify --journal ./graphcache.db
  graphcache verify --journal ./graphcache.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the journal database (required)")
	_ = cmd.MarkFlagRequired("journal")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	entries, err := readJournal(cmd.Context(), opts.Journal, "")
	if err != nil {
		return loadError(formatter, err)
	}

	mismatches := journal.VerifyEntries(entries)
	result := VerifyResult{
		Entries:    len(entries),
		Intact:     len(mismatches) == 0,
		Mismatches: mismatches,
	}
	formatter.VerboseLog("verified %d entries", len(entries))

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Intact {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeDigest,
				Message: fmt.Sprintf("%d entries failed verification", len(mismatches)),
			}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		if result.Intact {
			fmt.Fprintf(w, "✓ %d entries verified\n", result.Entries)
		} else {
			fmt.Fprintf(w, "✗ %d of %d entries failed verification\n", len(mismatches), result.Entries)
			for _, m := range mismatches {
				fmt.Fprintf(w, "  [%d] %s\n", m.Seq, m.Reason)
			}
		}
	}

	if !result.Intact {
		return NewExitError(ExitFailure, fmt.Sprintf("%d entries failed verification", len(mismatches)))
	}
	return nil
}
