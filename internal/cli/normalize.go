package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/normalize"
)

// NormalizeOptions holds flags for the normalize command.
type NormalizeOptions struct {
	*RootOptions
	Schema string
}

// NormalizeResult is the JSON output of the normalize command.
type NormalizeResult struct {
	Entities int            `json:"entities"`
	Delta    ir.EntityTable `json:"delta"`
	Digest   string         `json:"digest"`
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NormalizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "normalize <response.json>",
		Short: "Normalize a response document into an entity delta",
		Long: `Normalize a GraphQL response into the entity delta it would dispatch.

The input is either a full response ({"data": {...}}) or the bare data
object. Text output is the delta as canonical JSON; "-" reads stdin.

Example:
  graphcache normalize --schema ./schemas/blog.cue response.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "path to the CUE schema (required)")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runNormalize(opts *NormalizeOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	desc, err := LoadSchema(opts.Schema)
	if err != nil {
		return loadError(formatter, err)
	}

	var raw []byte
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Errorf("read response: %w", err))
	}

	doc, err := ir.DecodeObject(raw)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, fmt.Errorf("parse response: %w", err))
	}
	if data, ok := doc["data"].(ir.Object); ok {
		doc = data
	}

	delta, err := normalize.Normalize(desc, doc)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeNormalization, err)
	}
	formatter.VerboseLog("normalized %d entities", delta.Len())

	digest, err := ir.TableDigest(delta)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}

	if formatter.JSON() {
		return formatter.Success(NormalizeResult{
			Entities: delta.Len(),
			Delta:    delta,
			Digest:   digest,
		})
	}

	out, err := ir.MarshalCanonical(delta.Object())
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}
	fmt.Fprintln(formatter.Writer, string(out))
	return nil
}
