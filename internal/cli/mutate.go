package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/graphcache/internal/runtime"
)

// MutateOptions holds flags for the mutate command.
type MutateOptions struct {
	OperationOptions
	Append []string
	Remove []string
}

// NewMutateCommand creates the mutate command.
func NewMutateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutateOptions{OperationOptions: OperationOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "mutate <document>",
		Short: "Run a mutation and its cache updates",
		Long: `Send a mutation through the configured transport, normalize the response
and apply the cascade updates given with --append and --remove.

An update is written Type:parentIdField:listField:valueField. For

  --append Post:postId:commentIds:id

the mutated entity's id is appended to Post[<its postId>].commentIds.
Updates run in flag order, appends first.

Exit codes:
  0 - The mutation and its updates were cached
  1 - The mutation or one of its updates dispatched an error
  2 - Command error (schema, config, malformed update)

Example:
  graphcache mutate --schema blog.cue \
    'mutation { createComment(postId: "10", text: "hi") { id postId } }' \
    --append Post:postId:commentIds:id`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			mutation, err := opts.mutation()
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeInput, err)
			}
			return runOperation(&opts.OperationOptions, cmd, args[0], mutation)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringArrayVar(&opts.Append, "append", nil, "append the mutated id to a parent list (Type:parentIdField:listField:valueField)")
	cmd.Flags().StringArrayVar(&opts.Remove, "remove", nil, "remove the mutated id from a parent list (Type:parentIdField:listField:valueField)")

	return cmd
}

func (o *MutateOptions) mutation() (*runtime.Mutation, error) {
	m := &runtime.Mutation{}
	for _, group := range []struct {
		exprs  []string
		remove bool
	}{{o.Append, false}, {o.Remove, true}} {
		for _, expr := range group.exprs {
			u, err := runtime.ParseListUpdate(expr, group.remove)
			if err != nil {
				return nil, err
			}
			m.UpdateCache = append(m.UpdateCache, u.Updater())
		}
	}
	return m, nil
}
