package app

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/born-ml/statedict/internal/checkpoint"
	"github.com/born-ml/statedict/internal/config"
	"github.com/born-ml/statedict/internal/report"
	"github.com/born-ml/statedict/internal/statedict"
)

func (a *App) newInspectCommand() *cobra.Command {
	var preview int

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "List the tensors stored in a checkpoint",
		Example: `  statedict inspect model.safetensors
  statedict inspect checkpoint.born --preview 4 -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := args[0]
			c, err := checkpoint.FromFile(path).Resolve()
			if err != nil {
				return errors.Wrapf(err, "read %s", path)
			}
			return a.render(report.NewListing(path, checkpoint.DetectFormat(path), c, preview))
		},
	}
	cmd.Flags().IntVar(&preview, "preview", 0, "show the first N values of each tensor")
	return cmd
}

func (a *App) newDiffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <reference> <checkpoint>",
		Short: "Compare a checkpoint with the tensors a reference model expects",
		Long: `diff treats the reference file as the model: its tensor names and shapes
are what the checkpoint must provide. Nothing is written.`,
		Example: `  statedict diff model.safetensors ddp-checkpoint.born
  statedict diff model.safetensors old.safetensors --map fc.W=fc.weight --exclude num_batches_tracked`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			_, reconciler, err := a.reconcilerFor(args[0])
			if err != nil {
				return err
			}
			rep, err := reconciler.DiffSource(checkpoint.FromFile(args[1]))
			if err != nil {
				return err
			}
			return a.render(&report.Diff{Reference: args[0], Checkpoint: args[1], Report: rep})
		},
	}
}

func (a *App) newLoadCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "load <reference> <checkpoint> --out <file>",
		Short: "Load a checkpoint into a reference model and save the result",
		Long: `load assigns every checkpoint tensor whose name and shape match the
reference and writes the updated reference to --out (.safetensors or .born).
With --strict any missing, excluded or mismatched name aborts the load.`,
		Example: `  statedict load model.safetensors ddp-checkpoint.born --out merged.safetensors --strict`,
		Args:    cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			ref, reconciler, err := a.reconcilerFor(args[0])
			if err != nil {
				return err
			}

			strict := a.config.Strict
			rep, err := reconciler.Load(checkpoint.FromFile(args[1]), strict)
			if err != nil {
				if rep != nil && errors.Is(err, statedict.ErrShapeOrNameMismatch) {
					_ = a.render(&report.Diff{Reference: args[0], Checkpoint: args[1], Strict: strict, Report: rep})
				}
				return err
			}

			if err := checkpoint.WriteFile(out, ref.model.StateDict(), ref.metadata()); err != nil {
				return errors.Wrapf(err, "write %s", out)
			}
			a.logger.Info().Str("output", out).Int("match", rep.Match).Msg("state dict written")

			return a.render(&report.Diff{Reference: args[0], Checkpoint: args[1], Output: out, Strict: strict, Report: rep})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "file to write the updated state dict to")
	cmd.Flags().Bool("strict", false, "fail unless every expected name is supplied with the right shape")
	_ = cmd.MarkFlagRequired("out")
	a.bindFlag(cmd, config.KeyStrict, "strict")
	return cmd
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "statedict %s (commit %s, built %s)\n", a.version, a.commit, a.date)
			return err
		},
	}
}

// reference is a model read from disk.
type reference struct {
	container *checkpoint.Container
	model     *statedict.Module
}

// metadata returns the string metadata of the reference file.
func (r *reference) metadata() map[string]string {
	meta := make(map[string]string)
	for k, v := range r.container.Meta {
		if s, ok := v.(string); ok {
			meta[k] = s
		}
	}
	return meta
}

// reconcilerFor reads the reference file and builds a reconciler targeting it.
func (a *App) reconcilerFor(path string) (*reference, *statedict.Reconciler, error) {
	c, err := checkpoint.FromFile(path).Resolve()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read reference %s", path)
	}
	ref := &reference{container: c, model: statedict.NewModule(c.StateDict())}

	reconciler, err := statedict.New(ref.model, a.reconcilerOptions()...)
	if err != nil {
		return nil, nil, err
	}
	return ref, reconciler, nil
}
