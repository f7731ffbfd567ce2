package cmds

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hackhub/submissions-api/internal/exit"
	"github.com/hackhub/submissions-api/internal/scoring"
	"github.com/hackhub/submissions-api/internal/tabular"
)

const defaultColumn = "Language"

type options struct {
	solution    string
	predictions string
	column      string
}

// Scores a predictions file against the ground truth the way the server does
func NewRootCmd(out io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "evaluate",
		Short:         "Computes the accuracy of a predictions file",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accuracy, err := evaluate(cmd.Context(), opts)
			if err != nil {
				if errors.Is(err, scoring.ErrRowCountMismatch) {
					return exit.Wrap(exit.CodeMismatch, err)
				}
				return exit.Wrap(exit.CodeError, err)
			}

			_, err = fmt.Fprintf(out, "%.2f\n", accuracy)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.solution, "solution", "", "Path to the ground truth csv")
	cmd.Flags().StringVar(&opts.predictions, "predictions", "", "Path to the predictions csv")
	cmd.Flags().StringVar(&opts.column, "column", defaultColumn, "Column compared between both files")
	for _, flag := range []string{"solution", "predictions"} {
		err := cmd.MarkFlagRequired(flag)
		if err != nil {
			panic("Internal error contact a contributor [flag-required]")
		}
	}

	return cmd
}

func evaluate(ctx context.Context, opts options) (float64, error) {
	actual, err := tabular.ReadColumn(ctx, opts.solution, opts.column)
	if err != nil {
		return 0, fmt.Errorf("reading solution: %w", err)
	}

	predicted, err := tabular.ReadColumn(ctx, opts.predictions, opts.column)
	if err != nil {
		return 0, fmt.Errorf("reading predictions: %w", err)
	}

	return scoring.Accuracy(actual, predicted)
}

func Execute(ctx context.Context, out io.Writer) error {
	return NewRootCmd(out).ExecuteContext(ctx)
}
