package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/energy-expert/internal/formatter"
	"github.com/kyleking/energy-expert/internal/query"
)

// generator produces validated SQL without executing it
type generator interface {
	GenerateSQL(ctx context.Context, question string) (query.ValidatedSQL, error)
}

func SQLCommand() *cli.Command {
	return &cli.Command{
		Name:        "sql",
		Usage:       "Print the validated SQL for a question without running it",
		ArgsUsage:   " <question>",
		Description: `Generate and validate SQL for the question. Nothing is executed against the database.`,
		Flags:       []cli.Flag{formatFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			question, err := questionArg(cmd)
			if err != nil {
				return err
			}

			format, err := formatter.ParseFormat(cmd.String(flagFormat))
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return runSQL(ctx, stdout(cmd), a.orchestrator, question, format, showSpinner(format))
		},
	}
}

func runSQL(
	ctx context.Context,
	w io.Writer,
	gen generator,
	question string,
	format formatter.OutputFormat,
	spin bool,
) error {
	var stmt query.ValidatedSQL

	err := withSpinner(spin, " Writing SQL...", func() error {
		var genErr error

		stmt, genErr = gen.GenerateSQL(ctx, question)

		return genErr
	})
	if err != nil {
		return err
	}

	out, err := formatter.NewFormatter().FormatSQL(stmt, format)
	if err != nil {
		return err
	}

	fmt.Fprint(w, out)

	return nil
}
