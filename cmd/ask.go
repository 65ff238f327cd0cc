package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/formatter"
	"github.com/kyleking/energy-expert/internal/pipeline"
)

// answerer runs the full pipeline for one question
type answerer interface {
	Run(ctx context.Context, question string) (*pipeline.Outcome, error)
}

func AskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a question with SQL, rows and a short analysis",
		ArgsUsage: " <question>",
		Description: `Generate a read-only SQL query for the question, run it against the energy
database and explain the rows. A rejected or failing query is repaired once.

Examples:
  energy-expert ask "What is the total dg1kwh for site 101?"
  energy-expert ask --format json "List sites with only one AC unit."`,
		Flags: []cli.Flag{formatFlag()},
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

			return runAsk(ctx, stdout(cmd), a.orchestrator, question, format, showSpinner(format))
		},
	}
}

func runAsk(
	ctx context.Context,
	w io.Writer,
	ans answerer,
	question string,
	format formatter.OutputFormat,
	spin bool,
) error {
	var outcome *pipeline.Outcome

	err := withSpinner(spin, " Thinking...", func() error {
		var runErr error

		outcome, runErr = ans.Run(ctx, question)

		return runErr
	})
	if err != nil {
		return err
	}

	out, err := formatter.NewFormatter().FormatOutcome(outcome, format)
	if err != nil {
		return err
	}

	fmt.Fprint(w, out)

	return nil
}

// questionArg joins the positional arguments into one question
func questionArg(cmd *cli.Command) (string, error) {
	question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if question == "" {
		return "", errors.New(errors.ErrTypeValidation, "a question is required").
			WithSuggestion(fmt.Sprintf("Usage: energy-expert %s \"<question>\"", cmd.Name))
	}

	return question, nil
}

// showSpinner reports whether progress should be drawn on stderr
func showSpinner(format formatter.OutputFormat) bool {
	return format == formatter.FormatText && isatty.IsTerminal(os.Stderr.Fd())
}

// withSpinner runs fn while a spinner animates on stderr
func withSpinner(enabled bool, suffix string, fn func() error) error {
	if !enabled {
		return fn()
	}

	s := spinner.New(
		spinner.CharSets[14],
		100*time.Millisecond,
		spinner.WithWriter(os.Stderr),
		spinner.WithSuffix(suffix),
	)
	s.Start()
	defer s.Stop()

	return fn()
}
