package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/logging"
	"github.com/kyleking/energy-expert/internal/query"
)

// SampleQuestions are the built-in smoke-test questions
var SampleQuestions = []string{
	"What is the total dg1kwh for site 101?",
	"Which sites had High Temp alarms yesterday?",
	"List sites with only one AC unit.",
}

const defaultEvalParallelism = 2

// evalResult is the outcome of one sample question
type evalResult struct {
	question string
	sql      query.ValidatedSQL
	duration time.Duration
	err      error
}

func EvalCommand() *cli.Command {
	return &cli.Command{
		Name:  "eval",
		Usage: "Run the built-in sample questions as a smoke test",
		Description: `Generate and validate SQL for each sample question and report which ones
succeeded. Nothing is executed. The command fails when any question fails.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "parallel",
				Value: defaultEvalParallelism,
				Usage: "Number of questions processed concurrently",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return runEval(ctx, stdout(cmd), a.orchestrator, SampleQuestions, int(cmd.Int("parallel")))
		},
	}
}

func runEval(ctx context.Context, w io.Writer, gen generator, questions []string, parallel int) error {
	if parallel <= 0 {
		return errors.Newf(errors.ErrTypeValidation, "parallel must be positive: %d", parallel)
	}

	results := make([]evalResult, len(questions))

	var g errgroup.Group
	g.SetLimit(parallel)

	for i, question := range questions {
		g.Go(func() error {
			start := time.Now()
			stmt, err := gen.GenerateSQL(ctx, question)

			results[i] = evalResult{question: question, sql: stmt, duration: time.Since(start), err: err}

			// one failing question must not cancel the others
			return nil
		})
	}

	_ = g.Wait()

	return reportEval(w, results)
}

func reportEval(w io.Writer, results []evalResult) error {
	pass := color.New(color.FgGreen).Sprint("PASS")
	fail := color.New(color.FgRed).Sprint("FAIL")

	failed := 0

	for _, res := range results {
		if res.err != nil {
			failed++

			fmt.Fprintf(w, "%s  %s\n      %s\n", fail, res.question, res.err)
			logging.WithFields(map[string]any{
				"question":   res.question,
				"error_type": string(errors.GetType(res.err)),
			}).Debug("Sample question failed")

			continue
		}

		fmt.Fprintf(w, "%s  %s (%s)\n", pass, res.question, res.duration.Round(time.Millisecond))

		for _, line := range strings.Split(res.sql.String(), "\n") {
			fmt.Fprintf(w, "      %s\n", line)
		}
	}

	fmt.Fprintf(w, "\n%d/%d questions answered\n", len(results)-failed, len(results))

	if failed > 0 {
		return errors.Newf(errors.ErrTypeValidation, "%d of %d sample questions failed", failed, len(results))
	}

	return nil
}
