package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/formatter"
	"github.com/kyleking/energy-expert/internal/storage"
)

func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:        "history",
		Usage:       "List recently asked questions",
		Description: `Show the most recent questions from the local history, newest first.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Value: storage.DefaultListLimit,
				Usage: "Maximum number of entries to show",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Show aggregate statistics instead of entries",
			},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format, err := formatter.ParseFormat(cmd.String(flagFormat))
			if err != nil {
				return err
			}

			repo, err := historyFromCommand(ctx, cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			if cmd.Bool("stats") {
				return runHistoryStats(ctx, stdout(cmd), repo, format)
			}

			return runHistory(ctx, stdout(cmd), repo, int(cmd.Int("limit")), format)
		},
	}
}

func FeedbackCommand() *cli.Command {
	return &cli.Command{
		Name:      "feedback",
		Usage:     "Rate an answer from the history",
		ArgsUsage: " <id> <rating 1-5> [comment]",
		Description: `Attach a rating and optional comment to a history entry. Rating again
replaces the earlier feedback.

Example:
  energy-expert feedback 0b9f6c1e-5d0a-4f55-9a57-2b1f0c7d8e11 4 "close, but missed site 103"`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			repo, err := historyFromCommand(ctx, cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			return runFeedback(ctx, stdout(cmd), repo, cmd.Args().Slice())
		},
	}
}

// historyFromCommand loads configuration and opens the history store
func historyFromCommand(ctx context.Context, cmd *cli.Command) (*storage.DuckDBRepository, error) {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return nil, err
	}

	return openHistory(ctx, cfg.History)
}

func runHistory(ctx context.Context, w io.Writer, repo storage.Repository, limit int, format formatter.OutputFormat) error {
	if limit <= 0 {
		return errors.Newf(errors.ErrTypeValidation, "limit must be positive: %d", limit)
	}

	entries, err := repo.ListEntries(ctx, limit)
	if err != nil {
		return err
	}

	out, err := formatter.NewFormatter().FormatEntries(entries, format)
	if err != nil {
		return err
	}

	fmt.Fprint(w, out)

	return nil
}

func runHistoryStats(ctx context.Context, w io.Writer, repo storage.Repository, format formatter.OutputFormat) error {
	stats, err := repo.GetStats(ctx)
	if err != nil {
		return err
	}

	out, err := formatter.NewFormatter().FormatStats(stats, format)
	if err != nil {
		return err
	}

	fmt.Fprint(w, out)

	return nil
}

func runFeedback(ctx context.Context, w io.Writer, repo storage.Repository, args []string) error {
	if len(args) < 2 {
		return errors.Newf(errors.ErrTypeValidation, "expected <id> <rating> [comment], got %d argument(s)", len(args)).
			WithSuggestion("Run 'energy-expert history' to find the id of an answer")
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		return errors.Wrapf(err, errors.ErrTypeValidation, "invalid history id %q", args[0])
	}

	rating, err := strconv.Atoi(args[1])
	if err != nil {
		return errors.Wrapf(err, errors.ErrTypeValidation, "invalid rating %q", args[1])
	}

	comment := strings.Join(args[2:], " ")

	if err := repo.SaveFeedback(ctx, id, rating, comment); err != nil {
		return err
	}

	fmt.Fprintf(w, "Feedback saved for %s (%d/%d)\n", id, rating, storage.MaxRating)

	return nil
}
