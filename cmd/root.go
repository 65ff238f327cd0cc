package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/kyleking/energy-expert/internal/config"
	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/logging"
)

// Global flag names
const (
	flagLogLevel  = "log-level"
	flagDBURL     = "db-url"
	flagVerbose   = "verbose"
	flagModel     = "model"
	flagNoHistory = "no-history"
	flagFormat    = "format"
)

// NewRootCommand builds the energy-expert command tree
func NewRootCommand(version string) *cli.Command {
	return &cli.Command{
		Name:    "energy-expert",
		Usage:   "Ask questions about telecom site energy data in plain English",
		Version: version,
		Description: `energy-expert turns a natural-language question into a read-only SQL query
over the site energy database, runs it and explains the result.

Global flags must come before the command name, for example:
  energy-expert --verbose ask "Which sites had High Temp alarms yesterday?"`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "Log level: debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  flagDBURL,
				Usage: "PostgreSQL connection URL (overrides ENERGY_EXPERT_POSTGRES_URL)",
			},
			&cli.BoolFlag{
				Name:  flagVerbose,
				Usage: "Enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagModel,
				Usage: "Model name passed to the completion backend",
			},
			&cli.BoolFlag{
				Name:  flagNoHistory,
				Usage: "Do not record questions in the local history",
			},
		},
		Commands: []*cli.Command{
			AskCommand(),
			SQLCommand(),
			EvalCommand(),
			SchemaCommand(),
			ServeCommand(),
			HistoryCommand(),
			FeedbackCommand(),
			ConfigCommand(),
		},
	}
}

// Execute runs the command line with args (including the program name)
func Execute(ctx context.Context, args []string, version string) error {
	return NewRootCommand(version).Run(ctx, args)
}

// loadConfig resolves the configuration for cmd, applying the global flags
// and any command-specific overrides, then initializes logging.
func loadConfig(cmd *cli.Command, extra map[string]any) (*config.Config, error) {
	overrides := map[string]any{
		"db-url":     cmd.String(flagDBURL),
		"log-level":  cmd.String(flagLogLevel),
		"verbose":    cmd.Bool(flagVerbose),
		"model":      cmd.String(flagModel),
		"no-history": cmd.Bool(flagNoHistory),
	}

	for key, value := range extra {
		overrides[key] = value
	}

	cfg, err := config.LoadConfigWithOverrides(overrides)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeConfig, "failed to load configuration").
			WithSuggestion("Check your .env file and ENERGY_EXPERT_* environment variables")
	}

	if err := logging.InitializeLogger(cfg.Logging); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeConfig, "failed to initialize logging")
	}

	logging.WithFields(map[string]any{
		"command":  cmd.Name,
		"provider": cfg.LLM.Provider,
		"model":    cfg.LLM.Model,
	}).Debug("Configuration loaded")

	return cfg, nil
}

// formatFlag is shared by every command that prints results
func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    flagFormat,
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: text or json",
	}
}

// stdout returns the writer commands print results to
func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}

	return os.Stdout
}

// PrintError writes err and any suggestions it carries for a terminal user
func PrintError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)

	fmt.Fprintf(w, "%s %v\n", red.Sprint("Error:"), err)

	var structErr *errors.Error
	if !stderrors.As(err, &structErr) || len(structErr.Suggestions) == 0 {
		return
	}

	fmt.Fprintln(w, "\nSuggestions:")

	for _, suggestion := range structErr.Suggestions {
		fmt.Fprintf(w, "  - %s\n", suggestion)
	}
}
