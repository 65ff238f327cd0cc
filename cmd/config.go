package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/energy-expert/internal/config"
	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/formatter"
)

func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:        "config",
		Usage:       "Display the active configuration",
		Description: `Show the configuration resolved from defaults, the .env file, ENERGY_EXPERT_* environment variables and command-line flags. Secrets are masked.`,
		Flags:       []cli.Flag{formatFlag()},
		Action: func(_ context.Context, cmd *cli.Command) error {
			format, err := formatter.ParseFormat(cmd.String(flagFormat))
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}

			return runConfig(stdout(cmd), cfg, format)
		},
	}
}

func runConfig(w io.Writer, cfg *config.Config, format formatter.OutputFormat) error {
	if cfg == nil {
		return errors.NewConfigError("failed to load configuration", "")
	}

	safe := cfg.Redacted()

	if format == formatter.FormatJSON {
		out, err := formatter.ToJSON(safe)
		if err != nil {
			return err
		}

		fmt.Fprint(w, out)

		return nil
	}

	fmt.Fprintln(w, "Active Configuration:")

	fmt.Fprintln(w, "\nDatabase:")
	fmt.Fprintf(w, "  URL: %s\n", safe.Database.URL)
	fmt.Fprintf(w, "  Schema: %s\n", safe.Database.Schema)
	fmt.Fprintf(w, "  Max Connections: %d\n", safe.Database.MaxConnections)
	fmt.Fprintf(w, "  Query Timeout: %s\n", safe.Database.QueryTimeout)

	fmt.Fprintln(w, "\nLLM:")
	fmt.Fprintf(w, "  Provider: %s\n", safe.LLM.Provider)
	fmt.Fprintf(w, "  Base URL: %s\n", safe.LLM.BaseURL)
	fmt.Fprintf(w, "  Model: %s\n", safe.LLM.Model)
	fmt.Fprintf(w, "  API Key: %s\n", valueOrNone(safe.LLM.APIKey))
	fmt.Fprintf(w, "  Timeout: %s\n", safe.LLM.Timeout)

	fmt.Fprintln(w, "\nPipeline:")
	fmt.Fprintf(w, "  Max Rows: %d\n", safe.Pipeline.MaxRows)
	fmt.Fprintf(w, "  Preview Rows: %d\n", safe.Pipeline.PreviewRows)

	fmt.Fprintln(w, "\nHistory:")
	fmt.Fprintf(w, "  Enabled: %t\n", safe.History.Enabled)

	if safe.History.Enabled {
		fmt.Fprintf(w, "  Path: %s\n", safe.History.Path)
	}

	fmt.Fprintln(w, "\nServer:")
	fmt.Fprintf(w, "  Address: %s\n", safe.Server.Addr)
	fmt.Fprintf(w, "  Rate Limit: %.2f rps (burst %d)\n", safe.Server.RateLimitRPS, safe.Server.RateLimitBurst)
	fmt.Fprintf(w, "  CORS Origins: %s\n", strings.Join(safe.Server.CORSAllowedOrigins, ", "))

	fmt.Fprintln(w, "\nLogging:")
	fmt.Fprintf(w, "  Level: %s\n", safe.Logging.Level)
	fmt.Fprintf(w, "  Format: %s\n", safe.Logging.Format)
	fmt.Fprintf(w, "  Output: %s\n", safe.Logging.Output)

	if safe.Logging.Output == "file" {
		fmt.Fprintf(w, "  File: %s\n", safe.Logging.File)
	}

	return nil
}

func valueOrNone(s string) string {
	if s == "" {
		return "(none)"
	}

	return s
}
