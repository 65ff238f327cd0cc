package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/energy-expert/internal/database"
	"github.com/kyleking/energy-expert/internal/formatter"
	"github.com/kyleking/energy-expert/internal/schema"
)

func SchemaCommand() *cli.Command {
	return &cli.Command{
		Name:        "schema",
		Usage:       "Print the tables and columns questions are answered from",
		Description: `Read the live schema from information_schema, exactly as it is shown to the model.`,
		Flags:       []cli.Flag{formatFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format, err := formatter.ParseFormat(cmd.String(flagFormat))
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}

			db, err := database.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			return runSchema(ctx, stdout(cmd), schema.NewPostgresCatalog(db, cfg.Database.Schema), format)
		},
	}
}

func runSchema(ctx context.Context, w io.Writer, catalog schema.Catalog, format formatter.OutputFormat) error {
	desc, err := catalog.FetchSchema(ctx)
	if err != nil {
		return err
	}

	out, err := formatter.NewFormatter().FormatSchema(desc, format)
	if err != nil {
		return err
	}

	fmt.Fprint(w, out)

	return nil
}
