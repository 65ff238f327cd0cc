package cmd

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/energy-expert/internal/server"
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the question-answering pipeline over HTTP",
		Description: `Start the HTTP API. POST {"question": "..."} to /query; GET /schema and
/history are also available. Stops gracefully on SIGINT or SIGTERM.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides ENERGY_EXPERT_ADDR)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd, map[string]any{"addr": cmd.String("addr")})
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var history server.History
			if a.history != nil {
				history = a.history
			}

			return server.New(cfg.Server, a.orchestrator, a.catalog, history).ListenAndServe(ctx)
		},
	}
}
