package cli

import (
	"github.com/spf13/cobra"

	"github.com/ironsheep/symbol-takeoff/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		engine   engineFlags
		detector detectorFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Serves the takeoff tools over the Model Context Protocol (JSON-RPC 2.0,
one message per line on stdin/stdout). Logs go to stderr.

Engine flags set the base config; each tool call may override fields.`,
		Example: `  # Register with an MCP client
  symbol-takeoff serve --detector remote --detector-url ws://localhost:8765/ws`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine.apply(cmd, &a.cfg.Engine)
			detector.apply(cmd, &a.cfg.Detector)

			eng, closeDet, err := a.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDet()

			srv := server.New(eng, a.cfg.Engine, server.Options{
				Logger:  a.log,
				Version: a.version,
			})

			a.log.WithField("detector", a.cfg.Detector.Kind).Debug("mcp server starting")
			return srv.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	engine.register(cmd)
	detector.register(cmd)

	return cmd
}
