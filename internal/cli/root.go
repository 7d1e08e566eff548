// Package cli wires the symbol-takeoff commands: detect, tiles, serve and
// history.
package cli

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ironsheep/symbol-takeoff/internal/config"
	"github.com/ironsheep/symbol-takeoff/internal/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// app carries the state shared by every subcommand once the persistent
// flags are parsed.
type app struct {
	version    string
	configPath string
	logLevel   string
	logFile    string

	cfg *config.Config
	log *logrus.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{version: version}

	cmd := &cobra.Command{
		Use:   "symbol-takeoff",
		Short: "Locate and count equipment symbols on large drawing pages",
		Long: `symbol-takeoff tiles large raster drawing pages, runs a symbol detector on
every tile in parallel, caches tile results by content and merges duplicate
detections across tile overlaps into one page-level takeoff.

Settings come from defaults, an optional YAML file (--config), a .env file
and TAKEOFF_* environment variables. Command flags override all of them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Also write logs to this rotating file")

	cmd.AddCommand(newDetectCmd(a))
	cmd.AddCommand(newTilesCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newHistoryCmd(a))

	return cmd
}

// setup loads the configuration and builds the logger. Logs go to the
// command's stderr so stdout stays clean for JSON and MCP traffic.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFile != "" {
		cfg.Log.File = a.logFile
	}
	cfg.Log.Output = cmd.ErrOrStderr()

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
