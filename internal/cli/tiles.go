package cli

import (
	"github.com/spf13/cobra"

	"github.com/ironsheep/symbol-takeoff/internal/imaging"
	"github.com/ironsheep/symbol-takeoff/internal/server"
	"github.com/ironsheep/symbol-takeoff/internal/tiling"
)

type tilesOutput struct {
	Page  string        `json:"page"`
	Stats tiling.Stats  `json:"stats"`
	Tiles []tiling.Tile `json:"tiles"`
}

func newTilesCmd(a *app) *cobra.Command {
	var (
		engine  engineFlags
		overlay string
		color   string
	)

	cmd := &cobra.Command{
		Use:   "tiles <image>",
		Short: "Print the tiling plan for a page",
		Long: `Runs only the tiler and prints every kept tile with its position, size
and complexity, plus how many tiles were filtered as blank or edge tiles.`,
		Example: `  # Inspect the plan with 50% overlap and draw it
  symbol-takeoff tiles E-101.png --overlap 0.5 --overlay E-101-tiles.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine.apply(cmd, &a.cfg.Engine)

			img, err := imaging.NewPageCache().Load(args[0])
			if err != nil {
				return err
			}
			if err := a.cfg.Engine.Validate(); err != nil {
				return err
			}

			tiles, stats, err := tiling.CreateTiles(tiling.Page{Image: img}, a.cfg.Engine.TilingOptions())
			if err != nil {
				return err
			}

			if overlay != "" {
				rendered := imaging.TileOverlay(img, server.TileOutlines(tiles), color)
				if err := imaging.Save(rendered, overlay); err != nil {
					return err
				}
				a.log.WithField("path", overlay).Info("tile overlay written")
			}

			return printJSON(cmd.OutOrStdout(), tilesOutput{Page: args[0], Stats: stats, Tiles: tiles})
		},
	}

	engine.register(cmd)
	cmd.Flags().StringVar(&overlay, "overlay", "", "Write a copy of the page with tile outlines to this file")
	cmd.Flags().StringVar(&color, "color", "#FF000080", "Tile outline color as hex")

	return cmd
}
