package cli

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ironsheep/symbol-takeoff/internal/history"
	"github.com/ironsheep/symbol-takeoff/internal/imaging"
	"github.com/ironsheep/symbol-takeoff/internal/tiling"
)

func newDetectCmd(a *app) *cobra.Command {
	var (
		engine   engineFlags
		detector detectorFlags
		dpi      int
		annotate string
		save     bool
		project  string
	)

	cmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "Detect symbols on a drawing page",
		Long: `Tiles the page, runs the detector on every kept tile and prints the
deduplicated page-level result as JSON.`,
		Example: `  # Built-in shape detector, default tiling
  symbol-takeoff detect E-101.png

  # Remote model server, tighter threshold, annotated copy
  symbol-takeoff detect E-101.png --detector remote --detector-url ws://localhost:8765/ws \
    --confidence 0.5 --annotate E-101-annotated.png

  # Keep the result in Redis history
  symbol-takeoff detect E-101.png --save --project "Level 1"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			engine.apply(cmd, &a.cfg.Engine)
			detector.apply(cmd, &a.cfg.Detector)

			var store history.Store
			if save {
				s, err := a.openHistory(ctx)
				if err != nil {
					return err
				}
				defer s.Close()
				store = s
			}

			img, err := imaging.NewPageCache().Load(path)
			if err != nil {
				return err
			}

			eng, closeDet, err := a.newEngine(ctx)
			if err != nil {
				return err
			}
			defer closeDet()

			res, err := eng.DetectPage(ctx, tiling.Page{Image: img, DPI: dpi}, a.cfg.Engine)
			if err != nil {
				return err
			}

			if annotate != "" {
				ann := imaging.Annotate(img, res.Boxes())
				if err := imaging.Save(ann.Image, annotate); err != nil {
					return err
				}
				a.log.WithFields(logrus.Fields{
					"path":    annotate,
					"drawn":   ann.Drawn,
					"skipped": ann.Skipped,
				}).Info("annotated page written")
			}

			if store != nil {
				entry := history.Entry{
					JobID:     res.JobID,
					Project:   project,
					Source:    path,
					CreatedAt: time.Now(),
					Result:    res,
				}
				if err := store.Save(ctx, entry); err != nil {
					return fmt.Errorf("failed to save result: %w", err)
				}
				a.log.WithField("job_id", res.JobID).Info("result saved to history")
			}

			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	engine.register(cmd)
	detector.register(cmd)
	cmd.Flags().IntVar(&dpi, "dpi", 0, "Scan resolution, recorded in the result")
	cmd.Flags().StringVar(&annotate, "annotate", "", "Write a copy of the page with detection boxes to this file")
	cmd.Flags().BoolVar(&save, "save", false, "Store the result in Redis history")
	cmd.Flags().StringVar(&project, "project", "", "Project name recorded with --save")

	return cmd
}
