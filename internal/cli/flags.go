package cli

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ironsheep/symbol-takeoff/internal/config"
	"github.com/ironsheep/symbol-takeoff/internal/detection"
	"github.com/ironsheep/symbol-takeoff/internal/takeoff"
)

// engineFlags mirror takeoff.Config. Only flags set on the command line
// override the loaded configuration.
type engineFlags struct {
	tileSize      int
	overlap       float64
	confidence    float64
	skipBlank     bool
	skipEdges     bool
	edgeMargin    int
	prioritize    bool
	workers       int
	cacheCapacity int
	earlyStop     int
	iou           float64
	sequential    bool
}

func (f *engineFlags) register(cmd *cobra.Command) {
	d := takeoff.DefaultConfig()
	fs := cmd.Flags()

	fs.IntVar(&f.tileSize, "tile-size", d.TileSize, "Tile edge length in pixels")
	fs.Float64Var(&f.overlap, "overlap", d.OverlapFraction, "Tile overlap as a fraction of the tile size, in [0, 1)")
	fs.Float64Var(&f.confidence, "confidence", d.ConfidenceThreshold, "Minimum detection confidence")
	fs.BoolVar(&f.skipBlank, "skip-blank", d.SkipBlank, "Drop mostly-white, low-variance tiles")
	fs.BoolVar(&f.skipEdges, "skip-edges", d.SkipEdges, "Drop tiles touching the page margin")
	fs.IntVar(&f.edgeMargin, "edge-margin", d.EdgeMarginPx, "Margin width in pixels used by --skip-edges")
	fs.BoolVar(&f.prioritize, "prioritize", d.PrioritizeByComplexity, "Process visually busy tiles first")
	fs.IntVar(&f.workers, "workers", d.MaxWorkers, "Concurrent detector calls")
	fs.IntVar(&f.cacheCapacity, "cache-capacity", d.CacheCapacity, "Tile result cache entries (0 disables)")
	fs.IntVar(&f.earlyStop, "early-stop", d.EarlyStopCount, "Stop after this many detections (0 disables)")
	fs.Float64Var(&f.iou, "iou", d.IoUSuppressionThreshold, "Same-class IoU above which duplicates are merged")
	fs.BoolVar(&f.sequential, "sequential", false, "Process tiles one at a time (same as --workers 1)")
}

func (f *engineFlags) apply(cmd *cobra.Command, cfg *takeoff.Config) {
	fs := cmd.Flags()

	if fs.Changed("tile-size") {
		cfg.TileSize = f.tileSize
	}
	if fs.Changed("overlap") {
		cfg.OverlapFraction = f.overlap
	}
	if fs.Changed("confidence") {
		cfg.ConfidenceThreshold = f.confidence
	}
	if fs.Changed("skip-blank") {
		cfg.SkipBlank = f.skipBlank
	}
	if fs.Changed("skip-edges") {
		cfg.SkipEdges = f.skipEdges
	}
	if fs.Changed("edge-margin") {
		cfg.EdgeMarginPx = f.edgeMargin
	}
	if fs.Changed("prioritize") {
		cfg.PrioritizeByComplexity = f.prioritize
	}
	if fs.Changed("workers") {
		cfg.MaxWorkers = f.workers
	}
	if fs.Changed("cache-capacity") {
		cfg.CacheCapacity = f.cacheCapacity
	}
	if fs.Changed("early-stop") {
		cfg.EarlyStopCount = f.earlyStop
	}
	if fs.Changed("iou") {
		cfg.IoUSuppressionThreshold = f.iou
	}
	if f.sequential {
		cfg.MaxWorkers = 1
	}
}

type detectorFlags struct {
	kind       string
	url        string
	classesURL string
}

func (f *detectorFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.kind, "detector", config.DetectorShapes, "Detector to use: shapes or remote")
	fs.StringVar(&f.url, "detector-url", "", "Model server websocket URL for the remote detector")
	fs.StringVar(&f.classesURL, "detector-classes-url", "", "HTTP endpoint returning the remote detector's class table")
}

func (f *detectorFlags) apply(cmd *cobra.Command, cfg *config.DetectorConfig) {
	fs := cmd.Flags()
	if fs.Changed("detector") {
		cfg.Kind = f.kind
	}
	if fs.Changed("detector-url") {
		cfg.URL = f.url
	}
	if fs.Changed("detector-classes-url") {
		cfg.ClassesURL = f.classesURL
	}
}

// newDetector builds the configured Detection Capability. The returned
// close func is never nil.
func newDetector(ctx context.Context, dc config.DetectorConfig, log logrus.FieldLogger) (detection.Detector, func() error, error) {
	noop := func() error { return nil }

	switch dc.Kind {
	case config.DetectorShapes:
		return detection.NewShapeDetector(), noop, nil

	case config.DetectorRemote:
		rd, err := detection.NewRemoteDetector(detection.RemoteOptions{
			URL:        dc.URL,
			PoolSize:   dc.PoolSize,
			Timeout:    dc.Timeout,
			ClassesURL: dc.ClassesURL,
		})
		if err != nil {
			return nil, noop, err
		}
		if err := rd.LoadClasses(ctx); err != nil {
			rd.Close()
			return nil, noop, err
		}
		log.WithFields(logrus.Fields{
			"url":     dc.URL,
			"pool":    dc.PoolSize,
			"classes": len(rd.Classes()),
		}).Debug("remote detector ready")
		return rd, rd.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown detector %q", dc.Kind)
	}
}

// newEngine validates the effective configuration and builds the engine.
func (a *app) newEngine(ctx context.Context) (*takeoff.Engine, func() error, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, nil, err
	}

	det, closeDet, err := newDetector(ctx, a.cfg.Detector, a.log)
	if err != nil {
		return nil, nil, err
	}

	engine, err := takeoff.New(det, takeoff.Options{
		CacheCapacity: a.cfg.Engine.CacheCapacity,
		Logger:        a.log,
	})
	if err != nil {
		closeDet()
		return nil, nil, err
	}
	return engine, closeDet, nil
}
