package takeoff

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/symbol-takeoff/internal/detection"
	"github.com/ironsheep/symbol-takeoff/internal/logging"
	"github.com/ironsheep/symbol-takeoff/internal/tilecache"
	"github.com/ironsheep/symbol-takeoff/internal/tiling"
)

// ErrInvalidInput is returned for pages or configs DetectPage cannot process.
var ErrInvalidInput = errors.New("invalid input")

// Options configures an Engine.
type Options struct {
	// CacheCapacity sizes the engine's tile cache; values < 1 disable it.
	CacheCapacity int

	// Classes overrides the detector's own class table for validation.
	Classes map[int]string

	// Logger defaults to discarding output.
	Logger logrus.FieldLogger
}

// Engine detects symbols on pages. It is safe for concurrent use; the tile
// cache is shared by every call on the same engine.
type Engine struct {
	detector detection.Detector
	cache    *tilecache.Cache
	classes  map[int]string
	log      logrus.FieldLogger
}

// New creates an engine around detector.
func New(detector detection.Detector, opts Options) (*Engine, error) {
	if detector == nil {
		return nil, errors.New("detector is required")
	}

	e := &Engine{
		detector: detector,
		classes:  opts.Classes,
		log:      opts.Logger,
	}
	if e.log == nil {
		e.log = logging.Discard()
	}
	if opts.CacheCapacity > 0 {
		e.cache = tilecache.New(opts.CacheCapacity)
	}
	return e, nil
}

// Tiles runs only the tiler with cfg's options.
func (e *Engine) Tiles(page tiling.Page, cfg Config) ([]tiling.Tile, tiling.Stats, error) {
	if err := checkInput(page, cfg); err != nil {
		return nil, tiling.Stats{}, err
	}
	return tiling.CreateTiles(page, cfg.TilingOptions())
}

// DetectPage tiles page, detects symbols on every kept tile and merges
// cross-tile duplicates.
//
// Per-tile detector failures are logged and do not fail the call. When ctx
// is cancelled, or the early-stop count is reached, the detections gathered
// so far are returned.
func (e *Engine) DetectPage(ctx context.Context, page tiling.Page, cfg Config) (*PageResult, error) {
	start := time.Now()
	jobID := uuid.New().String()
	log := e.log.WithField("job_id", jobID)

	if err := checkInput(page, cfg); err != nil {
		return nil, err
	}

	confidence := cfg.ConfidenceThreshold
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		clamped := math.Max(0, math.Min(1, confidence))
		if math.IsNaN(confidence) {
			clamped = DefaultConfig().ConfidenceThreshold
		}
		log.WithFields(logrus.Fields{
			"requested": confidence,
			"used":      clamped,
		}).Warn("confidence threshold out of range, clamping")
		confidence = clamped
	}

	tiles, tstats, err := tiling.CreateTiles(page, cfg.TilingOptions())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if tstats.FullPageFallback {
		log.WithFields(logrus.Fields{
			"total":          tstats.TotalCreated,
			"blank_filtered": tstats.BlankFiltered,
			"edge_filtered":  tstats.EdgeFiltered,
		}).Warn("every tile was filtered, falling back to the full page")
	}

	opts := detection.RunOptions{
		Detector:       e.detector,
		Confidence:     confidence,
		MaxWorkers:     cfg.MaxWorkers,
		EarlyStopCount: cfg.EarlyStopCount,
		Classes:        e.classes,
		Logger:         log,
	}
	// a nil *Cache in the interface would count every tile as a miss
	if e.cache != nil {
		opts.Cache = e.cache
	}

	raw, rstats := detection.Run(ctx, tiles, opts)
	merged := detection.Merge(raw, cfg.IoUSuppressionThreshold)

	if rstats.Canceled {
		log.WithFields(logrus.Fields{
			"processed": rstats.TilesProcessed,
			"tiles":     len(tiles),
		}).Warn("page processing canceled, returning partial results")
	}

	b := page.Image.Bounds()
	records := newRecords(merged)
	res := &PageResult{
		JobID:      jobID,
		PageWidth:  b.Dx(),
		PageHeight: b.Dy(),
		DPI:        page.DPI,
		Detections: records,
		Stats: ResultStats{
			TilesProcessed: rstats.TilesProcessed,
			CacheHits:      rstats.CacheHits,
			CacheMisses:    rstats.CacheMisses,
			EarlyStopped:   rstats.EarlyStopped,
			ObjectsFound:   rstats.ObjectsFound,
		},
		Tiling:  tstats,
		Summary: summarize(records),
	}
	if lookups := rstats.CacheHits + rstats.CacheMisses; lookups > 0 {
		res.Stats.CacheHitRate = float64(rstats.CacheHits) / float64(lookups)
	}
	res.Stats.ElapsedSeconds = time.Since(start).Seconds()

	log.WithFields(logrus.Fields{
		"page":       fmt.Sprintf("%dx%d", res.PageWidth, res.PageHeight),
		"tiles":      len(tiles),
		"processed":  rstats.TilesProcessed,
		"raw":        rstats.ObjectsFound,
		"kept":       len(records),
		"cache_hits": rstats.CacheHits,
		"elapsed":    time.Since(start).Round(time.Millisecond),
	}).Info("page processed")

	return res, nil
}

// CacheStats returns the tile cache counters. A disabled cache reports zeros.
func (e *Engine) CacheStats() tilecache.Stats {
	return e.cache.Stats()
}

// ClearCache drops every cached tile result.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

func checkInput(page tiling.Page, cfg Config) error {
	if err := page.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}
