package detection

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/symbol-takeoff/internal/tiling"
)

// RunOptions configures a scheduling run.
type RunOptions struct {
	// Detector is required.
	Detector Detector

	// Confidence is the minimum confidence kept, in [0, 1].
	Confidence float64

	// MaxWorkers bounds concurrent detector calls. Values <= 1 run the
	// tiles sequentially in the calling goroutine.
	MaxWorkers int

	// Cache is optional.
	Cache ResultCache

	// EarlyStopCount stops dispatching new tiles once this many detections
	// have been gathered. Zero disables early stop.
	EarlyStopCount int

	// Classes validates detector class ids. When nil, the detector's own
	// table is used if it implements ClassProvider; otherwise any id passes.
	Classes map[int]string

	Logger logrus.FieldLogger
}

// RunStats describes one run.
type RunStats struct {
	TilesProcessed int           `json:"tiles_processed"`
	TilesSkipped   int           `json:"tiles_skipped"`
	CacheHits      int           `json:"cache_hits"`
	CacheMisses    int           `json:"cache_misses"`
	DetectorErrors int           `json:"detector_errors"`
	EarlyStopped   bool          `json:"early_stopped"`
	Canceled       bool          `json:"canceled"`
	ObjectsFound   int           `json:"objects_found"`
	Elapsed        time.Duration `json:"elapsed"`
}

type run struct {
	opts    RunOptions
	classes map[int]string
	log     logrus.FieldLogger

	results [][]ProjectedDetection

	processed atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
	failures  atomic.Int64
	found     atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
	stopped  atomic.Bool
}

// Run detects symbols on every tile and returns page-space detections in tile
// order, before deduplication. It never fails: detector errors are logged and
// counted, and the tile contributes no detections. Cancelling ctx stops
// dispatch and is passed to in-flight detector calls.
func Run(ctx context.Context, tiles []tiling.Tile, opts RunOptions) ([]ProjectedDetection, RunStats) {
	start := time.Now()

	r := &run{
		opts:    opts,
		classes: opts.Classes,
		log:     opts.Logger,
		results: make([][]ProjectedDetection, len(tiles)),
		stop:    make(chan struct{}),
	}
	if r.log == nil {
		r.log = discardLogger()
	}
	if r.classes == nil {
		if cp, ok := opts.Detector.(ClassProvider); ok {
			r.classes = cp.Classes()
		}
	}

	if opts.MaxWorkers <= 1 {
		r.sequential(ctx, tiles)
	} else {
		r.parallel(ctx, tiles)
	}

	var out []ProjectedDetection
	for _, dets := range r.results {
		out = append(out, dets...)
	}
	if out == nil {
		out = []ProjectedDetection{}
	}

	stats := RunStats{
		TilesProcessed: int(r.processed.Load()),
		CacheHits:      int(r.hits.Load()),
		CacheMisses:    int(r.misses.Load()),
		DetectorErrors: int(r.failures.Load()),
		EarlyStopped:   r.stopped.Load(),
		Canceled:       ctx.Err() != nil,
		ObjectsFound:   len(out),
		Elapsed:        time.Since(start),
	}
	stats.TilesSkipped = len(tiles) - stats.TilesProcessed

	r.log.WithFields(logrus.Fields{
		"tiles":         len(tiles),
		"processed":     stats.TilesProcessed,
		"objects":       stats.ObjectsFound,
		"cache_hits":    stats.CacheHits,
		"cache_misses":  stats.CacheMisses,
		"early_stopped": stats.EarlyStopped,
		"elapsed":       stats.Elapsed.Round(time.Millisecond),
	}).Debug("tile run finished")

	return out, stats
}

func (r *run) sequential(ctx context.Context, tiles []tiling.Tile) {
	for i := range tiles {
		if r.halted(ctx) {
			return
		}
		r.process(ctx, i, tiles[i])
	}
}

func (r *run) parallel(ctx context.Context, tiles []tiling.Tile) {
	var g errgroup.Group
	g.SetLimit(r.opts.MaxWorkers)

	for i := range tiles {
		if r.halted(ctx) {
			break
		}
		g.Go(func() error {
			// the slot may have been granted after the stop signal
			if r.halted(ctx) {
				return nil
			}
			r.process(ctx, i, tiles[i])
			return nil
		})
	}
	_ = g.Wait()
}

func (r *run) halted(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

func (r *run) process(ctx context.Context, i int, tile tiling.Tile) {
	raw := r.detectCached(ctx, tile)

	projected := make([]ProjectedDetection, 0, len(raw))
	for _, d := range raw {
		if d.Confidence < r.opts.Confidence {
			continue
		}
		projected = append(projected, Project(d, tile))
	}

	// each index is written by exactly one goroutine
	r.results[i] = projected
	r.processed.Add(1)

	total := r.found.Add(int64(len(projected)))
	if r.opts.EarlyStopCount > 0 && total >= int64(r.opts.EarlyStopCount) {
		r.stopOnce.Do(func() {
			r.stopped.Store(true)
			close(r.stop)
			r.log.WithFields(logrus.Fields{
				"found":     total,
				"threshold": r.opts.EarlyStopCount,
			}).Info("early stop threshold reached")
		})
	}
}

// detectCached returns validated detections for a tile, consulting the cache.
func (r *run) detectCached(ctx context.Context, tile tiling.Tile) []RawDetection {
	var key string
	if r.opts.Cache != nil {
		k, err := r.opts.Cache.Key(tile.Pixels)
		if err != nil {
			r.log.WithFields(logrus.Fields{"tile_id": tile.ID, "error": err}).Debug("tile not cacheable")
		} else {
			key = k
			if dets, ok := r.opts.Cache.Get(key); ok {
				r.hits.Add(1)
				return dets
			}
		}
		r.misses.Add(1)
	}

	// cached entries serve every threshold, so they hold the unfiltered output
	threshold := r.opts.Confidence
	if key != "" {
		threshold = 0
	}
	raw, err := r.detect(ctx, tile, threshold)
	if err != nil {
		r.failures.Add(1)
		r.log.WithFields(logrus.Fields{"tile_id": tile.ID, "error": err}).Warn("detector failed on tile")
		return nil
	}

	valid := make([]RawDetection, 0, len(raw))
	for _, d := range raw {
		v, err := d.Validate(r.classes)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"tile_id":    tile.ID,
				"class_id":   d.ClassID,
				"confidence": d.Confidence,
				"error":      err,
			}).Warn("dropping invalid detection")
			continue
		}
		valid = append(valid, v)
	}

	if key != "" {
		r.opts.Cache.Put(key, valid)
	}
	return valid
}

func (r *run) detect(ctx context.Context, tile tiling.Tile, threshold float64) (dets []RawDetection, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithField("stack", string(debug.Stack())).Debug("detector panic")
			err = fmt.Errorf("detector panic: %v", p)
		}
	}()
	return r.opts.Detector.Detect(ctx, tile.Pixels, threshold)
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
