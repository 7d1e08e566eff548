package takeoff

import (
	"fmt"
	"runtime"

	"github.com/go-playground/validator/v10"

	"github.com/ironsheep/symbol-takeoff/internal/detection"
	"github.com/ironsheep/symbol-takeoff/internal/tilecache"
	"github.com/ironsheep/symbol-takeoff/internal/tiling"
)

var validate = validator.New()

// Config holds the per-page processing knobs.
type Config struct {
	TileSize               int     `yaml:"tile_size" json:"tile_size" validate:"gte=1"`
	OverlapFraction        float64 `yaml:"overlap_fraction" json:"overlap_fraction" validate:"gte=0,lt=1"`
	ConfidenceThreshold    float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
	SkipBlank              bool    `yaml:"skip_blank" json:"skip_blank"`
	BlankWhiteRatio        float64 `yaml:"blank_white_ratio" json:"blank_white_ratio" validate:"gte=0,lte=1"`
	BlankVariance          float64 `yaml:"blank_variance" json:"blank_variance" validate:"gte=0"`
	SkipEdges              bool    `yaml:"skip_edges" json:"skip_edges"`
	EdgeMarginPx           int     `yaml:"edge_margin_px" json:"edge_margin_px" validate:"gte=0"`
	PrioritizeByComplexity bool    `yaml:"prioritize_by_complexity" json:"prioritize_by_complexity"`

	// MaxWorkers <= 1 processes tiles sequentially.
	MaxWorkers int `yaml:"max_workers" json:"max_workers" validate:"gte=0"`

	// CacheCapacity is read when the Engine is built.
	CacheCapacity int `yaml:"cache_capacity" json:"cache_capacity" validate:"gte=0"`

	// EarlyStopCount of 0 processes every tile.
	EarlyStopCount int `yaml:"early_stop_count" json:"early_stop_count" validate:"gte=0"`

	IoUSuppressionThreshold float64 `yaml:"iou_suppression_threshold" json:"iou_suppression_threshold" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the standard settings for 150-300 DPI sheets.
func DefaultConfig() Config {
	t := tiling.DefaultOptions()
	return Config{
		TileSize:                t.TileSize,
		OverlapFraction:         t.Overlap,
		ConfidenceThreshold:     0.25,
		SkipBlank:               t.SkipBlank,
		BlankWhiteRatio:         t.BlankWhiteRatio,
		BlankVariance:           t.BlankVariance,
		SkipEdges:               t.SkipEdges,
		EdgeMarginPx:            t.EdgeMargin,
		PrioritizeByComplexity:  t.PrioritizeByComplexity,
		MaxWorkers:              runtime.GOMAXPROCS(0),
		CacheCapacity:           tilecache.DefaultCapacity,
		EarlyStopCount:          0,
		IoUSuppressionThreshold: detection.DefaultIoUThreshold,
	}
}

// Validate reports the first invalid field. ConfidenceThreshold is not
// checked here; DetectPage clamps it.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// TilingOptions maps the config onto the tiler's options.
func (c Config) TilingOptions() tiling.Options {
	return tiling.Options{
		TileSize:               c.TileSize,
		Overlap:                c.OverlapFraction,
		SkipBlank:              c.SkipBlank,
		BlankWhiteRatio:        c.BlankWhiteRatio,
		BlankVariance:          c.BlankVariance,
		SkipEdges:              c.SkipEdges,
		EdgeMargin:             c.EdgeMarginPx,
		PrioritizeByComplexity: c.PrioritizeByComplexity,
	}
}
