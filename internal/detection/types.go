package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrInvalidDetection marks detector output that cannot be used.
var ErrInvalidDetection = errors.New("invalid detection")

// RawDetection is one detector hit in tile-local pixel coordinates.
type RawDetection struct {
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	CenterX    float64 `json:"x"`
	CenterY    float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// Validate checks d against the detector's class table. A nil table accepts
// any class id. On success the returned copy carries the class name from the
// table when the detector left it empty.
func (d RawDetection) Validate(classes map[int]string) (RawDetection, error) {
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return d, fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidDetection, d.Confidence)
	}
	for _, v := range []float64{d.CenterX, d.CenterY, d.Width, d.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return d, fmt.Errorf("%w: non-finite geometry", ErrInvalidDetection)
		}
	}
	if d.Width < 0 || d.Height < 0 {
		return d, fmt.Errorf("%w: negative size %vx%v", ErrInvalidDetection, d.Width, d.Height)
	}
	if classes != nil {
		name, ok := classes[d.ClassID]
		if !ok {
			return d, fmt.Errorf("%w: unknown class id %d", ErrInvalidDetection, d.ClassID)
		}
		if d.ClassName == "" {
			d.ClassName = name
		}
	}
	if d.ClassName == "" {
		d.ClassName = fmt.Sprintf("class_%d", d.ClassID)
	}
	return d, nil
}

// ProjectedDetection is a detection in page coordinates, tagged with the tile
// it came from.
type ProjectedDetection struct {
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	PageX      float64 `json:"page_x"`
	PageY      float64 `json:"page_y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	TileID     int     `json:"tile_id"`
}

// Detector locates symbols in a single tile.
//
// Implementations return tile-local center coordinates and must be safe for
// concurrent use. Detections below confidence may be returned; the scheduler
// filters them.
type Detector interface {
	Detect(ctx context.Context, tile *image.NRGBA, confidence float64) ([]RawDetection, error)
}

// ClassProvider is implemented by detectors that know their class table.
type ClassProvider interface {
	Classes() map[int]string
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, tile *image.NRGBA, confidence float64) ([]RawDetection, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, tile *image.NRGBA, confidence float64) ([]RawDetection, error) {
	return f(ctx, tile, confidence)
}

// ResultCache stores validated detector output by tile content.
type ResultCache interface {
	Key(tile *image.NRGBA) (string, error)
	Get(key string) ([]RawDetection, bool)
	Put(key string, dets []RawDetection)
}
