package takeoff

import (
	"sort"

	"github.com/ironsheep/symbol-takeoff/internal/detection"
	"github.com/ironsheep/symbol-takeoff/internal/imaging"
	"github.com/ironsheep/symbol-takeoff/internal/tiling"
)

// PageResult is the outcome of one DetectPage call.
type PageResult struct {
	JobID      string            `json:"job_id"`
	PageWidth  int               `json:"page_width"`
	PageHeight int               `json:"page_height"`
	DPI        int               `json:"dpi"`
	Detections []DetectionRecord `json:"detections"`
	Stats      ResultStats       `json:"stats"`
	Tiling     tiling.Stats      `json:"tiling"`
	Summary    map[string]int    `json:"summary"`
}

// DetectionRecord is one deduplicated symbol in page coordinates. PageX and
// PageY are the box center.
type DetectionRecord struct {
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	PageX      float64 `json:"page_x"`
	PageY      float64 `json:"page_y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	TileID     int     `json:"tile_id"`
}

// ResultStats summarises the scheduling run. ObjectsFound counts detections
// before cross-tile deduplication.
type ResultStats struct {
	TilesProcessed int     `json:"tiles_processed"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	CacheHits      int     `json:"cache_hits"`
	CacheMisses    int     `json:"cache_misses"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	EarlyStopped   bool    `json:"early_stopped"`
	ObjectsFound   int     `json:"objects_found"`
}

func newRecords(dets []detection.ProjectedDetection) []DetectionRecord {
	out := make([]DetectionRecord, len(dets))
	for i, d := range dets {
		out[i] = DetectionRecord{
			ClassName:  d.ClassName,
			Confidence: d.Confidence,
			PageX:      d.PageX,
			PageY:      d.PageY,
			Width:      d.Width,
			Height:     d.Height,
			TileID:     d.TileID,
		}
	}
	return out
}

func summarize(recs []DetectionRecord) map[string]int {
	out := make(map[string]int)
	for _, r := range recs {
		out[r.ClassName]++
	}
	return out
}

// Classes returns the summary's class names sorted by descending count, then
// by name.
func (r *PageResult) Classes() []string {
	names := make([]string, 0, len(r.Summary))
	for k := range r.Summary {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if r.Summary[names[i]] != r.Summary[names[j]] {
			return r.Summary[names[i]] > r.Summary[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// Boxes converts the detections for imaging.Annotate.
func (r *PageResult) Boxes() []imaging.Box {
	out := make([]imaging.Box, len(r.Detections))
	for i, d := range r.Detections {
		out[i] = imaging.Box{
			Class:      d.ClassName,
			Confidence: d.Confidence,
			CenterX:    d.PageX,
			CenterY:    d.PageY,
			Width:      d.Width,
			Height:     d.Height,
		}
	}
	return out
}
