// Package detection runs a symbol detector over page tiles and merges the
// results into one page-level detection set.
//
// # Detector
//
// A Detector is the pluggable inference capability: given a tile image and a
// confidence threshold it returns tile-local detections (center, size, class,
// confidence). The package ships two implementations, ShapeDetector (an
// offline circle/box symbol finder) and RemoteDetector (a websocket client for
// a model server). Anything else, such as an in-process ONNX runtime, only has
// to satisfy the interface.
//
// # Scheduling
//
// Run dispatches tiles to a bounded pool of workers (or a plain loop when
// MaxWorkers is 1). Each tile is looked up in an optional ResultCache before
// the detector is called. Detections are validated, filtered by the current
// confidence threshold and translated into page coordinates by adding the
// tile origin.
//
// When EarlyStopCount is set, the run stops dispatching new tiles once that
// many detections have been gathered. Tiles already in flight finish and
// their detections are kept.
//
// Output order follows the order of the input tiles, so parallel and
// sequential runs over the same tiles return identical results.
//
// # Deduplication
//
// Overlapping tiles see the same symbol more than once. Merge keeps the most
// confident detection of each cluster of same-class boxes whose
// intersection-over-union exceeds a threshold.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Detections are anchored at their box center
package detection
