// Package takeoff runs symbol detection over whole drawing pages.
//
// An Engine splits a page raster into overlapping tiles, runs a Detector on
// each tile through a bounded worker pool backed by a content-addressed tile
// cache, projects the hits into page coordinates and merges duplicates found
// by neighbouring tiles. The result is a PageResult with per-class counts
// ready for a quantity takeoff.
//
// Typical use:
//
//	eng, err := takeoff.New(detection.NewShapeDetector(), takeoff.Options{
//		CacheCapacity: cfg.CacheCapacity,
//		Logger:        log,
//	})
//	res, err := eng.DetectPage(ctx, tiling.Page{Image: img, DPI: 300}, cfg)
package takeoff
