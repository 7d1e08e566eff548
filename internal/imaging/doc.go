// Package imaging provides the pixel-level primitives used by the tiling and
// detection pipeline.
//
// This package loads page rasters, copies tile regions out of a page, computes
// the grayscale statistics used to recognise blank tiles, scores tile visual
// complexity, and renders annotated previews (detection boxes and tile outlines).
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x, y) is inclusive (top-left) and (x+w, y+h) is exclusive
//
// # Ownership
//
// CropTile always returns a fresh *image.NRGBA. Tiles never alias the page they
// were cut from, so a page may be released while its tiles are still in use.
//
// # Thread Safety
//
// The PageCache type is safe for concurrent use. All other functions are
// stateless and can be called concurrently on different images.
//
// # Performance Considerations
//
// Drawing pages are large (a 24x36in sheet at 350 DPI is roughly 8400x12600
// pixels). Use PageCache to avoid decoding the same page twice and Evict pages
// once a takeoff has finished.
package imaging
