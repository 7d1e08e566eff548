package tiling

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/ironsheep/symbol-takeoff/internal/imaging"
)

// ErrInvalidPage is returned for pages without pixels.
var ErrInvalidPage = errors.New("invalid page")

// Page is a rasterised drawing sheet.
type Page struct {
	Image image.Image
	DPI   int
}

// Validate checks that the page has a decodable, non-empty raster.
func (p Page) Validate() error {
	if p.Image == nil {
		return fmt.Errorf("%w: no image", ErrInvalidPage)
	}
	b := p.Image.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: empty raster %dx%d", ErrInvalidPage, b.Dx(), b.Dy())
	}
	return nil
}

// Tile is a rectangular region of a page with its own copy of the pixels.
type Tile struct {
	ID         int          `json:"tile_id"`
	X          int          `json:"x"`
	Y          int          `json:"y"`
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	Complexity float64      `json:"complexity"`
	Pixels     *image.NRGBA `json:"-"`
}

// Rect returns the tile bounds in page coordinates.
func (t Tile) Rect() image.Rectangle {
	return image.Rect(t.X, t.Y, t.X+t.Width, t.Y+t.Height)
}

// Options controls tile generation.
type Options struct {
	TileSize               int
	Overlap                float64
	SkipBlank              bool
	BlankWhiteRatio        float64
	BlankVariance          float64
	SkipEdges              bool
	EdgeMargin             int
	PrioritizeByComplexity bool
}

// DefaultOptions returns the standard tiling parameters.
func DefaultOptions() Options {
	return Options{
		TileSize:               640,
		Overlap:                0.15,
		SkipBlank:              true,
		BlankWhiteRatio:        0.95,
		BlankVariance:          100,
		SkipEdges:              false,
		EdgeMargin:             50,
		PrioritizeByComplexity: true,
	}
}

// Stats counts what happened to the candidate tiles of one page.
type Stats struct {
	TotalCreated     int  `json:"total_created"`
	BlankFiltered    int  `json:"blank_filtered"`
	EdgeFiltered     int  `json:"edge_filtered"`
	Kept             int  `json:"kept"`
	FullPageFallback bool `json:"full_page_fallback"`
}

// Stride returns the step between neighbouring grid tiles, never below 1.
func Stride(tileSize int, overlap float64) int {
	s := int(float64(tileSize) * (1 - overlap))
	if s < 1 {
		return 1
	}
	return s
}

// Plan returns the candidate tile rectangles for a width x height page in
// generation order: the regular grid row by row, then the right-edge column,
// the bottom-edge row and finally the bottom-right corner.
func Plan(width, height, tileSize int, overlap float64) []image.Rectangle {
	if width <= 0 || height <= 0 || tileSize <= 0 {
		return nil
	}
	if width <= tileSize || height <= tileSize {
		return []image.Rectangle{image.Rect(0, 0, width, height)}
	}

	stride := Stride(tileSize, overlap)
	lastX, lastY := width-tileSize, height-tileSize
	ragX := lastX%stride != 0
	ragY := lastY%stride != 0

	sq := func(x, y int) image.Rectangle { return image.Rect(x, y, x+tileSize, y+tileSize) }

	var rects []image.Rectangle
	for y := 0; y <= lastY; y += stride {
		for x := 0; x <= lastX; x += stride {
			rects = append(rects, sq(x, y))
		}
	}
	if ragX {
		for y := 0; y <= lastY; y += stride {
			rects = append(rects, sq(lastX, y))
		}
	}
	if ragY {
		for x := 0; x <= lastX; x += stride {
			rects = append(rects, sq(x, lastY))
		}
	}
	if ragX && ragY {
		rects = append(rects, sq(lastX, lastY))
	}
	return rects
}

// IsEdgeTile reports whether r reaches into the page margin.
func IsEdgeTile(r image.Rectangle, width, height, margin int) bool {
	return r.Min.X < margin || r.Min.Y < margin ||
		r.Max.X > width-margin || r.Max.Y > height-margin
}

// CreateTiles cuts page into tiles according to opts.
//
// The returned slice is never empty for a valid page. Tile IDs follow
// generation order; when PrioritizeByComplexity is set the slice is then
// sorted by descending complexity (ties keep generation order).
func CreateTiles(page Page, opts Options) ([]Tile, Stats, error) {
	if err := page.Validate(); err != nil {
		return nil, Stats{}, err
	}
	if opts.TileSize < 1 {
		return nil, Stats{}, fmt.Errorf("tile size must be positive, got %d", opts.TileSize)
	}

	b := page.Image.Bounds()
	width, height := b.Dx(), b.Dy()

	if width <= opts.TileSize || height <= opts.TileSize {
		t, err := fullPageTile(page.Image, opts)
		if err != nil {
			return nil, Stats{}, err
		}
		return []Tile{t}, Stats{TotalCreated: 1, Kept: 1}, nil
	}

	var stats Stats
	var tiles []Tile

	for _, r := range Plan(width, height, opts.TileSize, opts.Overlap) {
		stats.TotalCreated++

		if opts.SkipEdges && IsEdgeTile(r, width, height, opts.EdgeMargin) {
			stats.EdgeFiltered++
			continue
		}

		px, err := imaging.CropTile(page.Image, r.Min.X, r.Min.Y, r.Dx(), r.Dy())
		if err != nil {
			return nil, stats, fmt.Errorf("cropping tile at (%d,%d): %w", r.Min.X, r.Min.Y, err)
		}

		if opts.SkipBlank && imaging.ComputeGrayStats(px).IsBlank(opts.BlankWhiteRatio, opts.BlankVariance) {
			stats.BlankFiltered++
			continue
		}

		t := Tile{
			ID:     len(tiles),
			X:      r.Min.X,
			Y:      r.Min.Y,
			Width:  r.Dx(),
			Height: r.Dy(),
			Pixels: px,
		}
		if opts.PrioritizeByComplexity {
			t.Complexity = imaging.Complexity(px)
		}
		tiles = append(tiles, t)
	}
	stats.Kept = len(tiles)

	if len(tiles) == 0 {
		t, err := fullPageTile(page.Image, opts)
		if err != nil {
			return nil, stats, err
		}
		stats.FullPageFallback = true
		return []Tile{t}, stats, nil
	}

	if opts.PrioritizeByComplexity {
		sort.SliceStable(tiles, func(i, j int) bool {
			return tiles[i].Complexity > tiles[j].Complexity
		})
	}

	return tiles, stats, nil
}

func fullPageTile(img image.Image, opts Options) (Tile, error) {
	b := img.Bounds()
	px, err := imaging.CropTile(img, 0, 0, b.Dx(), b.Dy())
	if err != nil {
		return Tile{}, err
	}
	t := Tile{Width: b.Dx(), Height: b.Dy(), Pixels: px}
	if opts.PrioritizeByComplexity {
		t.Complexity = imaging.Complexity(px)
	}
	return t, nil
}
