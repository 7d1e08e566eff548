package tiling

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

// createBlankPage creates a solid white page.
func createBlankPage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

// createGridPage draws 1px black lines every `every` pixels in both directions
// on white, which keeps every region well above the blank thresholds.
func createGridPage(width, height, every int) *image.RGBA {
	img := createBlankPage(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x%every == 0 || y%every == 0 {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func noFilter(tileSize int, overlap float64) Options {
	return Options{TileSize: tileSize, Overlap: overlap}
}

func TestCreateTiles_SmallPageSingleTile(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
	}{
		{"smaller in both", 300, 200},
		{"exactly tile size", 640, 640},
		{"wider than tile, shorter than tile", 700, 500},
		{"taller than tile, narrower than tile", 500, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// blank page: the single-tile path must not filter
			page := Page{Image: createBlankPage(tt.width, tt.height)}

			tiles, stats, err := CreateTiles(page, DefaultOptions())
			if err != nil {
				t.Fatalf("CreateTiles failed: %v", err)
			}
			if len(tiles) != 1 {
				t.Fatalf("tile count: got %d, want 1", len(tiles))
			}
			tile := tiles[0]
			if tile.X != 0 || tile.Y != 0 || tile.Width != tt.width || tile.Height != tt.height {
				t.Errorf("tile: got (%d,%d %dx%d), want (0,0 %dx%d)",
					tile.X, tile.Y, tile.Width, tile.Height, tt.width, tt.height)
			}
			if tile.Pixels.Bounds().Dx() != tt.width || tile.Pixels.Bounds().Dy() != tt.height {
				t.Errorf("pixel bounds: got %v", tile.Pixels.Bounds())
			}
			want := Stats{TotalCreated: 1, Kept: 1}
			if stats != want {
				t.Errorf("stats: got %+v, want %+v", stats, want)
			}
		})
	}
}

func TestCreateTiles_FullCoverage(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		tileSize      int
		overlap       float64
	}{
		{"no overlap, ragged", 1000, 900, 300, 0},
		{"no overlap, flush", 1200, 900, 300, 0},
		{"default overlap", 2000, 1500, 640, 0.15},
		{"heavy overlap", 800, 700, 256, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := Page{Image: createBlankPage(tt.width, tt.height)}
			tiles, _, err := CreateTiles(page, noFilter(tt.tileSize, tt.overlap))
			if err != nil {
				t.Fatalf("CreateTiles failed: %v", err)
			}

			covered := make([]bool, tt.width*tt.height)
			for _, tile := range tiles {
				if tile.Width != tt.tileSize || tile.Height != tt.tileSize {
					t.Errorf("tile %d: size %dx%d, want %dx%d", tile.ID, tile.Width, tile.Height, tt.tileSize, tt.tileSize)
				}
				if tile.X < 0 || tile.Y < 0 || tile.X+tile.Width > tt.width || tile.Y+tile.Height > tt.height {
					t.Fatalf("tile %d outside page: %v", tile.ID, tile.Rect())
				}
				for y := tile.Y; y < tile.Y+tile.Height; y++ {
					for x := tile.X; x < tile.X+tile.Width; x++ {
						covered[y*tt.width+x] = true
					}
				}
			}

			for i, c := range covered {
				if !c {
					t.Fatalf("pixel (%d,%d) not covered", i%tt.width, i/tt.width)
				}
			}
		})
	}
}

func TestCreateTiles_NoOverlapTilesDoNotOverlapOnGrid(t *testing.T) {
	page := Page{Image: createBlankPage(1200, 900)}
	tiles, stats, err := CreateTiles(page, noFilter(300, 0))
	if err != nil {
		t.Fatalf("CreateTiles failed: %v", err)
	}
	// flush 4x3 grid, no edge tiles needed
	if len(tiles) != 12 || stats.TotalCreated != 12 {
		t.Fatalf("tiles: got %d (created %d), want 12", len(tiles), stats.TotalCreated)
	}
	for i := range tiles {
		for j := i + 1; j < len(tiles); j++ {
			if tiles[i].Rect().Overlaps(tiles[j].Rect()) {
				t.Errorf("tiles %d and %d overlap", tiles[i].ID, tiles[j].ID)
			}
		}
	}
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		tileSize      int
		overlap       float64
		want          []image.Rectangle
	}{
		{
			"flush grid",
			1280, 1280, 640, 0,
			[]image.Rectangle{
				image.Rect(0, 0, 640, 640), image.Rect(640, 0, 1280, 640),
				image.Rect(0, 640, 640, 1280), image.Rect(640, 640, 1280, 1280),
			},
		},
		{
			"grid plus right column, bottom row and corner",
			1000, 1000, 640, 0.15,
			[]image.Rectangle{
				image.Rect(0, 0, 640, 640),
				image.Rect(360, 0, 1000, 640),
				image.Rect(0, 360, 640, 1000),
				image.Rect(360, 360, 1000, 1000),
			},
		},
		{
			"ragged width only",
			1000, 1280, 640, 0,
			[]image.Rectangle{
				image.Rect(0, 0, 640, 640), image.Rect(0, 640, 640, 1280),
				image.Rect(360, 0, 1000, 640), image.Rect(360, 640, 1000, 1280),
			},
		},
		{
			"single tile",
			700, 500, 640, 0.15,
			[]image.Rectangle{image.Rect(0, 0, 700, 500)},
		},
		{"empty page", 0, 100, 640, 0.15, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(tt.width, tt.height, tt.tileSize, tt.overlap)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d rects %v, want %d %v", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("rect %d: got %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestStride(t *testing.T) {
	tests := []struct {
		tileSize int
		overlap  float64
		want     int
	}{
		{640, 0.15, 544},
		{640, 0, 640},
		{1024, 0.125, 896},
		{640, 1, 1},
		{640, 0.9999, 1},
	}

	for _, tt := range tests {
		if got := Stride(tt.tileSize, tt.overlap); got != tt.want {
			t.Errorf("Stride(%d, %v) = %d, want %d", tt.tileSize, tt.overlap, got, tt.want)
		}
	}
}

func TestCreateTiles_AllBlankFallsBackToFullPage(t *testing.T) {
	page := Page{Image: createBlankPage(2000, 2000)}

	tiles, stats, err := CreateTiles(page, DefaultOptions())
	if err != nil {
		t.Fatalf("CreateTiles failed: %v", err)
	}
	if stats.Kept != 0 {
		t.Errorf("Kept: got %d, want 0", stats.Kept)
	}
	if !stats.FullPageFallback {
		t.Error("FullPageFallback not set")
	}
	if stats.BlankFiltered != stats.TotalCreated || stats.TotalCreated == 0 {
		t.Errorf("blank filtered %d of %d", stats.BlankFiltered, stats.TotalCreated)
	}
	if len(tiles) != 1 {
		t.Fatalf("tile count: got %d, want 1", len(tiles))
	}
	if r := tiles[0].Rect(); r != image.Rect(0, 0, 2000, 2000) {
		t.Errorf("fallback tile: got %v, want full page", r)
	}
}

func TestCreateTiles_EdgeFiltering(t *testing.T) {
	page := Page{Image: createGridPage(2000, 2000, 10)}
	opts := DefaultOptions()
	opts.SkipEdges = true
	opts.EdgeMargin = 50

	tiles, stats, err := CreateTiles(page, opts)
	if err != nil {
		t.Fatalf("CreateTiles failed: %v", err)
	}

	// only tiles with origins 544 and 1088 in both axes stay clear of the margin
	if stats.Kept != 4 || len(tiles) != 4 {
		t.Errorf("kept: got %d (%d tiles), want 4", stats.Kept, len(tiles))
	}
	if stats.EdgeFiltered != stats.TotalCreated-4 {
		t.Errorf("EdgeFiltered: got %d, want %d", stats.EdgeFiltered, stats.TotalCreated-4)
	}
	if stats.BlankFiltered != 0 {
		t.Errorf("BlankFiltered: got %d, want 0", stats.BlankFiltered)
	}
	for _, tile := range tiles {
		if IsEdgeTile(tile.Rect(), 2000, 2000, 50) {
			t.Errorf("edge tile %v kept", tile.Rect())
		}
	}
}

func TestCreateTiles_BlankFilteringKeepsLineWork(t *testing.T) {
	img := createBlankPage(1280, 640+1)
	// line work only in the left half
	for y := 0; y < 641; y++ {
		for x := 0; x < 640; x++ {
			if x%8 == 0 || y%8 == 0 {
				img.Set(x, y, color.Black)
			}
		}
	}
	opts := DefaultOptions()
	opts.Overlap = 0

	tiles, stats, err := CreateTiles(Page{Image: img}, opts)
	if err != nil {
		t.Fatalf("CreateTiles failed: %v", err)
	}
	if stats.BlankFiltered == 0 {
		t.Error("expected the empty right half to be filtered")
	}
	for _, tile := range tiles {
		if tile.X >= 640 {
			t.Errorf("blank tile at %v kept", tile.Rect())
		}
	}
	if stats.Kept != len(tiles) {
		t.Errorf("Kept %d != len(tiles) %d", stats.Kept, len(tiles))
	}
}

func TestCreateTiles_PrioritizeByComplexity(t *testing.T) {
	img := createGridPage(1280, 1280, 20)
	// dense hatching in the bottom-right quadrant
	for y := 640; y < 1280; y++ {
		for x := 640; x < 1280; x++ {
			if x%3 == 0 {
				img.Set(x, y, color.Black)
			}
		}
	}
	opts := DefaultOptions()
	opts.Overlap = 0

	tiles, _, err := CreateTiles(Page{Image: img}, opts)
	if err != nil {
		t.Fatalf("CreateTiles failed: %v", err)
	}
	if len(tiles) != 4 {
		t.Fatalf("tile count: got %d, want 4", len(tiles))
	}

	if tiles[0].X != 640 || tiles[0].Y != 640 {
		t.Errorf("busiest tile first: got %v", tiles[0].Rect())
	}
	// IDs follow generation order, so the bottom-right tile is #3
	if tiles[0].ID != 3 {
		t.Errorf("first tile ID: got %d, want 3", tiles[0].ID)
	}
	for i := 1; i < len(tiles); i++ {
		if tiles[i].Complexity > tiles[i-1].Complexity {
			t.Errorf("tiles not sorted by complexity at %d", i)
		}
	}

	seen := map[int]bool{}
	for _, tile := range tiles {
		if seen[tile.ID] {
			t.Errorf("duplicate tile ID %d", tile.ID)
		}
		seen[tile.ID] = true
	}
}

func TestCreateTiles_GenerationOrderWithoutPriority(t *testing.T) {
	opts := DefaultOptions()
	opts.Overlap = 0
	opts.PrioritizeByComplexity = false

	tiles, _, err := CreateTiles(Page{Image: createGridPage(1280, 1280, 10)}, opts)
	if err != nil {
		t.Fatalf("CreateTiles failed: %v", err)
	}
	for i, tile := range tiles {
		if tile.ID != i {
			t.Errorf("tile %d has ID %d", i, tile.ID)
		}
		if tile.Complexity != 0 {
			t.Errorf("tile %d complexity computed without prioritisation", i)
		}
	}
}

func TestCreateTiles_PixelsMatchPage(t *testing.T) {
	img := createGridPage(1400, 1400, 10)
	img.Set(700, 700, color.RGBA{255, 0, 0, 255})

	tiles, _, err := CreateTiles(Page{Image: img}, noFilter(640, 0.15))
	if err != nil {
		t.Fatalf("CreateTiles failed: %v", err)
	}

	found := 0
	for _, tile := range tiles {
		if !(image.Point{X: 700, Y: 700}).In(tile.Rect()) {
			continue
		}
		found++
		r, g, b, _ := tile.Pixels.At(700-tile.X, 700-tile.Y).RGBA()
		if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
			t.Errorf("tile %d: marker pixel is (%d,%d,%d), want red", tile.ID, r>>8, g>>8, b>>8)
		}
	}
	if found == 0 {
		t.Fatal("no tile contains the marker pixel")
	}
}

func TestCreateTiles_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		page Page
		opts Options
	}{
		{"nil image", Page{}, DefaultOptions()},
		{"zero width", Page{Image: image.NewRGBA(image.Rect(0, 0, 0, 100))}, DefaultOptions()},
		{"zero height", Page{Image: image.NewRGBA(image.Rect(0, 0, 100, 0))}, DefaultOptions()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := CreateTiles(tt.page, tt.opts)
			if !errors.Is(err, ErrInvalidPage) {
				t.Errorf("got %v, want ErrInvalidPage", err)
			}
		})
	}

	t.Run("zero tile size", func(t *testing.T) {
		_, _, err := CreateTiles(Page{Image: createBlankPage(10, 10)}, Options{TileSize: 0})
		if err == nil {
			t.Error("expected error")
		}
	})
}

func TestIsEdgeTile(t *testing.T) {
	tests := []struct {
		name string
		r    image.Rectangle
		want bool
	}{
		{"top-left corner", image.Rect(0, 0, 640, 640), true},
		{"inside margin", image.Rect(50, 50, 690, 690), false},
		{"left margin", image.Rect(49, 100, 689, 740), true},
		{"right margin", image.Rect(1311, 100, 1951, 740), true},
		{"right boundary exact", image.Rect(1310, 100, 1950, 740), false},
		{"bottom margin", image.Rect(100, 1311, 740, 1951), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEdgeTile(tt.r, 2000, 2000, 50); got != tt.want {
				t.Errorf("IsEdgeTile(%v) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}
