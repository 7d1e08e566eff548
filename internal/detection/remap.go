package detection

import "github.com/ironsheep/symbol-takeoff/internal/tiling"

// Project translates a tile-local detection into page coordinates. Tiles are
// cut at native resolution, so the translation is a pure offset and the box
// size is unchanged.
func Project(d RawDetection, tile tiling.Tile) ProjectedDetection {
	return ProjectedDetection{
		ClassID:    d.ClassID,
		ClassName:  d.ClassName,
		Confidence: d.Confidence,
		PageX:      float64(tile.X) + d.CenterX,
		PageY:      float64(tile.Y) + d.CenterY,
		Width:      d.Width,
		Height:     d.Height,
		TileID:     tile.ID,
	}
}
