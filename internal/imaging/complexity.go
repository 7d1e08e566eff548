package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// Complexity scores how much line work an image contains.
//
// The image is converted to luminance and run through a 3x3 edge filter
// (8-neighbour Laplacian, radius 1). The score is the summed filter response
// normalised by the maximum possible response, so it lies in [0, 1]: a flat
// region scores 0, dense hatching approaches 1.
func Complexity(img image.Image) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	edges := effect.EdgeDetection(imaging.Grayscale(img), 1)

	var sum uint64
	for y := 0; y < h; y++ {
		row := edges.Pix[y*edges.Stride : y*edges.Stride+w*4]
		for i := 0; i < len(row); i += 4 {
			sum += uint64(row[i])
		}
	}

	return float64(sum) / (float64(w) * float64(h) * 255)
}
