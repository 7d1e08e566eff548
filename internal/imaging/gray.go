package imaging

import (
	"image"

	"github.com/disintegration/imaging"
)

// WhiteLevel is the gray value above which a pixel counts as paper white.
const WhiteLevel = 240

// GrayStats summarises the luminance distribution of an image.
type GrayStats struct {
	// WhiteRatio is the fraction of pixels with gray value > WhiteLevel.
	WhiteRatio float64 `json:"white_ratio"`

	// Mean is the average gray value (0-255).
	Mean float64 `json:"mean"`

	// Variance is the population variance of the gray values.
	Variance float64 `json:"variance"`
}

// ComputeGrayStats converts img to luminance (ITU-R BT.601 weights) and
// returns its white ratio, mean and population variance. An empty image
// yields the zero value.
func ComputeGrayStats(img image.Image) GrayStats {
	gray := imaging.Grayscale(img)
	n := gray.Rect.Dx() * gray.Rect.Dy()
	if n == 0 {
		return GrayStats{}
	}

	var white int
	var sum, sumSq float64
	for y := 0; y < gray.Rect.Dy(); y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+gray.Rect.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			v := row[i]
			if v > WhiteLevel {
				white++
			}
			f := float64(v)
			sum += f
			sumSq += f * f
		}
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}

	return GrayStats{
		WhiteRatio: float64(white) / float64(n),
		Mean:       mean,
		Variance:   variance,
	}
}

// IsBlank reports whether stats describe an (almost) empty region: too much
// paper white, or too little tonal variation.
func (s GrayStats) IsBlank(whiteRatio, minVariance float64) bool {
	return s.WhiteRatio > whiteRatio || s.Variance < minVariance
}
