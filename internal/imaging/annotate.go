package imaging

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Box is a detection to draw, in page pixel coordinates with a center anchor.
type Box struct {
	Class      string
	Confidence float64
	CenterX    float64
	CenterY    float64
	Width      float64
	Height     float64
}

// basePalette holds the first class colours; further classes get generated hues.
var basePalette = []string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A", "#98D8C8"}

// ClassColor returns the colour for the i-th distinct class of a render.
func ClassColor(i int) colorful.Color {
	if i < len(basePalette) {
		c, err := colorful.Hex(basePalette[i])
		if err == nil {
			return c
		}
	}
	// golden-angle hue walk keeps neighbouring classes far apart
	return colorful.Hsv(math.Mod(float64(i)*137.508, 360), 0.65, 0.9)
}

// AnnotateResult describes an annotated render.
type AnnotateResult struct {
	Image   *image.NRGBA
	Drawn   int
	Skipped int
	Colors  map[string]string
}

// Annotate draws each box onto a copy of img with a per-class colour and a
// compact "<AB><pct>%" label above the box. Boxes are clipped to the page;
// boxes that are empty after clipping are skipped.
func Annotate(img image.Image, boxes []Box) *AnnotateResult {
	dst := imaging.Clone(img)
	pw, ph := dst.Rect.Dx(), dst.Rect.Dy()

	res := &AnnotateResult{Image: dst, Colors: make(map[string]string)}
	classIndex := make(map[string]int)
	white := colorful.Color{R: 1, G: 1, B: 1}

	for _, b := range boxes {
		w, h := math.Abs(b.Width), math.Abs(b.Height)
		x1 := max(0, int(b.CenterX-w/2))
		y1 := max(0, int(b.CenterY-h/2))
		x2 := min(pw, int(b.CenterX+w/2))
		y2 := min(ph, int(b.CenterY+h/2))

		if x1 >= pw || y1 >= ph || x2 <= 0 || y2 <= 0 || x1 >= x2 || y1 >= y2 {
			res.Skipped++
			continue
		}

		idx, ok := classIndex[b.Class]
		if !ok {
			idx = len(classIndex)
			classIndex[b.Class] = idx
		}
		c := ClassColor(idx)
		res.Colors[b.Class] = c.Hex()

		drawRect(dst, x1, y1, x2-1, y2-1, c)

		label := shortLabel(b.Class, b.Confidence)
		lx := x1 + 2
		ly := max(2, y1-labelHeight-2)
		if lw := labelWidth(label); lx+lw > pw {
			lx = max(0, pw-lw-1)
		}
		drawLabel(dst, lx, ly, label, white, c)
		res.Drawn++
	}

	return res
}

func shortLabel(class string, confidence float64) string {
	r := []rune(class)
	if len(r) > 2 {
		r = r[:2]
	}
	return fmt.Sprintf("%s%d%%", strings.ToUpper(string(r)), int(confidence*100))
}
