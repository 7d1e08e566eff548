package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/disintegration/imaging"
)

// Outline is a labelled rectangle drawn on top of a page.
type Outline struct {
	X      int
	Y      int
	Width  int
	Height int
	Label  string
}

// TileOverlay draws the outline of every tile onto a copy of img and tags each
// one with its label in the top-left corner. colorHex accepts "#RRGGBB" or
// "#RRGGBBAA"; an unparsable value falls back to opaque red.
func TileOverlay(img image.Image, outlines []Outline, colorHex string) *image.NRGBA {
	lineColor, err := parseHexColor(colorHex)
	if err != nil {
		lineColor = color.RGBA{255, 0, 0, 255}
	}

	dst := imaging.Clone(img)
	labelColor := color.RGBA{255, 255, 255, 255}

	for _, o := range outlines {
		drawRect(dst, o.X, o.Y, o.X+o.Width-1, o.Y+o.Height-1, lineColor)
		if o.Label != "" {
			drawLabel(dst, o.X+2, o.Y+2, o.Label, labelColor, lineColor)
		}
	}
	return dst
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	val, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, err
	}

	switch len(hex) {
	case 6:
		return color.RGBA{R: uint8(val >> 16), G: uint8(val >> 8), B: uint8(val), A: 255}, nil
	case 8:
		return color.RGBA{R: uint8(val >> 24), G: uint8(val >> 16), B: uint8(val >> 8), A: uint8(val)}, nil
	}
	return color.RGBA{}, fmt.Errorf("invalid hex color length")
}

// drawRect draws a 1px rectangle outline with inclusive corners, clipped to
// the image.
func drawRect(img *image.NRGBA, x1, y1, x2, y2 int, c color.Color) {
	for x := x1; x <= x2; x++ {
		setClipped(img, x, y1, c)
		setClipped(img, x, y2, c)
	}
	for y := y1; y <= y2; y++ {
		setClipped(img, x1, y, c)
		setClipped(img, x2, y, c)
	}
}

func setClipped(img *image.NRGBA, x, y int, c color.Color) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.Set(x, y, c)
	}
}

// 3x5 bitmap glyphs for labels. Lowercase input is upper-cased by drawLabel.
var glyphs = map[rune][5]string{
	'0': {"111", "101", "101", "101", "111"},
	'1': {"010", "110", "010", "010", "111"},
	'2': {"111", "001", "111", "100", "111"},
	'3': {"111", "001", "111", "001", "111"},
	'4': {"101", "101", "111", "001", "001"},
	'5': {"111", "100", "111", "001", "111"},
	'6': {"111", "100", "111", "101", "111"},
	'7': {"111", "001", "001", "001", "001"},
	'8': {"111", "101", "111", "101", "111"},
	'9': {"111", "101", "111", "001", "111"},
	'A': {"010", "101", "111", "101", "101"},
	'B': {"110", "101", "110", "101", "110"},
	'C': {"011", "100", "100", "100", "011"},
	'D': {"110", "101", "101", "101", "110"},
	'E': {"111", "100", "110", "100", "111"},
	'F': {"111", "100", "110", "100", "100"},
	'G': {"011", "100", "101", "101", "011"},
	'H': {"101", "101", "111", "101", "101"},
	'I': {"111", "010", "010", "010", "111"},
	'J': {"001", "001", "001", "101", "010"},
	'K': {"101", "101", "110", "101", "101"},
	'L': {"100", "100", "100", "100", "111"},
	'M': {"101", "111", "111", "101", "101"},
	'N': {"110", "101", "101", "101", "101"},
	'O': {"010", "101", "101", "101", "010"},
	'P': {"110", "101", "110", "100", "100"},
	'Q': {"010", "101", "101", "110", "011"},
	'R': {"110", "101", "110", "101", "101"},
	'S': {"011", "100", "010", "001", "110"},
	'T': {"111", "010", "010", "010", "010"},
	'U': {"101", "101", "101", "101", "111"},
	'V': {"101", "101", "101", "101", "010"},
	'W': {"101", "101", "111", "111", "101"},
	'X': {"101", "101", "010", "101", "101"},
	'Y': {"101", "101", "010", "010", "010"},
	'Z': {"111", "001", "010", "100", "111"},
	'%': {"101", "001", "010", "100", "101"},
	'#': {"101", "111", "101", "111", "101"},
	'-': {"000", "000", "111", "000", "000"},
	',': {"000", "000", "000", "010", "010"},
}

const (
	glyphAdvance = 4
	labelHeight  = 7
)

// labelWidth is the pixel width of text rendered by drawLabel.
func labelWidth(text string) int {
	return len([]rune(text)) * glyphAdvance
}

// drawLabel draws text with a 1px padded background box at (x, y).
func drawLabel(img *image.NRGBA, x, y int, text string, fg, bg color.Color) {
	w := labelWidth(text)
	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < w; dx++ {
			setClipped(img, x+dx, y+dy, bg)
		}
	}

	cx := x
	for _, ch := range text {
		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		glyph, ok := glyphs[ch]
		if ok {
			for row, line := range glyph {
				for col, pixel := range line {
					if pixel == '1' {
						setClipped(img, cx+col, y+row, fg)
					}
				}
			}
		}
		cx += glyphAdvance
	}
}
