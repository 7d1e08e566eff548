package tilecache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	"github.com/cespare/xxhash/v2"
)

// ErrNoPixels is returned when a tile has nothing to digest.
var ErrNoPixels = errors.New("tile has no pixels")

// KeyFor returns a deterministic digest of the visible pixels and dimensions
// of img. Bit-identical tiles of equal size always share a key; the row stride
// and the image origin do not affect it.
func KeyFor(img *image.NRGBA) (string, error) {
	if img == nil {
		return "", ErrNoPixels
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w <= 0 || h <= 0 || len(img.Pix) == 0 {
		return "", ErrNoPixels
	}

	d := xxhash.New()

	var dims [8]byte
	binary.LittleEndian.PutUint32(dims[0:4], uint32(w))
	binary.LittleEndian.PutUint32(dims[4:8], uint32(h))
	_, _ = d.Write(dims[:])

	rowLen := w * 4
	for y := 0; y < h; y++ {
		off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		if off < 0 || off+rowLen > len(img.Pix) {
			return "", fmt.Errorf("%w: pixel buffer shorter than %dx%d", ErrNoPixels, w, h)
		}
		_, _ = d.Write(img.Pix[off : off+rowLen])
	}

	return fmt.Sprintf("%dx%d-%016x", w, h, d.Sum64()), nil
}
