package detection

import (
	"context"
	"image"
	"math"
	"sort"
)

// Classes reported by ShapeDetector.
const (
	ClassCircleSymbol = 0
	ClassBoxSymbol    = 1
)

var shapeClasses = map[int]string{
	ClassCircleSymbol: "circle_symbol",
	ClassBoxSymbol:    "box_symbol",
}

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// ShapeDetector is an offline Detector for line-drawn symbols.
//
// Most device symbols on electrical and fire-alarm plans are drawn as small
// circles (detectors, speakers) or boxes (panels, modules, pull stations).
// ShapeDetector finds both without a trained model:
//
//   - Circles: Hough circle transform over the gradient edge map. Every edge
//     pixel votes for candidate centers at each radius. Peaks are then
//     verified by walking the candidate circumference; confidence is the
//     fraction of it that lies on an edge.
//   - Boxes: 8-connected edge contours whose pixels hug their own bounding
//     box and cover most of its perimeter.
//
// It is useful for smoke tests and for drawings where no model is deployed;
// it is not a substitute for a trained symbol model.
type ShapeDetector struct {
	// MinRadius and MaxRadius bound the circle radii searched, in pixels.
	MinRadius int
	MaxRadius int

	// RadiusStep is the spacing between searched radii. Values < 1 mean 1.
	RadiusStep int

	// MinCircleScore is the minimum circumference coverage for a circle.
	MinCircleScore float64

	// MinBoxSide and MaxBoxSide bound the box side lengths, in pixels.
	MinBoxSide int
	MaxBoxSide int

	// MinBoxScore is the minimum perimeter coverage times border purity for
	// a contour to count as a box.
	MinBoxScore float64
}

// NewShapeDetector returns a detector tuned for symbols drawn at roughly
// 150-350 DPI.
func NewShapeDetector() *ShapeDetector {
	return &ShapeDetector{
		MinRadius:      8,
		MaxRadius:      24,
		RadiusStep:     2,
		MinCircleScore: 0.85,
		MinBoxSide:     10,
		MaxBoxSide:     160,
		MinBoxScore:    0.8,
	}
}

// Classes returns the detector's class table.
func (s *ShapeDetector) Classes() map[int]string {
	out := make(map[int]string, len(shapeClasses))
	for k, v := range shapeClasses {
		out[k] = v
	}
	return out
}

// Detect finds circle and box symbols in tile.
func (s *ShapeDetector) Detect(ctx context.Context, tile *image.NRGBA, confidence float64) ([]RawDetection, error) {
	if tile == nil {
		return nil, nil
	}
	bounds := tile.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return nil, nil
	}

	edges := detectEdges(tile, width, height)

	circles, err := s.findCircles(ctx, edges, width, height)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	boxes := s.findBoxes(edges, width, height)

	dets := make([]RawDetection, 0, len(circles)+len(boxes))
	for _, c := range circles {
		if c.confidence < confidence {
			continue
		}
		dets = append(dets, RawDetection{
			ClassID:    ClassCircleSymbol,
			ClassName:  shapeClasses[ClassCircleSymbol],
			Confidence: c.confidence,
			CenterX:    float64(c.center.X),
			CenterY:    float64(c.center.Y),
			Width:      float64(2 * c.radius),
			Height:     float64(2 * c.radius),
		})
	}
	for _, b := range boxes {
		if b.confidence < confidence {
			continue
		}
		dets = append(dets, RawDetection{
			ClassID:    ClassBoxSymbol,
			ClassName:  shapeClasses[ClassBoxSymbol],
			Confidence: b.confidence,
			CenterX:    float64(b.min.X+b.max.X) / 2,
			CenterY:    float64(b.min.Y+b.max.Y) / 2,
			Width:      float64(b.max.X - b.min.X + 1),
			Height:     float64(b.max.Y - b.min.Y + 1),
		})
	}
	return dets, nil
}

type circle struct {
	center     Point
	radius     int
	votes      float64
	confidence float64
}

// findCircles runs the Hough circle transform over an edge map.
func (s *ShapeDetector) findCircles(ctx context.Context, edges [][]bool, width, height int) ([]circle, error) {
	step := s.RadiusStep
	if step < 1 {
		step = 1
	}

	var points []Point
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges[y][x] {
				points = append(points, Point{X: x, Y: y})
			}
		}
	}
	if len(points) == 0 {
		return nil, nil
	}

	acc := make([]int32, width*height)
	var found []circle

	for radius := max(s.MinRadius, 2); radius <= s.MaxRadius; radius += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range acc {
			acc[i] = 0
		}

		offsets := circleOffsets(radius)

		for _, p := range points {
			for _, o := range offsets {
				cx, cy := p.X-o.X, p.Y-o.Y
				if cx >= 0 && cx < width && cy >= 0 && cy < height {
					acc[cy*width+cx]++
				}
			}
		}

		circumference := 2 * math.Pi * float64(radius)
		threshold := 0.6 * circumference

		window := func(x, y int) float64 {
			var sum int32
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sum += acc[(y+dy)*width+x+dx]
				}
			}
			return float64(sum)
		}

		// centers must leave the whole circle inside the tile
		for y := radius; y < height-radius; y++ {
			for x := radius; x < width-radius; x++ {
				if acc[y*width+x] == 0 {
					continue
				}
				score := window(x, y)
				if score < threshold {
					continue
				}

				// local maximum within half a radius
				isMax := true
				reach := max(radius/2, 2)
				for dy := -reach; dy <= reach && isMax; dy++ {
					for dx := -reach; dx <= reach && isMax; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx, ny := x+dx, y+dy
						if nx < radius || nx >= width-radius || ny < radius || ny >= height-radius {
							continue
						}
						ns := window(nx, ny)
						// ties resolve to the first (top-left) position
						if ns > score || (ns == score && (dy < 0 || (dy == 0 && dx < 0))) {
							isMax = false
						}
					}
				}
				if !isMax {
					continue
				}

				coverage := circleCoverage(edges, x, y, offsets, width, height)
				if coverage < s.MinCircleScore {
					continue
				}
				found = append(found, circle{
					center:     Point{X: x, Y: y},
					radius:     radius,
					votes:      score,
					confidence: coverage,
				})
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].confidence != found[j].confidence {
			return found[i].confidence > found[j].confidence
		}
		return found[i].votes > found[j].votes
	})
	return filterDuplicateCircles(found), nil
}

// circleOffsets returns the integer points of a circle of the given radius
// around the origin, one per pixel of arc length.
func circleOffsets(radius int) []Point {
	n := int(math.Ceil(2 * math.Pi * float64(radius)))
	offsets := make([]Point, 0, n)
	for k := 0; k < n; k++ {
		rad := 2 * math.Pi * float64(k) / float64(n)
		o := Point{
			X: int(math.Round(float64(radius) * math.Cos(rad))),
			Y: int(math.Round(float64(radius) * math.Sin(rad))),
		}
		if len(offsets) > 0 && offsets[len(offsets)-1] == o {
			continue
		}
		offsets = append(offsets, o)
	}
	return offsets
}

// circleCoverage is the fraction of circumference points with an edge pixel
// on or 4-adjacent to them.
func circleCoverage(edges [][]bool, cx, cy int, offsets []Point, width, height int) float64 {
	if len(offsets) == 0 {
		return 0
	}
	hit := 0
	for _, o := range offsets {
		x, y := cx+o.X, cy+o.Y
		for _, d := range [5]Point{{0, 0}, {1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d.X, y+d.Y
			if nx >= 0 && nx < width && ny >= 0 && ny < height && edges[ny][nx] {
				hit++
				break
			}
		}
	}
	return float64(hit) / float64(len(offsets))
}

type box struct {
	min, max   Point
	confidence float64
}

// findBoxes keeps edge contours that trace the outline of their own bounding
// box.
func (s *ShapeDetector) findBoxes(edges [][]bool, width, height int) []box {
	var boxes []box
	for _, contour := range findContours(edges, width, height) {
		minP := Point{X: width, Y: height}
		maxP := Point{}
		for _, p := range contour {
			minP.X = min(minP.X, p.X)
			minP.Y = min(minP.Y, p.Y)
			maxP.X = max(maxP.X, p.X)
			maxP.Y = max(maxP.Y, p.Y)
		}

		w := maxP.X - minP.X + 1
		h := maxP.Y - minP.Y + 1
		if w < s.MinBoxSide || h < s.MinBoxSide || w > s.MaxBoxSide || h > s.MaxBoxSide {
			continue
		}

		score := boxScore(contour, minP, maxP)
		if score < s.MinBoxScore {
			continue
		}
		boxes = append(boxes, box{min: minP, max: maxP, confidence: score})
	}

	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].confidence > boxes[j].confidence
	})
	return boxes
}

// boxScore multiplies two fractions: contour pixels lying within a 2px band
// of the bounding box border (purity), and bounding box perimeter positions
// that have a contour pixel in that band (coverage).
func boxScore(contour []Point, minP, maxP Point) float64 {
	const band = 2

	w := maxP.X - minP.X + 1
	h := maxP.Y - minP.Y + 1
	top := make([]bool, w)
	bottom := make([]bool, w)
	left := make([]bool, h)
	right := make([]bool, h)

	onBorder := 0
	for _, p := range contour {
		hit := false
		if p.Y-minP.Y < band {
			top[p.X-minP.X] = true
			hit = true
		}
		if maxP.Y-p.Y < band {
			bottom[p.X-minP.X] = true
			hit = true
		}
		if p.X-minP.X < band {
			left[p.Y-minP.Y] = true
			hit = true
		}
		if maxP.X-p.X < band {
			right[p.Y-minP.Y] = true
			hit = true
		}
		if hit {
			onBorder++
		}
	}

	covered := 0
	for _, side := range [][]bool{top, bottom, left, right} {
		for _, v := range side {
			if v {
				covered++
			}
		}
	}

	purity := float64(onBorder) / float64(len(contour))
	coverage := float64(covered) / float64(2*(w+h))
	return purity * coverage
}

// detectEdges performs simple gradient-based edge detection.
//
// Pixels where |current - neighbor| > 30 (in grayscale) against the right or
// lower neighbour are marked as edges. Border pixels are never edges.
func detectEdges(img image.Image, width, height int) [][]bool {
	gray := grayPlane(img, width, height)
	edges := make([][]bool, height)
	const threshold = 30

	for y := 0; y < height; y++ {
		edges[y] = make([]bool, width)
		if y == 0 || y == height-1 {
			continue
		}
		for x := 1; x < width-1; x++ {
			c := int(gray[y*width+x])
			dx := c - int(gray[y*width+x+1])
			dy := c - int(gray[(y+1)*width+x])
			if dx > threshold || dx < -threshold || dy > threshold || dy < -threshold {
				edges[y][x] = true
			}
		}
	}

	return edges
}

// grayPlane flattens img to 0-based luminance values.
func grayPlane(img image.Image, width, height int) []uint8 {
	out := make([]uint8, width*height)
	bounds := img.Bounds()

	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := 0; y < height; y++ {
			row := nrgba.Pix[nrgba.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			for x := 0; x < width; x++ {
				r, g, b := row[x*4], row[x*4+1], row[x*4+2]
				out[y*width+x] = uint8(float64(r)*0.299 + float64(g)*0.587 + float64(b)*0.114)
			}
		}
		return out
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[y*width+x] = grayValue(img, x+bounds.Min.X, y+bounds.Min.Y)
		}
	}
	return out
}

// findContours finds connected components (contours) in a binary edge image.
//
// Uses flood-fill to group connected edge pixels into contours.
// Connectivity is 8-connected (includes diagonals).
//
// Contours smaller than 10 pixels are discarded as noise.
func findContours(edges [][]bool, width, height int) [][]Point {
	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	contours := make([][]Point, 0)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges[y][x] && !visited[y][x] {
				contour := make([]Point, 0)
				floodFill(edges, visited, x, y, width, height, &contour)
				if len(contour) >= 10 {
					contours = append(contours, contour)
				}
			}
		}
	}

	return contours
}

// floodFill performs iterative flood-fill from a starting point.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow
// on large contours. Marks visited pixels and appends them to the contour.
func floodFill(edges, visited [][]bool, startX, startY, width, height int, contour *[]Point) {
	stack := []Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !edges[p.Y][p.X] {
			continue
		}

		visited[p.Y][p.X] = true
		*contour = append(*contour, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
}

// grayValue converts a pixel to grayscale using ITU-R BT.601 luminance weights.
// Formula: Y = 0.299*R + 0.587*G + 0.114*B
func grayValue(img image.Image, x, y int) uint8 {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8((float64(r>>8)*0.299 + float64(g>>8)*0.587 + float64(b>>8)*0.114))
}

// filterDuplicateCircles removes circles with overlapping centers.
//
// Two circles are duplicates if the distance between their centers is less
// than the average of their radii. The earlier circle wins, so callers sort
// by score first.
func filterDuplicateCircles(circles []circle) []circle {
	if len(circles) == 0 {
		return circles
	}

	filtered := make([]circle, 0)
	for _, c := range circles {
		isDuplicate := false
		for _, f := range filtered {
			dx := c.center.X - f.center.X
			dy := c.center.Y - f.center.Y
			dist := math.Sqrt(float64(dx*dx + dy*dy))
			if dist < float64(c.radius+f.radius)/2 {
				isDuplicate = true
				break
			}
		}
		if !isDuplicate {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
