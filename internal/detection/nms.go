package detection

import (
	"math"
	"sort"
)

// DefaultIoUThreshold is the overlap above which same-class boxes are merged.
const DefaultIoUThreshold = 0.5

// IoU returns the intersection-over-union of two center-anchored boxes.
// Degenerate boxes (zero area) yield 0.
func IoU(a, b ProjectedDetection) float64 {
	ax1, ay1 := a.PageX-a.Width/2, a.PageY-a.Height/2
	ax2, ay2 := a.PageX+a.Width/2, a.PageY+a.Height/2
	bx1, by1 := b.PageX-b.Width/2, b.PageY-b.Height/2
	bx2, by2 := b.PageX+b.Width/2, b.PageY+b.Height/2

	iw := math.Min(ax2, bx2) - math.Max(ax1, bx1)
	ih := math.Min(ay2, by2) - math.Max(ay1, by1)
	if iw <= 0 || ih <= 0 {
		return 0
	}

	inter := iw * ih
	union := a.Width*a.Height + b.Width*b.Height - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Merge performs class-aware greedy suppression.
//
// Detections are visited by descending confidence (ties keep input order). A
// detection is kept unless it overlaps an already kept detection of the same
// class with IoU strictly greater than threshold. The input slice is not
// modified.
func Merge(dets []ProjectedDetection, threshold float64) []ProjectedDetection {
	if len(dets) == 0 {
		return []ProjectedDetection{}
	}

	sorted := make([]ProjectedDetection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]ProjectedDetection, 0, len(sorted))
	byClass := make(map[string][]int)

	for _, d := range sorted {
		suppressed := false
		for _, k := range byClass[d.ClassName] {
			if IoU(d, kept[k]) > threshold {
				suppressed = true
				break
			}
		}
		if suppressed {
			continue
		}
		byClass[d.ClassName] = append(byClass[d.ClassName], len(kept))
		kept = append(kept, d)
	}

	return kept
}
