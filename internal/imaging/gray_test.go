package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestComputeGrayStats(t *testing.T) {
	tests := []struct {
		name         string
		img          image.Image
		wantWhite    float64
		wantMean     float64
		wantVariance float64
	}{
		{"all white", createInMemoryImage(10, 10, color.White), 1, 255, 0},
		{"all black", createInMemoryImage(10, 10, color.Black), 0, 0, 0},
		{"threshold is exclusive", createInMemoryImage(4, 4, color.Gray{WhiteLevel}), 0, WhiteLevel, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ComputeGrayStats(tt.img)
			if s.WhiteRatio != tt.wantWhite {
				t.Errorf("WhiteRatio: got %v, want %v", s.WhiteRatio, tt.wantWhite)
			}
			if s.Mean != tt.wantMean {
				t.Errorf("Mean: got %v, want %v", s.Mean, tt.wantMean)
			}
			if s.Variance != tt.wantVariance {
				t.Errorf("Variance: got %v, want %v", s.Variance, tt.wantVariance)
			}
		})
	}
}

func TestComputeGrayStats_HalfAndHalf(t *testing.T) {
	img := createInMemoryImage(10, 10, color.White)
	for y := 0; y < 10; y++ {
		for x := 0; x < 5; x++ {
			img.Set(x, y, color.Black)
		}
	}

	s := ComputeGrayStats(img)
	if s.WhiteRatio != 0.5 {
		t.Errorf("WhiteRatio: got %v, want 0.5", s.WhiteRatio)
	}
	// two equal populations at 0 and 255: variance = (255/2)^2
	want := 127.5 * 127.5
	if math.Abs(s.Variance-want) > 1e-6 {
		t.Errorf("Variance: got %v, want %v", s.Variance, want)
	}
}

func TestComputeGrayStats_Empty(t *testing.T) {
	s := ComputeGrayStats(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	if s != (GrayStats{}) {
		t.Errorf("got %+v, want zero value", s)
	}
}

func TestGrayStats_IsBlank(t *testing.T) {
	tests := []struct {
		name  string
		stats GrayStats
		want  bool
	}{
		{"mostly white", GrayStats{WhiteRatio: 0.99, Variance: 500}, true},
		{"flat mid gray", GrayStats{WhiteRatio: 0, Variance: 10}, true},
		{"line work", GrayStats{WhiteRatio: 0.80, Variance: 3000}, false},
		{"ratio at limit", GrayStats{WhiteRatio: 0.95, Variance: 3000}, false},
		{"variance at limit", GrayStats{WhiteRatio: 0.5, Variance: 100}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stats.IsBlank(0.95, 100); got != tt.want {
				t.Errorf("IsBlank: got %v, want %v", got, tt.want)
			}
		})
	}
}
