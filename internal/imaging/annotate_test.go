package imaging

import (
	"image/color"
	"testing"
)

func TestAnnotate(t *testing.T) {
	img := createInMemoryImage(200, 200, color.White)

	boxes := []Box{
		{Class: "smoke_detector", Confidence: 0.9, CenterX: 100, CenterY: 100, Width: 40, Height: 40},
		{Class: "horn_strobe", Confidence: 0.8, CenterX: 50, CenterY: 150, Width: 20, Height: 20},
		{Class: "smoke_detector", Confidence: 0.7, CenterX: 150, CenterY: 60, Width: 20, Height: 20},
	}

	res := Annotate(img, boxes)
	if res.Drawn != 3 || res.Skipped != 0 {
		t.Fatalf("drawn/skipped: got %d/%d, want 3/0", res.Drawn, res.Skipped)
	}
	if len(res.Colors) != 2 {
		t.Errorf("class colors: got %d, want 2", len(res.Colors))
	}
	if res.Colors["smoke_detector"] != ClassColor(0).Hex() {
		t.Errorf("first class color: got %s, want %s", res.Colors["smoke_detector"], ClassColor(0).Hex())
	}

	// bottom edge of the first box: (80..119, 119)
	r, g, b, _ := res.Image.At(100, 119).RGBA()
	if r>>8 == 255 && g>>8 == 255 && b>>8 == 255 {
		t.Error("expected box outline at bottom edge")
	}
	// source untouched
	if r, _, _, _ := img.At(100, 119).RGBA(); r>>8 != 255 {
		t.Error("Annotate modified its input")
	}
}

func TestAnnotate_SkipsInvalidBoxes(t *testing.T) {
	img := createInMemoryImage(100, 100, color.White)

	boxes := []Box{
		{Class: "a", Confidence: 0.5, CenterX: -50, CenterY: -50, Width: 10, Height: 10},
		{Class: "a", Confidence: 0.5, CenterX: 500, CenterY: 50, Width: 10, Height: 10},
		{Class: "a", Confidence: 0.5, CenterX: 50, CenterY: 50, Width: 0, Height: 10},
		{Class: "a", Confidence: 0.5, CenterX: 95, CenterY: 95, Width: 30, Height: 30}, // clipped, still drawn
	}

	res := Annotate(img, boxes)
	if res.Drawn != 1 || res.Skipped != 3 {
		t.Errorf("drawn/skipped: got %d/%d, want 1/3", res.Drawn, res.Skipped)
	}
}

func TestClassColor(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 12; i++ {
		h := ClassColor(i).Hex()
		if seen[h] {
			t.Errorf("ClassColor(%d) repeats %s", i, h)
		}
		seen[h] = true
	}
	if got := ClassColor(0).Hex(); got != "#ff6b6b" {
		t.Errorf("ClassColor(0): got %s, want #ff6b6b", got)
	}
}

func TestShortLabel(t *testing.T) {
	tests := []struct {
		class string
		conf  float64
		want  string
	}{
		{"smoke_detector", 0.87, "SM87%"},
		{"x", 0.5, "X50%"},
		{"pull_station", 1.0, "PU100%"},
		{"", 0.25, "25%"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := shortLabel(tt.class, tt.conf); got != tt.want {
				t.Errorf("shortLabel(%q, %v) = %q, want %q", tt.class, tt.conf, got, tt.want)
			}
		})
	}
}
