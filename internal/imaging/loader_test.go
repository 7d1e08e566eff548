package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// createInMemoryImage creates a solid-colour image without touching disk.
func createInMemoryImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createTestImage writes a solid-colour PNG and returns its path.
// The caller is responsible for removing the file.
func createTestImage(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test-page-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer tmpFile.Close()

	if err := png.Encode(tmpFile, createInMemoryImage(width, height, c)); err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to encode image: %v", err)
	}

	return tmpFile.Name()
}

func TestNewPageCache(t *testing.T) {
	cache := NewPageCache()
	if cache == nil {
		t.Fatal("NewPageCache returned nil")
	}
	if cache.Len() != 0 {
		t.Errorf("new cache Len: got %d, want 0", cache.Len())
	}
}

func TestPageCache_Load(t *testing.T) {
	path := createTestImage(t, 120, 80, color.White)
	defer os.Remove(path)

	cache := NewPageCache()
	img, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 80 {
		t.Errorf("dimensions: got %dx%d, want 120x80", img.Bounds().Dx(), img.Bounds().Dy())
	}

	again, err := cache.Load(path)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if again != img {
		t.Error("second Load did not return the cached image")
	}
	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}
}

func TestPageCache_Load_NonExistent(t *testing.T) {
	cache := NewPageCache()
	if _, err := cache.Load("/nonexistent/path/sheet.png"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPageCache_Load_InvalidImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-image.png")
	if err := os.WriteFile(path, []byte("definitely not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := NewPageCache()
	if _, err := cache.Load(path); err == nil {
		t.Error("expected error for invalid image data")
	}
}

func TestPageCache_EvictAndClear(t *testing.T) {
	p1 := createTestImage(t, 10, 10, color.Black)
	p2 := createTestImage(t, 10, 10, color.White)
	defer os.Remove(p1)
	defer os.Remove(p2)

	cache := NewPageCache()
	for _, p := range []string{p1, p2} {
		if _, err := cache.Load(p); err != nil {
			t.Fatalf("Load(%s): %v", p, err)
		}
	}

	cache.Evict(p1)
	cache.Evict("/never/loaded.png")
	if cache.Len() != 1 {
		t.Errorf("after Evict Len: got %d, want 1", cache.Len())
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("after Clear Len: got %d, want 0", cache.Len())
	}
}

func TestPageCache_ConcurrentAccess(t *testing.T) {
	path := createTestImage(t, 50, 50, color.Gray{128})
	defer os.Remove(path)

	cache := NewPageCache()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(path); err != nil {
				t.Errorf("concurrent Load failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}
}

func TestLoadPageInfo(t *testing.T) {
	path := createTestImage(t, 2000, 1000, color.White)
	defer os.Remove(path)

	info, err := LoadPageInfo(NewPageCache(), path)
	if err != nil {
		t.Fatalf("LoadPageInfo failed: %v", err)
	}
	if info.Width != 2000 || info.Height != 1000 {
		t.Errorf("dimensions: got %dx%d, want 2000x1000", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("Format: got %q, want png", info.Format)
	}
	if info.Megapixels != 2 {
		t.Errorf("Megapixels: got %v, want 2", info.Megapixels)
	}
	if info.FileSizeBytes <= 0 {
		t.Errorf("FileSizeBytes: got %d, want > 0", info.FileSizeBytes)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.png", "png"},
		{"a.PNG", "png"},
		{"a.jpg", "jpeg"},
		{"a.jpeg", "jpeg"},
		{"a.gif", "gif"},
		{"a.tif", "tiff"},
		{"a.bmp", "bmp"},
		{"a.webp", "unknown"},
		{"noext", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := formatFromPath(tt.path); got != tt.want {
				t.Errorf("formatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
