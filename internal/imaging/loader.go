package imaging

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// PageCache provides thread-safe caching of decoded page rasters.
//
// Pages are keyed by the exact path string used to load them. Once a page is
// loaded, subsequent Load() calls for the same path return the cached copy
// without disk I/O. Pages stay in memory until Evict() or Clear() is called.
//
// # Example Usage
//
//	pages := imaging.NewPageCache()
//	img, err := pages.Load("/plans/E-101.png")
//	if err != nil {
//	    return err
//	}
//	defer pages.Evict("/plans/E-101.png")
type PageCache struct {
	mu    sync.RWMutex
	pages map[string]image.Image
}

// NewPageCache creates an empty page cache.
func NewPageCache() *PageCache {
	return &PageCache{
		pages: make(map[string]image.Image),
	}
}

// Load retrieves a page from the cache or decodes it from disk.
//
// Supported formats are those understood by github.com/disintegration/imaging
// (PNG, JPEG, GIF, TIFF, BMP). EXIF orientation is applied so that scanned
// sheets come out upright.
//
// # Errors
//
//   - Returns error if the file does not exist or cannot be read
//   - Returns error if the file is not a decodable image
func (c *PageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.pages[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}

	c.mu.Lock()
	c.pages[path] = img
	c.mu.Unlock()

	return img, nil
}

// Len reports the number of cached pages.
func (c *PageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages)
}

// Clear removes all pages from the cache.
func (c *PageCache) Clear() {
	c.mu.Lock()
	c.pages = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes a single page. Unknown paths are ignored.
func (c *PageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.pages, path)
	c.mu.Unlock()
}

// PageInfo contains metadata about a loaded page raster.
type PageInfo struct {
	// Width is the page width in pixels.
	Width int `json:"width"`

	// Height is the page height in pixels.
	Height int `json:"height"`

	// Format is derived from the file extension: "png", "jpeg", "gif",
	// "tiff", "bmp", or "unknown".
	Format string `json:"format"`

	// Megapixels is Width*Height/1e6, rounded to two decimals.
	Megapixels float64 `json:"megapixels"`

	// FileSizeBytes is the size of the file on disk.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadPageInfo loads a page through the cache and describes it.
func LoadPageInfo(cache *PageCache, path string) (*PageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	b := img.Bounds()
	mp := float64(b.Dx()*b.Dy()) / 1e6

	return &PageInfo{
		Width:         b.Dx(),
		Height:        b.Dy(),
		Format:        formatFromPath(path),
		Megapixels:    float64(int(mp*100+0.5)) / 100,
		FileSizeBytes: stat.Size(),
	}, nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".gif":
		return "gif"
	case ".tif", ".tiff":
		return "tiff"
	case ".bmp":
		return "bmp"
	}
	return "unknown"
}
