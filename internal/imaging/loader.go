package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// Decoded images are shrunk to fit this box before they are cached or
// returned. Every graphics mode is at most 320x240, so keeping twice that
// preserves enough detail for the final resample while bounding memory.
const (
	MaxSourceWidth  = 640
	MaxSourceHeight = 480
)

// DefaultCacheEntries bounds the number of decoded files kept in memory.
const DefaultCacheEntries = 64

// ImageCache provides thread-safe caching of decoded local image files.
//
// The cache stores PixelBuffers keyed by their file path. Once a file is
// decoded, subsequent Load() calls for the same path return the cached buffer
// without disk I/O. When the cache is full an arbitrary entry is evicted.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Example Usage
//
//	cache := imaging.NewImageCache(imaging.DefaultCacheEntries)
//	pix, err := cache.Load("/path/to/image.png")
//	if err != nil {
//	    return err
//	}
//	cache.Evict("/path/to/image.png") // Optional: free memory
type ImageCache struct {
	mu         sync.RWMutex
	images     map[string]*PixelBuffer
	maxEntries int
}

// NewImageCache creates an empty cache holding at most maxEntries images.
// A non-positive maxEntries selects DefaultCacheEntries.
func NewImageCache(maxEntries int) *ImageCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &ImageCache{
		images:     make(map[string]*PixelBuffer),
		maxEntries: maxEntries,
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Supported formats are PNG, JPEG, GIF, BMP and WebP. EXIF orientation is
// applied for JPEG files. The image is cached using the exact path string
// provided.
//
// # Errors
//
//   - Returns error if the file does not exist or cannot be read
//   - Returns error if the file is not a supported image
func (c *ImageCache) Load(path string) (*PixelBuffer, error) {
	c.mu.RLock()
	if pix, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return pix, nil
	}
	c.mu.RUnlock()

	pix, err := Open(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if len(c.images) >= c.maxEntries {
		for k := range c.images {
			delete(c.images, k)
			break
		}
	}
	c.images[path] = pix
	c.mu.Unlock()

	return pix, nil
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*PixelBuffer)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Open decodes the image file at path into a PixelBuffer no larger than
// MaxSourceWidth×MaxSourceHeight.
func Open(path string) (*PixelBuffer, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return capture(img), nil
}

// Decode reads an encoded image from r into a PixelBuffer no larger than
// MaxSourceWidth×MaxSourceHeight.
func Decode(r io.Reader) (*PixelBuffer, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return capture(img), nil
}

func capture(img image.Image) *PixelBuffer {
	b := img.Bounds()
	if b.Dx() > MaxSourceWidth || b.Dy() > MaxSourceHeight {
		// Fit only ever shrinks and keeps the aspect ratio
		img = imaging.Fit(img, MaxSourceWidth, MaxSourceHeight, imaging.Lanczos)
	}
	return FromImage(img)
}
