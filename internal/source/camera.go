package source

import (
	"context"
	"net/http"
	"time"

	apperrors "github.com/ironsheep/yail-server/internal/errors"
	"github.com/ironsheep/yail-server/internal/imaging"
)

// DefaultCameraTimeout bounds a single snapshot request.
const DefaultCameraTimeout = 10 * time.Second

// SnapshotCamera captures frames from a camera that serves still images over
// HTTP, such as most IP cameras and webcam bridges.
type SnapshotCamera struct {
	URL      string
	Client   *http.Client
	Timeout  time.Duration
	MaxBytes int64
}

// NewSnapshotCamera returns a camera reading snapshots from url. An empty url
// gives a camera that always reports source.not_available.
func NewSnapshotCamera(url string) *SnapshotCamera {
	return &SnapshotCamera{
		URL:      url,
		Client:   &http.Client{},
		Timeout:  DefaultCameraTimeout,
		MaxBytes: DefaultMaxImageBytes,
	}
}

// Capture fetches one frame.
func (c *SnapshotCamera) Capture(ctx context.Context) (*imaging.PixelBuffer, error) {
	if c == nil || c.URL == "" {
		return nil, apperrors.NotAvailable("no camera configured")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSourceNotAvailable, "invalid camera URL", err)
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	return fetchImage(client, req, c.MaxBytes, "camera capture")
}
