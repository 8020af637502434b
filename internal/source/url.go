package source

import (
	"context"
	"net/http"
	"time"

	apperrors "github.com/ironsheep/yail-server/internal/errors"
	"github.com/ironsheep/yail-server/internal/imaging"
)

// URLSource downloads and decodes images over HTTP.
type URLSource struct {
	Client   *http.Client
	Timeout  time.Duration
	MaxBytes int64
}

// NewURLSource returns a URLSource with the default timeout and size limit.
func NewURLSource() *URLSource {
	return &URLSource{
		Client:   &http.Client{},
		Timeout:  DefaultDownloadTimeout,
		MaxBytes: DefaultMaxImageBytes,
	}
}

// Fetch downloads url and decodes it.
func (s *URLSource) Fetch(ctx context.Context, url string) (*imaging.PixelBuffer, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSourceUpstream, "invalid image URL", err)
	}
	return fetchImage(s.client(), req, s.MaxBytes, "image download")
}

func (s *URLSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}
