// Package source provides the collaborators that produce images for the
// server: local files, downloaded URLs, AI generators, web image search and
// a snapshot camera.
//
// Every collaborator returns an *imaging.PixelBuffer and reports failures as
// coded errors, so the dispatcher can answer clients with a stable code:
//
//	source.not_available  the collaborator is not configured or has nothing to offer
//	source.timeout        the collaborator exceeded its deadline
//	source.upstream       the collaborator answered with an error
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/ironsheep/yail-server/internal/errors"
	"github.com/ironsheep/yail-server/internal/imaging"
)

// ImageSource fetches one image identified by ref (a path or URL).
type ImageSource interface {
	Fetch(ctx context.Context, ref string) (*imaging.PixelBuffer, error)
}

// Generator creates an image from a text prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*imaging.PixelBuffer, error)
}

// Searcher finds image URLs matching a search phrase.
type Searcher interface {
	Search(ctx context.Context, terms string) ([]string, error)
}

// Camera captures a single frame.
type Camera interface {
	Capture(ctx context.Context) (*imaging.PixelBuffer, error)
}

// Default limits for HTTP based collaborators.
const (
	DefaultDownloadTimeout = 30 * time.Second
	DefaultMaxImageBytes   = 20 << 20
	userAgent              = "yail-server/1.0"
)

// Status codes at or above this are reported as upstream failures.
const badStatus = 300

// fetchImage performs req and decodes the response body as an image. The
// body is read through a limit of maxBytes.
func fetchImage(client *http.Client, req *http.Request, maxBytes int64, what string) (*imaging.PixelBuffer, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.Upstream(what, unwrapURLError(req.Context(), err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= badStatus {
		return nil, apperrors.Wrap(apperrors.CodeSourceUpstream, what+" failed", fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	body, err := readLimited(resp.Body, maxBytes)
	if err != nil {
		return nil, apperrors.Upstream(what, err)
	}

	pix, err := imaging.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSourceUpstream, what+" returned an unreadable image", err)
	}
	return pix, nil
}

// readLimited reads r to EOF, failing if more than limit bytes arrive.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxImageBytes
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("response larger than %d bytes", limit)
	}
	return body, nil
}

// unwrapURLError surfaces the context error behind a transport failure so
// deadline overruns are classified as timeouts.
func unwrapURLError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}
