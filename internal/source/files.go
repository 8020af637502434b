package source

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	apperrors "github.com/ironsheep/yail-server/internal/errors"
	"github.com/ironsheep/yail-server/internal/imaging"
	"github.com/ironsheep/yail-server/internal/logger"
)

// DefaultExtensions lists the file types picked up by ScanDirectory.
var DefaultExtensions = []string{".jpg", ".jpeg", ".gif", ".png"}

// FileSource decodes local image files through a shared cache.
type FileSource struct {
	cache *imaging.ImageCache
}

// NewFileSource returns a FileSource backed by cache. A nil cache gets a
// default sized one.
func NewFileSource(cache *imaging.ImageCache) *FileSource {
	if cache == nil {
		cache = imaging.NewImageCache(imaging.DefaultCacheEntries)
	}
	return &FileSource{cache: cache}
}

// Fetch decodes the file at path.
func (s *FileSource) Fetch(ctx context.Context, path string) (*imaging.PixelBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Upstream("reading "+filepath.Base(path), err)
	}
	pix, err := s.cache.Load(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSourceUpstream, "cannot read "+filepath.Base(path), err)
	}
	return pix, nil
}

// ScanDirectory walks each path and calls record for every regular file with
// one of the given extensions. Paths may name files or directories; hidden
// files and directories are skipped. Unreadable entries are logged and
// skipped. It returns the number of files recorded.
func ScanDirectory(paths, extensions []string, record func(path string) bool) int {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make([]string, len(extensions))
	for i, e := range extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[i] = e
	}

	count := 0
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			logger.Warn("skipping image path", "path", root, "error", err)
			continue
		}
		if !info.IsDir() {
			if matchExt(root, exts) && record(root) {
				count++
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Warn("skipping unreadable entry", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && matchExt(path, exts) && record(path) {
				count++
			}
			return nil
		})
		if err != nil {
			logger.Warn("directory scan stopped early", "path", root, "error", err)
		}
	}
	return count
}

func matchExt(path string, exts []string) bool {
	return slices.Contains(exts, strings.ToLower(filepath.Ext(path)))
}
