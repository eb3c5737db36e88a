// Package fetcher downloads upstream datasets and reads them as row streams
// from CSV, XLSX and ZIP sources.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// IsRemote reports whether source is an http(s) URL rather than a local path.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Localize returns a local path for source. Local paths must exist and are
// returned unchanged. URLs are downloaded into dir, named after the last
// path segment, or fallback when the URL has none.
func Localize(ctx context.Context, f Fetcher, source, dir, fallback string) (string, error) {
	if !IsRemote(source) {
		if _, err := os.Stat(source); err != nil {
			return "", eris.Wrapf(err, "fetcher: source %s", source)
		}
		return source, nil
	}

	u, err := url.Parse(source)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: parse url %s", source)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" || !strings.Contains(name, ".") {
		name = fallback
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create work dir")
	}
	dest := filepath.Join(dir, name)
	if _, err := f.DownloadToFile(ctx, source, dest); err != nil {
		return "", err
	}
	return dest, nil
}
