// Package download stores episode enclosures in the destination directory.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const maxRedirects = 10

type Downloader struct {
	destDir    string
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
}

// NewHTTPClient returns a client that follows up to maxRedirects hops.
// Enclosure URLs commonly bounce through tracking redirects before reaching
// the media host.
func NewHTTPClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

func NewDownloader(destDir string, httpClient *http.Client, userAgent string, timeout time.Duration) *Downloader {
	return &Downloader{
		destDir:    destDir,
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

func (d *Downloader) DestDir() string {
	return d.destDir
}

// Fetch downloads url into destDir/filename and returns the number of bytes
// written. The body is streamed to a temp file and renamed on success, so a
// failed transfer never leaves a partial episode behind.
func (d *Downloader) Fetch(ctx context.Context, url, filename string) (int64, error) {
	if url == "" {
		return 0, fmt.Errorf("empty enclosure URL")
	}
	if filename == "" || filepath.Base(filename) != filename {
		return 0, fmt.Errorf("invalid destination file name %q", filename)
	}

	if err := os.MkdirAll(d.destDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create destination directory: %w", err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch enclosure: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(d.destDir, ".download-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	written, err := io.Copy(tmp, resp.Body)
	if err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("failed to read enclosure body: %w", err)
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		_ = tmp.Close()
		return 0, fmt.Errorf("short transfer: got %d of %d bytes", written, resp.ContentLength)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("failed to sync download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close download: %w", err)
	}

	target := filepath.Join(d.destDir, filename)
	if err := os.Rename(tmpName, target); err != nil {
		return 0, fmt.Errorf("failed to move download into place: %w", err)
	}

	slog.Debug("Enclosure saved", "url", url, "path", target, "bytes", written, "final_url", resp.Request.URL.String())
	return written, nil
}
