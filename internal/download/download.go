package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/neurobench/neurobench/internal/ui"
	"golang.org/x/time/rate"
)

// Options controls a fetch.
type Options struct {
	// SHA256 is the expected hex digest of the file. Empty skips verification.
	SHA256 string
	// RateLimit caps the download in bytes per second. Zero means unlimited.
	RateLimit int64
	// Retries is the number of additional attempts after the first failure.
	Retries int
	// Timeout bounds a single attempt. Zero means no per-attempt timeout.
	Timeout time.Duration
	// Progress enables a progress bar on stdout.
	Progress bool
	// Description labels the progress bar.
	Description string
}

// Fetcher downloads dataset archives over HTTP.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with a default HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{},
	}
}

// Fetch downloads url into dest. The file is written to a temporary sibling
// and renamed into place only after the hash check passes, so dest is either
// absent or complete.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	var lastErr error
	attempts := opts.Retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		lastErr = f.fetchOnce(ctx, url, dest, opts)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("download failed after %d attempts: %w", attempts, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url, dest string, opts Options) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	var reader io.Reader = resp.Body
	if opts.RateLimit > 0 {
		reader = newLimitedReader(ctx, resp.Body, opts.RateLimit)
	}

	var bar *ui.ProgressBar
	if opts.Progress {
		desc := opts.Description
		if desc == "" {
			desc = "Downloading"
		}
		bar = ui.NewProgressBar(resp.ContentLength, desc)
		reader = io.TeeReader(reader, barWriter{bar})
	}

	tmpFile := dest + ".tmp"
	out, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	hasher := sha256.New()
	_, err = io.Copy(io.MultiWriter(out, hasher), reader)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("download interrupted: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to close temporary file: %w", closeErr)
	}
	if bar != nil {
		bar.Finish()
	}

	if opts.SHA256 != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if got != opts.SHA256 {
			os.Remove(tmpFile)
			return fmt.Errorf("checksum mismatch for %s: got %s want %s", url, got, opts.SHA256)
		}
	}

	// Rename to final location (atomic operation)
	if err := os.Rename(tmpFile, dest); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to move download into place: %w", err)
	}

	return nil
}

// VerifyFile checks an existing file against a hex SHA256 digest.
func VerifyFile(path, sha256hex string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return fmt.Errorf("failed to hash %s: %w", path, err)
	}

	got := hex.EncodeToString(hasher.Sum(nil))
	if got != sha256hex {
		return fmt.Errorf("checksum mismatch for %s: got %s want %s", path, got, sha256hex)
	}
	return nil
}

type barWriter struct {
	bar *ui.ProgressBar
}

func (w barWriter) Write(p []byte) (int, error) {
	w.bar.Add(int64(len(p)))
	return len(p), nil
}

// limitedReader throttles reads with a token bucket, one token per byte.
type limitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func newLimitedReader(ctx context.Context, r io.Reader, bytesPerSecond int64) *limitedReader {
	return &limitedReader{
		ctx:     ctx,
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), int(bytesPerSecond)),
	}
}

func (l *limitedReader) Read(p []byte) (int, error) {
	// Cap a single read at the bucket size so WaitN can always succeed.
	if burst := l.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := l.r.Read(p)
	if n > 0 {
		if werr := l.limiter.WaitN(l.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
