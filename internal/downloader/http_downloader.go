// Package downloader proxies CDN video content. The server fetches on the
// client's behalf so raw CDN URLs stay server-side.
package downloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/grabvid/grabvid/internal/config"
	"github.com/grabvid/grabvid/internal/domain"
)

// HTTPDownloader implements Downloader over plain HTTP requests.
type HTTPDownloader struct {
	// client is used for short requests (Probe) with an overall timeout
	client *http.Client
	// streamClient is used for streaming downloads without overall timeout
	streamClient *http.Client
	cfg          config.DownloadConfig
	logger       *slog.Logger
}

// NewHTTPDownloader creates an HTTP-based video downloader.
func NewHTTPDownloader(cfg config.DownloadConfig, logger *slog.Logger) *HTTPDownloader {
	// Streaming transport: no overall timeout, but cap header wait so a
	// dead CDN fails fast.
	streamTransport := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &HTTPDownloader{
		client: &http.Client{
			Timeout: cfg.ProbeTimeout,
		},
		streamClient: &http.Client{
			Transport: streamTransport,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// refererFor returns the browser referer matching the CDN's platform.
// Twitter's CDN rejects requests without one.
func refererFor(platform domain.Platform) string {
	if platform == domain.PlatformKuaishou {
		return "https://www.kuaishou.com/"
	}
	return "https://x.com/"
}

// Stream opens the CDN URL for reading, retrying transient failures with
// exponential backoff.
func (d *HTTPDownloader) Stream(ctx context.Context, platform domain.Platform, url string) (io.ReadCloser, *StreamInfo, error) {
	var lastErr error
	delay := d.cfg.RetryDelay

	for attempt := 0; attempt < d.cfg.MaxAttempts; attempt++ {
		reader, info, err := d.streamOnce(ctx, platform, url)
		if err == nil {
			return reader, info, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == d.cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > d.cfg.MaxRetryDelay {
			delay = d.cfg.MaxRetryDelay
		}
	}

	return nil, nil, lastErr
}

func (d *HTTPDownloader) streamOnce(ctx context.Context, platform domain.Platform, url string) (io.ReadCloser, *StreamInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set("Accept", "video/mp4,video/*;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Referer", refererFor(platform))

	resp, err := d.streamClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("send request: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusUnauthorized, http.StatusNotFound, http.StatusGone:
		resp.Body.Close()
		// CDN URLs are time-limited; a new resolve is the only cure.
		return nil, nil, domain.ErrUpstreamUnavailable
	case http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, nil, errRateLimited
	default:
		resp.Body.Close()
		return nil, nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	size := resp.ContentLength
	if size < 0 {
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			size, _ = strconv.ParseInt(cl, 10, 64)
		}
	}

	info := &StreamInfo{
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: size,
	}
	reader := newProgressReader(resp.Body, size, d.cfg.ReadTimeout, d.logger, url)
	return reader, info, nil
}

// Probe checks URL liveness with a HEAD request. Transport errors are
// reported through the result, not as errors.
func (d *HTTPDownloader) Probe(ctx context.Context, platform domain.Platform, url string) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set("Referer", refererFor(platform))

	resp, err := d.client.Do(req)
	if err != nil {
		return &ProbeResult{
			Accessible: false,
			Error:      err.Error(),
		}, nil
	}
	defer resp.Body.Close()

	result := &ProbeResult{
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Accessible:    resp.StatusCode == http.StatusOK,
	}
	if !result.Accessible {
		result.Error = fmt.Sprintf("status code %d", resp.StatusCode)
	}
	return result, nil
}

var errRateLimited = fmt.Errorf("rate limited by CDN")

func isRetryable(err error) bool {
	if err == errRateLimited {
		return true
	}
	if err == domain.ErrUpstreamUnavailable {
		return false
	}
	return true
}

// progressReader wraps an io.ReadCloser to log progress and detect stalls
// (no data for readTimeout).
type progressReader struct {
	reader      io.ReadCloser
	total       int64
	downloaded  int64
	readTimeout time.Duration
	lastRead    time.Time
	lastLog     time.Time
	logger      *slog.Logger
	url         string
	mu          sync.Mutex
	closed      bool
}

func newProgressReader(r io.ReadCloser, total int64, readTimeout time.Duration, logger *slog.Logger, url string) *progressReader {
	now := time.Now()
	return &progressReader{
		reader:      r,
		total:       total,
		readTimeout: readTimeout,
		lastRead:    now,
		lastLog:     now,
		logger:      logger,
		url:         url,
	}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	p.mu.Lock()
	defer p.mu.Unlock()

	if n > 0 {
		p.downloaded += int64(n)
		p.lastRead = time.Now()

		if time.Since(p.lastLog) > 30*time.Second {
			p.logProgress()
			p.lastLog = time.Now()
		}
	}

	if err == nil && p.readTimeout > 0 && time.Since(p.lastRead) > p.readTimeout {
		return n, fmt.Errorf("download stalled: no data received for %v", p.readTimeout)
	}

	return n, err
}

func (p *progressReader) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.downloaded > 0 {
		p.logProgress()
	}
	p.mu.Unlock()

	return p.reader.Close()
}

func (p *progressReader) logProgress() {
	if p.total > 0 {
		pct := float64(p.downloaded) / float64(p.total) * 100
		p.logger.Info("stream progress",
			"downloaded_mb", p.downloaded/(1024*1024),
			"total_mb", p.total/(1024*1024),
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
	} else {
		p.logger.Info("stream progress",
			"downloaded_mb", p.downloaded/(1024*1024),
		)
	}
}
