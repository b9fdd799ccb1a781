package downloader

import (
	"context"
	"io"

	"github.com/grabvid/grabvid/internal/domain"
)

// Downloader fetches video content from CDN URLs on the client's behalf.
type Downloader interface {
	// Stream opens the CDN URL for reading. Caller closes the reader.
	Stream(ctx context.Context, platform domain.Platform, url string) (io.ReadCloser, *StreamInfo, error)

	// Probe checks URL liveness without downloading the body.
	Probe(ctx context.Context, platform domain.Platform, url string) (*ProbeResult, error)
}

// StreamInfo describes an opened CDN stream.
type StreamInfo struct {
	ContentType   string
	ContentLength int64 // -1 when upstream did not report it
}

// ProbeResult is the outcome of a HEAD liveness check.
type ProbeResult struct {
	ContentType   string
	ContentLength int64
	Accessible    bool
	Error         string
}
