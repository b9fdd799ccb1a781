package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// DownloadStatus is the final outcome of a fulfillment attempt.
type DownloadStatus string

const (
	DownloadCompleted DownloadStatus = "completed"
	DownloadFailed    DownloadStatus = "failed"
)

// DownloadHistoryRecord is one append-only audit row per fulfillment
// attempt. Never mutated after insert.
type DownloadHistoryRecord struct {
	ID               int64
	DownloadNo       string
	UserUUID         string // empty for anonymous free-flow downloads
	Platform         Platform
	VideoURL         string // server-known CDN URL
	OriginalURL      string // the post URL the user pasted, when known
	Resolution       string
	Quality          string
	FileName         string
	FileSize         int64 // 0 when upstream did not report Content-Length
	CreditsConsumed  int64
	Status           DownloadStatus
	Username         string // twitter author, when known
	StatusID         string // twitter status ID, when known
	VideoID          string // kuaishou video ID, when known
	Description      string
	CreatedAt        time.Time
}

// NewDownloadNo generates a sortable download serial number.
func NewDownloadNo() string {
	return "DOWNLOAD_" + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// DownloadFileName derives a deterministic attachment filename from a CDN
// URL basename: "{prefix}_{basename}_{resolution}.{ext}". The extension is
// preserved, defaulting to mp4 when the basename has none.
func DownloadFileName(platform Platform, cdnURL, resolution string) string {
	base := cdnURL
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	ext := "mp4"
	if i := strings.LastIndexByte(base, '.'); i >= 0 && i < len(base)-1 {
		ext = base[i+1:]
		base = base[:i]
	}
	return platform.FilePrefix() + "_" + base + "_" + resolution + "." + ext
}

// DownloadStats is a derived projection over completed history rows.
type DownloadStats struct {
	TotalDownloads       int64
	TotalCreditsConsumed int64
	HDDownloads          int64
	SDDownloads          int64
}
