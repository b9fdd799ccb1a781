package domain

import (
	"sort"
	"strconv"
	"strings"
)

// Platform identifies a supported source platform.
type Platform string

const (
	PlatformTwitter  Platform = "twitter"
	PlatformKuaishou Platform = "kuaishou"
)

// FilePrefix is the site prefix prepended to derived download filenames.
func (p Platform) FilePrefix() string {
	switch p {
	case PlatformKuaishou:
		return "KuaishouVideoDownload"
	default:
		return "TwitterDown"
	}
}

// Quality labels.
const (
	QualityHD = "HD"
	QualitySD = "SD"
)

// HDThresholdHeight is the minimum pixel height considered HD.
const HDThresholdHeight = 720

// MediaVariant is one downloadable rendition of a post's video. SourceURL
// is the raw CDN URL and must never leave the server unencrypted.
type MediaVariant struct {
	SourceURL  string
	Resolution string // "{height}p", e.g. "720p"
	Quality    string // "HD" or "SD"
}

// ResolveResult is the outcome of scraping one post URL.
type ResolveResult struct {
	Videos    []MediaVariant
	Text      string
	Thumbnail string
}

// FormatResolution converts a "WxH" string to "{H}p". Strings already in
// "{H}p" form pass through unchanged.
func FormatResolution(resolution string) string {
	if i := strings.IndexByte(resolution, 'x'); i >= 0 {
		return resolution[i+1:] + "p"
	}
	return resolution
}

// ResolutionHeight parses the pixel height out of a "{H}p" string.
// Returns 0 when the string is unparseable.
func ResolutionHeight(resolution string) int {
	h, err := strconv.Atoi(strings.TrimSuffix(resolution, "p"))
	if err != nil || h < 0 {
		return 0
	}
	return h
}

// QualityForResolution classifies a resolution as HD or SD.
func QualityForResolution(resolution string) string {
	if ResolutionHeight(resolution) >= HDThresholdHeight {
		return QualityHD
	}
	return QualitySD
}

// SortVariants orders variants by descending height so index 0 is the
// best available rendition.
func SortVariants(variants []MediaVariant) {
	sort.SliceStable(variants, func(i, j int) bool {
		return ResolutionHeight(variants[i].Resolution) > ResolutionHeight(variants[j].Resolution)
	})
}
