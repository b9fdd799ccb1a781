// Package kuaishou resolves Kuaishou post URLs into raw CDN media
// variants via a reverse-engineered signed API, with a legacy
// page-scraping strategy kept as fallback.
package kuaishou

import (
	"regexp"
	"strings"
)

// postURLPattern anchors on the exact Kuaishou hosts. Share links use
// v.kuaishou.com/<id>, web links use kuaishou.com/short-video/<id>, and
// the kwai mobile domain mirrors the share shape.
var postURLPattern = regexp.MustCompile(`^https?://(?:(?:www\.)?kuaishou\.com/(?:short-video|f)/([A-Za-z0-9_-]+)|v\.kuaishou\.com/([A-Za-z0-9_-]+)|m\.kwai\.com/([A-Za-z0-9/_-]+))(?:\?.*)?$`)

// NormalizeURL adds https:// when a bare Kuaishou domain was given and
// trims surrounding whitespace.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	for _, host := range []string{"kuaishou.com", "www.kuaishou.com", "v.kuaishou.com", "m.kwai.com"} {
		if strings.HasPrefix(lower, host) {
			return "https://" + trimmed
		}
	}
	return trimmed
}

// IsValidURL reports whether url is a well-formed Kuaishou post URL.
func IsValidURL(url string) bool {
	return postURLPattern.MatchString(strings.TrimSpace(url))
}

// ValidationResult partitions a list of candidate URLs.
type ValidationResult struct {
	Valid   []string
	Invalid []string
	Errors  []ValidationError
}

// ValidationError pairs a rejected URL with its reason.
type ValidationError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// ValidateURLs checks many URLs, preserving input order and skipping
// blank lines.
func ValidateURLs(urls []string) ValidationResult {
	var result ValidationResult
	for _, url := range urls {
		trimmed := strings.TrimSpace(url)
		if trimmed == "" {
			continue
		}
		if IsValidURL(trimmed) {
			result.Valid = append(result.Valid, trimmed)
			continue
		}
		result.Invalid = append(result.Invalid, trimmed)
		result.Errors = append(result.Errors, ValidationError{
			URL:   trimmed,
			Error: "Invalid Kuaishou URL format",
		})
	}
	return result
}

// VideoInfo identifies the post behind a Kuaishou URL.
type VideoInfo struct {
	VideoID string
	Domain  string
}

var hostPattern = regexp.MustCompile(`^https?://([^/]+)/`)

// ExtractVideoInfo recovers the video ID and host from a post URL.
// Fields are empty rather than erroring when the URL does not match.
func ExtractVideoInfo(url string) VideoInfo {
	m := postURLPattern.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return VideoInfo{}
	}
	info := VideoInfo{}
	for _, id := range m[1:] {
		if id != "" {
			info.VideoID = id
			break
		}
	}
	if hm := hostPattern.FindStringSubmatch(strings.TrimSpace(url)); hm != nil {
		info.Domain = hm[1]
	}
	return info
}

// IsCDNURL reports whether url plausibly points at Kuaishou's CDN. The
// CDN spans several domains, so this checks for the platform markers
// rather than an exact host.
func IsCDNURL(url string) bool {
	return strings.Contains(url, "kuaishou") || strings.Contains(url, "kwai")
}
