// Package twitter resolves Twitter/X post URLs into raw CDN media
// variants via third-party resolver services, and validates the post
// URL shapes that are allowed to reach them.
package twitter

import (
	"regexp"
	"strings"
)

// postURLPattern anchors on the exact twitter.com/x.com hosts plus the
// /user/status/<digits> path shape. Lookalike hosts do not match.
var postURLPattern = regexp.MustCompile(`^https?://(?:www\.)?(?:twitter\.com|x\.com)/([^/]+)/status/(\d+)(?:\?.*)?$`)

// extractPattern recovers username and status ID; unanchored so it also
// works on already-validated URLs with surrounding context.
var extractPattern = regexp.MustCompile(`(?:twitter\.com|x\.com)/([^/]+)/status/(\d+)`)

// NormalizeURL adds https:// when a bare twitter.com/x.com URL was given
// and trims surrounding whitespace.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "twitter.com") || strings.HasPrefix(lower, "x.com") ||
		strings.HasPrefix(lower, "www.twitter.com") || strings.HasPrefix(lower, "www.x.com") {
		return "https://" + trimmed
	}
	return trimmed
}

// IsValidURL reports whether url is a well-formed Twitter/X post URL.
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
			Error: "Invalid Twitter/X URL format",
		})
	}
	return result
}

// StatusInfo identifies the tweet behind a post URL.
type StatusInfo struct {
	Username string
	StatusID string
}

// ExtractStatusInfo recovers the username and status ID from a post URL.
// Fields are empty rather than erroring when the URL does not match.
func ExtractStatusInfo(url string) StatusInfo {
	m := extractPattern.FindStringSubmatch(url)
	if m == nil {
		return StatusInfo{}
	}
	return StatusInfo{Username: m[1], StatusID: m[2]}
}

// CDNURLPrefix is the only host pattern accepted for decoded Twitter
// media URLs.
const CDNURLPrefix = "https://video.twimg.com/"

// IsCDNURL reports whether url points at Twitter's video CDN.
func IsCDNURL(url string) bool {
	return strings.HasPrefix(url, CDNURLPrefix)
}
