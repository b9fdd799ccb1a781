package twitter

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/grabvid/grabvid/internal/domain"
)

const defaultInfoPageBase = "https://twitsave.com"

// fileLinkPattern finds download anchors carrying a base64-encoded CDN
// URL in their file parameter.
var fileLinkPattern = regexp.MustCompile(`href="[^"]*/download\?file=([A-Za-z0-9+/=_-]+)"`)

// posterPattern grabs the video poster attribute used as thumbnail.
var posterPattern = regexp.MustCompile(`<video[^>]+poster="([^"]+)"`)

// captionPattern grabs the tweet text block on the info page.
var captionPattern = regexp.MustCompile(`(?s)<p class="m-2[^"]*"[^>]*>(.*?)</p>`)

// ProbeFunc checks whether a candidate CDN URL is still reachable.
type ProbeFunc func(ctx context.Context, url string) bool

// InfoPageResolver is the fallback Twitter strategy. It fetches a
// third-party info page for the tweet, decodes the base64 download links
// embedded in it, and HEAD-checks each candidate before accepting it.
type InfoPageResolver struct {
	client    *http.Client
	baseURL   string
	userAgent string
	probe     ProbeFunc
	logger    *slog.Logger
}

// NewInfoPageResolver creates the fallback resolver strategy. probe may
// be nil, in which case candidates are accepted without a liveness check.
func NewInfoPageResolver(timeout time.Duration, probe ProbeFunc, logger *slog.Logger) *InfoPageResolver {
	return &InfoPageResolver{
		client:    &http.Client{Timeout: timeout},
		baseURL:   defaultInfoPageBase,
		userAgent: browserUserAgent,
		probe:     probe,
		logger:    logger,
	}
}

// SetBaseURL overrides the upstream origin. Used by tests.
func (r *InfoPageResolver) SetBaseURL(base string) {
	r.baseURL = strings.TrimRight(base, "/")
}

// Name identifies the strategy in logs.
func (r *InfoPageResolver) Name() string { return "twitter/info-page" }

// Resolve fetches media variants for the given tweet URL.
func (r *InfoPageResolver) Resolve(ctx context.Context, postURL string) (*domain.ResolveResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/info?url="+url.QueryEscape(postURL), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return r.parsePage(ctx, string(body))
}

func (r *InfoPageResolver) parsePage(ctx context.Context, page string) (*domain.ResolveResult, error) {
	var videos []domain.MediaVariant

	for _, m := range fileLinkPattern.FindAllStringSubmatch(page, -1) {
		decoded, err := base64.StdEncoding.DecodeString(m[1])
		if err != nil {
			// Some links URL-safe encode the payload.
			decoded, err = base64.URLEncoding.DecodeString(m[1])
			if err != nil {
				continue
			}
		}

		rawURL := string(decoded)
		if !IsCDNURL(rawURL) {
			continue
		}

		rm := resolutionPattern.FindStringSubmatch(rawURL)
		if rm == nil {
			continue
		}

		// Drop the upstream's trailing query junk, keep the CDN tag.
		cleanURL := strings.SplitN(rawURL, "?", 2)[0] + "?tag=16"

		if r.probe != nil && !r.probe(ctx, cleanURL) {
			r.logger.Debug("discarding dead media candidate", "url_resolution", rm[1])
			continue
		}

		resolution := domain.FormatResolution(rm[1])
		videos = append(videos, domain.MediaVariant{
			SourceURL:  cleanURL,
			Resolution: resolution,
			Quality:    domain.QualityForResolution(resolution),
		})
	}

	if len(videos) == 0 {
		return nil, domain.ErrNoMediaFound
	}

	domain.SortVariants(videos)

	result := &domain.ResolveResult{Videos: videos}
	if cm := captionPattern.FindStringSubmatch(page); cm != nil {
		result.Text = strings.TrimSpace(stripTags(cm[1]))
	}
	if pm := posterPattern.FindStringSubmatch(page); pm != nil {
		result.Thumbnail = html.UnescapeString(pm[1])
	}

	return result, nil
}
