package twitter

import (
	"context"
	"encoding/base64"
	"encoding/json"
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

const defaultSearchAPIBase = "https://savetwitter.net"

// tokenLinkPattern finds download anchors whose href carries an embedded
// token query parameter.
var tokenLinkPattern = regexp.MustCompile(`href="([^"]*token=[^"&]+[^"]*)"`)

// resolutionPattern extracts the WxH segment embedded in CDN URLs.
var resolutionPattern = regexp.MustCompile(`/(\d+x\d+)/`)

// titlePattern grabs the first h3 text in a resolver response fragment.
var titlePattern = regexp.MustCompile(`(?s)<h3[^>]*>(.*?)</h3>`)

// imgPattern grabs the first image source in a resolver response fragment.
var imgPattern = regexp.MustCompile(`<img[^>]+src="([^"]+)"`)

// SearchAPIResolver is the primary Twitter strategy. It posts the tweet
// URL to a third-party search endpoint that answers with an HTML
// fragment of download links; each link embeds an unverified JWT whose
// payload carries the raw CDN URL.
type SearchAPIResolver struct {
	client    *http.Client
	baseURL   string
	userAgent string
	logger    *slog.Logger
}

// NewSearchAPIResolver creates the primary resolver strategy.
func NewSearchAPIResolver(timeout time.Duration, logger *slog.Logger) *SearchAPIResolver {
	return &SearchAPIResolver{
		client:    &http.Client{Timeout: timeout},
		baseURL:   defaultSearchAPIBase,
		userAgent: browserUserAgent,
		logger:    logger,
	}
}

// SetBaseURL overrides the upstream origin. Used by tests.
func (r *SearchAPIResolver) SetBaseURL(base string) {
	r.baseURL = strings.TrimRight(base, "/")
}

// Name identifies the strategy in logs.
func (r *SearchAPIResolver) Name() string { return "twitter/search-api" }

type searchAPIResponse struct {
	Status string `json:"status"`
	Data   string `json:"data"`
}

// Resolve fetches media variants for the given tweet URL.
func (r *SearchAPIResolver) Resolve(ctx context.Context, postURL string) (*domain.ResolveResult, error) {
	form := url.Values{}
	form.Set("q", postURL)
	form.Set("lang", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/ajaxSearch", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Origin", r.baseURL)
	req.Header.Set("Referer", r.baseURL+"/en")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	var envelope searchAPIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if envelope.Status != "ok" || envelope.Data == "" {
		return nil, fmt.Errorf("upstream status %q", envelope.Status)
	}

	return r.parseFragment(envelope.Data)
}

func (r *SearchAPIResolver) parseFragment(fragment string) (*domain.ResolveResult, error) {
	var videos []domain.MediaVariant

	for _, m := range tokenLinkPattern.FindAllStringSubmatch(fragment, -1) {
		link := html.UnescapeString(m[1])
		cdnURL, err := decodeTokenLink(link)
		if err != nil {
			r.logger.Debug("skipping undecodable download link", "error", err)
			continue
		}

		rm := resolutionPattern.FindStringSubmatch(cdnURL)
		if rm == nil {
			continue
		}

		resolution := domain.FormatResolution(rm[1])
		videos = append(videos, domain.MediaVariant{
			SourceURL:  cdnURL,
			Resolution: resolution,
			Quality:    domain.QualityForResolution(resolution),
		})
	}

	if len(videos) == 0 {
		return nil, domain.ErrNoMediaFound
	}

	domain.SortVariants(videos)

	result := &domain.ResolveResult{Videos: videos}
	if tm := titlePattern.FindStringSubmatch(fragment); tm != nil {
		result.Text = strings.TrimSpace(stripTags(tm[1]))
	}
	if im := imgPattern.FindStringSubmatch(fragment); im != nil {
		result.Thumbnail = html.UnescapeString(im[1])
	}

	return result, nil
}

// decodeTokenLink recovers the raw CDN URL from a download link's token
// parameter. The token is a JWT minted by the upstream service; only its
// payload matters here, the signature is theirs to verify, not ours.
func decodeTokenLink(link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse link: %w", err)
	}
	tok := parsed.Query().Get("token")
	if tok == "" {
		return "", fmt.Errorf("link has no token parameter")
	}

	parts := strings.Split(tok, ".")
	if len(parts) < 2 {
		return "", fmt.Errorf("token is not a JWT")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode token payload: %w", err)
	}

	var claims struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("unmarshal token payload: %w", err)
	}
	if claims.URL == "" {
		return "", fmt.Errorf("token payload has no url")
	}
	return claims.URL, nil
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(s, ""))
}

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
