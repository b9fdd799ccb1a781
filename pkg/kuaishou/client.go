package kuaishou

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/grabvid/grabvid/internal/domain"
)

const defaultAPIBase = "https://api.spapi.cn"

// Envelope status codes documented by observation of the upstream API.
const (
	statusOK       = 101
	statusThrottle = 102
)

// SignedAPIResolver is the primary Kuaishou strategy. It primes a cookie
// session against the API origin, then replays those cookies on a signed
// parsing call whose JSON envelope carries the CDN URL.
type SignedAPIResolver struct {
	baseURL   string
	secret    string
	userAgent string
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewSignedAPIResolver creates the signed-API resolver strategy.
func NewSignedAPIResolver(secret string, timeout time.Duration, logger *slog.Logger) *SignedAPIResolver {
	return &SignedAPIResolver{
		baseURL:   defaultAPIBase,
		secret:    secret,
		userAgent: browserUserAgent,
		timeout:   timeout,
		now:       time.Now,
		logger:    logger,
	}
}

// SetBaseURL overrides the upstream origin. Used by tests.
func (r *SignedAPIResolver) SetBaseURL(base string) {
	r.baseURL = strings.TrimRight(base, "/")
}

// SetClock overrides the signature time source. Used by tests.
func (r *SignedAPIResolver) SetClock(now func() time.Time) {
	r.now = now
}

// Name identifies the strategy in logs.
func (r *SignedAPIResolver) Name() string { return "kuaishou/signed-api" }

type parseEnvelope struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Data   struct {
		Video string `json:"video"`
		Title string `json:"title"`
		Image string `json:"image"`
	} `json:"data"`
}

// Resolve fetches media variants for the given post URL.
func (r *SignedAPIResolver) Resolve(ctx context.Context, postURL string) (*domain.ResolveResult, error) {
	// Fresh jar per call: the priming cookies are short-lived session
	// state, not something to share across requests.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	client := &http.Client{Jar: jar, Timeout: r.timeout}

	if err := r.prime(ctx, client); err != nil {
		return nil, fmt.Errorf("prime session: %w", err)
	}

	envelope, err := r.parse(ctx, client, postURL)
	if err != nil {
		return nil, err
	}

	if envelope.Status != statusOK {
		// Upstream message is for our logs only, never for end users.
		r.logger.Warn("kuaishou API returned error status",
			"status", envelope.Status,
			"msg", envelope.Msg,
			"throttled", envelope.Status == statusThrottle,
		)
		return nil, fmt.Errorf("upstream envelope status %d", envelope.Status)
	}

	if envelope.Data.Video == "" {
		return nil, domain.ErrNoMediaFound
	}

	// The API reports a single rendition with no dimensions; 720p/HD is
	// the observed default for its output.
	return &domain.ResolveResult{
		Videos: []domain.MediaVariant{{
			SourceURL:  envelope.Data.Video,
			Resolution: "720p",
			Quality:    domain.QualityHD,
		}},
		Text:      envelope.Data.Title,
		Thumbnail: envelope.Data.Image,
	}, nil
}

// prime performs the cookie-acquiring GET against the API origin.
func (r *SignedAPIResolver) prime(ctx context.Context, client *http.Client) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,zh-CN;q=0.8,zh;q=0.7")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("priming status %d", resp.StatusCode)
	}
	return nil
}

// parse performs the signed parsing call using the primed session.
func (r *SignedAPIResolver) parse(ctx context.Context, client *http.Client, postURL string) (*parseEnvelope, error) {
	sig := GenerateSign(postURL, r.secret, r.now())

	apiURL := fmt.Sprintf("%s/api/parsing?otype=json&timestamp=%s&sign=%s", r.baseURL, sig.Timestamp, sig.Sign)
	body := url.Values{}
	body.Set("url", postURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(body.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	var envelope parseEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &envelope, nil
}

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"
