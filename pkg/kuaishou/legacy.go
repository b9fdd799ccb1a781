package kuaishou

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/grabvid/grabvid/internal/domain"
)

// LegacyPageResolver is the retired Kuaishou strategy: fetch the post
// page itself and dig the media URLs out of an inlined, lightly
// obfuscated JSON blob whose string values are ASCII-shifted. It is
// coupled to an undocumented page structure and kept only as a fallback
// behind the signed API; none of its heuristics leak past Resolve.
type LegacyPageResolver struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewLegacyPageResolver creates the legacy page-scraping strategy.
func NewLegacyPageResolver(timeout time.Duration, logger *slog.Logger) *LegacyPageResolver {
	return &LegacyPageResolver{
		client:    &http.Client{Timeout: timeout},
		userAgent: browserUserAgent,
		logger:    logger,
	}
}

// Name identifies the strategy in logs.
func (r *LegacyPageResolver) Name() string { return "kuaishou/legacy-page" }

// candidateBlobPattern finds long quoted script values that may hold the
// obfuscated payload.
var candidateBlobPattern = regexp.MustCompile(`"([!-~]{64,})"`)

// legacyMarker must appear in a correctly de-shifted blob. It is part of
// the JSON key the page uses for the playable rendition.
const legacyMarker = `"photoUrl"`

// maxShift bounds the ASCII-shift search. Observed pages used small
// single-digit shifts.
const maxShift = 8

// Resolve fetches media variants by scraping the post page.
func (r *LegacyPageResolver) Resolve(ctx context.Context, postURL string) (*domain.ResolveResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, postURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}

	blob, ok := findObfuscatedBlob(string(page))
	if !ok {
		return nil, domain.ErrNoMediaFound
	}

	return parseLegacyBlob(blob)
}

// findObfuscatedBlob tries every candidate quoted string at every shift
// until one decodes to JSON containing the marker key.
func findObfuscatedBlob(page string) (string, bool) {
	for _, m := range candidateBlobPattern.FindAllStringSubmatch(page, -1) {
		for shift := 1; shift <= maxShift; shift++ {
			for _, decoded := range []string{shiftASCII(m[1], -shift), shiftASCII(m[1], shift)} {
				if strings.Contains(decoded, legacyMarker) && json.Valid([]byte(decoded)) {
					return decoded, true
				}
			}
		}
	}
	return "", false
}

// shiftASCII shifts every printable byte by delta, wrapping within the
// printable range. Non-printable bytes pass through untouched.
func shiftASCII(s string, delta int) string {
	const lo, hi = 0x20, 0x7e
	span := hi - lo + 1

	b := []byte(s)
	for i, c := range b {
		if c < lo || c > hi {
			continue
		}
		shifted := (int(c) - lo + delta) % span
		if shifted < 0 {
			shifted += span
		}
		b[i] = byte(shifted + lo)
	}
	return string(b)
}

type legacyPayload struct {
	PhotoURL  string `json:"photoUrl"`
	CoverURL  string `json:"coverUrl"`
	Caption   string `json:"caption"`
	ExtParams struct {
		Width  int `json:"w"`
		Height int `json:"h"`
	} `json:"ext_params"`
}

func parseLegacyBlob(blob string) (*domain.ResolveResult, error) {
	var payload legacyPayload
	if err := json.Unmarshal([]byte(blob), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal blob: %w", err)
	}
	if payload.PhotoURL == "" {
		return nil, domain.ErrNoMediaFound
	}

	resolution := "720p"
	if payload.ExtParams.Height > 0 {
		resolution = fmt.Sprintf("%dp", payload.ExtParams.Height)
	}

	return &domain.ResolveResult{
		Videos: []domain.MediaVariant{{
			SourceURL:  payload.PhotoURL,
			Resolution: resolution,
			Quality:    domain.QualityForResolution(resolution),
		}},
		Text:      payload.Caption,
		Thumbnail: payload.CoverURL,
	}, nil
}
