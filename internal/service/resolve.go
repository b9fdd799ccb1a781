package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	"github.com/grabvid/grabvid/internal/metrics"
	"github.com/grabvid/grabvid/internal/resolver"
	"github.com/grabvid/grabvid/internal/token"

	"github.com/grabvid/grabvid/internal/domain"
)

// TokenizedVariant is one downloadable rendition with its capability
// token folded into the redemption URL. The raw CDN URL never appears.
type TokenizedVariant struct {
	Resolution  string `json:"resolution"`
	Quality     string `json:"quality"`
	DownloadURL string `json:"downloadUrl"`
}

// ResolvedPost is the per-post payload carried inside a batch token.
type ResolvedPost struct {
	OriginalURL string             `json:"originalUrl,omitempty"`
	Thumbnail   string             `json:"thumbnail,omitempty"`
	Videos      []TokenizedVariant `json:"videos"`
	Text        string             `json:"text,omitempty"`
	Username    string             `json:"username,omitempty"`
	StatusID    string             `json:"statusId,omitempty"`
	VideoID     string             `json:"videoId,omitempty"`
	ProcessedAt time.Time          `json:"processedAt"`
}

// BatchItemError pairs a failed URL with its reason.
type BatchItemError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// BatchSummary is the only plaintext view of a batch outcome.
type BatchSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BatchPayload is the full batch outcome, returned only inside the
// opaque batch token.
type BatchPayload struct {
	Results []ResolvedPost   `json:"results"`
	Errors  []BatchItemError `json:"errors"`
	Summary BatchSummary     `json:"summary"`
}

// SingleResponse wraps a resolved post as one opaque token.
type SingleResponse struct {
	Token string `json:"token"`
}

// BatchResponse carries the opaque batch token plus the summary.
type BatchResponse struct {
	Token   string       `json:"token"`
	Summary BatchSummary `json:"summary"`
}

// ResolveService turns post URLs into tokenized media variants.
type ResolveService struct {
	site    Site
	chain   *resolver.Chain
	codec   *token.Codec
	cache   *resolver.ResultCache[SingleResponse]
	metrics *metrics.Metrics
	logger  *slog.Logger

	batchLimit    int
	batchInterval time.Duration
}

// ResolveConfig tunes a ResolveService.
type ResolveConfig struct {
	CacheSize     int
	CacheTTL      time.Duration
	BatchLimit    int
	BatchInterval time.Duration
}

// NewResolveService creates a resolve service for one platform.
func NewResolveService(site Site, chain *resolver.Chain, codec *token.Codec, cfg ResolveConfig, m *metrics.Metrics, logger *slog.Logger) (*ResolveService, error) {
	cache, err := resolver.NewResultCache[SingleResponse](cfg.CacheSize, cfg.CacheTTL, nil)
	if err != nil {
		return nil, err
	}
	return &ResolveService{
		site:          site,
		chain:         chain,
		codec:         codec,
		cache:         cache,
		metrics:       m,
		logger:        logger,
		batchLimit:    cfg.BatchLimit,
		batchInterval: cfg.BatchInterval,
	}, nil
}

// ResolveSingle resolves one post URL and returns an opaque token whose
// payload is a ResolvedPost. Responses are memoized per input URL.
func (s *ResolveService) ResolveSingle(ctx context.Context, rawURL string) (*SingleResponse, error) {
	postURL := s.site.Normalize(rawURL)
	if !s.site.IsValid(postURL) {
		return nil, domain.ErrInvalidURL
	}

	if cached, ok := s.cache.Get(postURL); ok {
		s.logger.Debug("resolve cache hit", "platform", s.site.Platform, "url", postURL)
		return &cached, nil
	}

	post, err := s.resolveOne(ctx, postURL)
	if err != nil {
		return nil, err
	}
	post.OriginalURL = "" // single responses don't echo the input URL

	batchToken, err := s.codec.MintBatch(post)
	if err != nil {
		return nil, err
	}

	resp := SingleResponse{Token: batchToken}
	s.cache.Set(postURL, resp)
	return &resp, nil
}

// ResolveBatch resolves up to the batch limit of post URLs. The whole
// batch is rejected when any URL is structurally invalid or none
// survive normalization; per-item resolve failures are partitioned, not
// fatal. Dispatches are spaced by a fixed delay to stay polite to the
// upstream scraper.
func (s *ResolveService) ResolveBatch(ctx context.Context, rawURLs []string) (*BatchResponse, error) {
	if len(rawURLs) > s.batchLimit {
		return nil, domain.ErrBatchTooLarge
	}

	normalized := make([]string, 0, len(rawURLs))
	for _, raw := range rawURLs {
		normalized = append(normalized, s.site.Normalize(raw))
	}

	valid, invalid := s.site.Partition(normalized)
	if len(invalid) > 0 {
		return nil, domain.ErrInvalidURL
	}
	if len(valid) == 0 {
		return nil, domain.ErrNoValidURLs
	}

	payload := BatchPayload{}
	for i, postURL := range valid {
		post, err := s.resolveOne(ctx, postURL)
		if err != nil {
			payload.Errors = append(payload.Errors, BatchItemError{
				URL:   postURL,
				Error: err.Error(),
			})
		} else {
			post.OriginalURL = postURL
			payload.Results = append(payload.Results, *post)
		}

		if i < len(valid)-1 && s.batchInterval > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.batchInterval):
			}
		}
	}

	payload.Summary = BatchSummary{
		Total:      len(valid),
		Successful: len(payload.Results),
		Failed:     len(payload.Errors),
	}

	batchToken, err := s.codec.MintBatch(payload)
	if err != nil {
		return nil, err
	}

	s.logger.Info("batch resolved",
		"platform", s.site.Platform,
		"total", payload.Summary.Total,
		"successful", payload.Summary.Successful,
		"failed", payload.Summary.Failed,
	)
	return &BatchResponse{Token: batchToken, Summary: payload.Summary}, nil
}

// Results decodes a previously issued batch token back into its
// plaintext payload so a results page can render without re-resolving.
func (s *ResolveService) Results(ctx context.Context, batchToken string) (json.RawMessage, error) {
	return s.codec.VerifyBatch(batchToken)
}

func (s *ResolveService) resolveOne(ctx context.Context, postURL string) (*ResolvedPost, error) {
	start := time.Now()
	result, err := s.chain.Resolve(ctx, postURL)
	s.metrics.ResolveDuration.WithLabelValues(string(s.site.Platform)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.ResolveTotal.WithLabelValues(string(s.site.Platform), "failure").Inc()
		return nil, err
	}
	s.metrics.ResolveTotal.WithLabelValues(string(s.site.Platform), "success").Inc()

	videos := make([]TokenizedVariant, 0, len(result.Videos))
	for _, variant := range result.Videos {
		single, err := s.codec.MintSingle(variant)
		if err != nil {
			return nil, err
		}
		videos = append(videos, TokenizedVariant{
			Resolution:  variant.Resolution,
			Quality:     variant.Quality,
			DownloadURL: s.site.DetailPath + "?token=" + url.QueryEscape(single),
		})
	}

	meta := s.site.ExtractMeta(postURL)
	return &ResolvedPost{
		Thumbnail:   result.Thumbnail,
		Videos:      videos,
		Text:        result.Text,
		Username:    meta.Username,
		StatusID:    meta.StatusID,
		VideoID:     meta.VideoID,
		ProcessedAt: time.Now().UTC(),
	}, nil
}
