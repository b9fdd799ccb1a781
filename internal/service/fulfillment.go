package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/grabvid/grabvid/internal/domain"
	"github.com/grabvid/grabvid/internal/downloader"
	"github.com/grabvid/grabvid/internal/ledger"
	"github.com/grabvid/grabvid/internal/metrics"
	"github.com/grabvid/grabvid/internal/repository"
	"github.com/grabvid/grabvid/internal/token"
)

// DeliveryMode selects how fulfillment returns the media.
type DeliveryMode string

const (
	// DeliveryDetail returns the CDN URL and filename; the client
	// fetches bytes directly (zero proxy bandwidth).
	DeliveryDetail DeliveryMode = "detail"
	// DeliveryStream pipes the CDN response body through the server.
	DeliveryStream DeliveryMode = "stream"
)

// Policy configures one fulfillment endpoint. The free and paid flows
// are the same state machine with different flags, not separate code
// paths.
type Policy struct {
	RequireAuth    bool
	BillingEnabled bool
	DeliveryMode   DeliveryMode
}

// FulfillRequest is one redemption of a single-media capability token.
type FulfillRequest struct {
	Token    string
	UserUUID string // empty for anonymous callers

	// Optional identifying fields echoed into the history row.
	OriginalURL string
	Username    string
	StatusID    string
	VideoID     string
}

// FulfillResult describes a completed fulfillment.
type FulfillResult struct {
	VideoURL         string
	FileName         string
	FileSize         int64
	DownloadNo       string
	CreditsConsumed  int64
	CreditsRemaining int64
}

// FulfillmentService runs the token-to-delivery state machine: verify
// token, re-check the CDN URL shape, authenticate, debit, verify
// upstream, record history, deliver.
type FulfillmentService struct {
	site    Site
	codec   *token.Codec
	credits *ledger.Service
	history repository.DownloadHistoryRepository
	dl      downloader.Downloader
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewFulfillmentService creates a fulfillment service for one platform.
func NewFulfillmentService(site Site, codec *token.Codec, credits *ledger.Service, history repository.DownloadHistoryRepository, dl downloader.Downloader, m *metrics.Metrics, logger *slog.Logger) *FulfillmentService {
	return &FulfillmentService{
		site:    site,
		codec:   codec,
		credits: credits,
		history: history,
		dl:      dl,
		metrics: m,
		logger:  logger,
	}
}

// Fulfill runs the detail-mode state machine: the caller gets the CDN
// URL and filename and fetches bytes directly.
func (s *FulfillmentService) Fulfill(ctx context.Context, req FulfillRequest, policy Policy) (*FulfillResult, error) {
	media, err := s.verify(req.Token)
	if err != nil {
		return nil, err
	}

	consumed, remaining, err := s.bill(ctx, req.UserUUID, media, policy)
	if err != nil {
		return nil, err
	}

	result := &FulfillResult{
		VideoURL:         media.URL,
		FileName:         domain.DownloadFileName(s.site.Platform, media.URL, media.Resolution),
		DownloadNo:       domain.NewDownloadNo(),
		CreditsConsumed:  consumed,
		CreditsRemaining: remaining,
	}

	probe, err := s.dl.Probe(ctx, s.site.Platform, media.URL)
	if err != nil || !probe.Accessible {
		// Credits already debited stay debited; the failed attempt is
		// still audited.
		s.recordHistory(ctx, req, media, result, domain.DownloadFailed, "upstream liveness check failed")
		s.metrics.DownloadTotal.WithLabelValues(string(s.site.Platform), "failed").Inc()
		return nil, domain.ErrUpstreamUnavailable
	}
	if probe.ContentLength > 0 {
		result.FileSize = probe.ContentLength
	}

	s.recordHistory(ctx, req, media, result, domain.DownloadCompleted, "")
	s.metrics.DownloadTotal.WithLabelValues(string(s.site.Platform), "completed").Inc()

	s.logger.Info("download fulfilled",
		"platform", s.site.Platform,
		"download_no", result.DownloadNo,
		"resolution", media.Resolution,
		"credits_consumed", consumed,
		"credits_remaining", remaining,
	)
	return result, nil
}

// FulfillStream runs the stream-mode state machine. On success the
// caller owns the returned reader and must close it.
func (s *FulfillmentService) FulfillStream(ctx context.Context, req FulfillRequest, policy Policy) (*FulfillResult, io.ReadCloser, error) {
	media, err := s.verify(req.Token)
	if err != nil {
		return nil, nil, err
	}

	consumed, remaining, err := s.bill(ctx, req.UserUUID, media, policy)
	if err != nil {
		return nil, nil, err
	}

	result := &FulfillResult{
		VideoURL:         media.URL,
		FileName:         domain.DownloadFileName(s.site.Platform, media.URL, media.Resolution),
		DownloadNo:       domain.NewDownloadNo(),
		CreditsConsumed:  consumed,
		CreditsRemaining: remaining,
	}

	body, info, err := s.dl.Stream(ctx, s.site.Platform, media.URL)
	if err != nil {
		s.recordHistory(ctx, req, media, result, domain.DownloadFailed, fmt.Sprintf("stream open failed: %v", err))
		s.metrics.DownloadTotal.WithLabelValues(string(s.site.Platform), "failed").Inc()
		return nil, nil, domain.ErrUpstreamUnavailable
	}
	if info.ContentLength > 0 {
		result.FileSize = info.ContentLength
	}

	s.recordHistory(ctx, req, media, result, domain.DownloadCompleted, "")
	s.metrics.DownloadTotal.WithLabelValues(string(s.site.Platform), "completed").Inc()
	return result, body, nil
}

// verify decodes the capability token and re-checks the decoded URL
// against the platform's CDN host pattern.
func (s *FulfillmentService) verify(tokenString string) (*token.SingleMedia, error) {
	if tokenString == "" {
		s.metrics.TokenVerifyTotal.WithLabelValues("missing").Inc()
		return nil, domain.ErrInvalidToken
	}

	media, err := s.codec.VerifySingle(tokenString)
	if err != nil {
		s.metrics.TokenVerifyTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if !s.site.IsCDNURL(media.URL) {
		s.metrics.TokenVerifyTotal.WithLabelValues("bad_url").Inc()
		return nil, domain.ErrInvalidVideoURL
	}

	s.metrics.TokenVerifyTotal.WithLabelValues("ok").Inc()
	return media, nil
}

// bill enforces the endpoint's auth and billing policy. Returns the
// credits consumed and the caller's remaining balance.
func (s *FulfillmentService) bill(ctx context.Context, userUUID string, media *token.SingleMedia, policy Policy) (int64, int64, error) {
	if policy.RequireAuth && userUUID == "" {
		return 0, 0, domain.ErrAuthRequired
	}

	if !policy.BillingEnabled || userUUID == "" {
		return 0, 0, nil
	}

	required := domain.RequiredCredits(media.Resolution)
	balance, err := s.credits.Consume(ctx, userUUID, required,
		fmt.Sprintf("download %s video", media.Resolution),
		ledger.ConsumeContext{Resolution: media.Resolution, VideoURL: media.URL},
	)
	if err != nil {
		if _, ok := domain.IsInsufficientCredits(err); ok {
			s.metrics.InsufficientTotal.Inc()
		}
		return 0, 0, err
	}

	s.metrics.CreditsConsumedTotal.Add(float64(required))
	return required, balance.Available, nil
}

// recordHistory appends the audit row. A failed write is logged and
// swallowed: it must never block delivering media the user already paid
// for.
func (s *FulfillmentService) recordHistory(ctx context.Context, req FulfillRequest, media *token.SingleMedia, result *FulfillResult, status domain.DownloadStatus, detail string) {
	description := fmt.Sprintf("download %s video", media.Resolution)
	if detail != "" {
		description = fmt.Sprintf("%s: %s", description, detail)
	}

	rec := &domain.DownloadHistoryRecord{
		DownloadNo:      result.DownloadNo,
		UserUUID:        req.UserUUID,
		Platform:        s.site.Platform,
		VideoURL:        media.URL,
		OriginalURL:     req.OriginalURL,
		Resolution:      media.Resolution,
		Quality:         media.Quality,
		FileName:        result.FileName,
		FileSize:        result.FileSize,
		CreditsConsumed: result.CreditsConsumed,
		Status:          status,
		Username:        req.Username,
		StatusID:        req.StatusID,
		VideoID:         req.VideoID,
		Description:     description,
	}

	if err := s.history.Insert(ctx, rec); err != nil {
		s.logger.Error("download history write failed",
			"download_no", result.DownloadNo,
			"error", err,
		)
	}
}
