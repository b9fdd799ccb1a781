package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/grabvid/grabvid/internal/api/middleware"
	"github.com/grabvid/grabvid/internal/service"
)

// PlatformHandler serves one platform's resolve and download endpoints.
// The paid Twitter flow and the free Kuaishou flow are the same handler
// with different policies.
type PlatformHandler struct {
	resolve *service.ResolveService
	fulfill *service.FulfillmentService
	policy  service.Policy
	logger  *slog.Logger
}

// NewPlatformHandler creates a platform handler.
func NewPlatformHandler(resolve *service.ResolveService, fulfill *service.FulfillmentService, policy service.Policy, logger *slog.Logger) *PlatformHandler {
	return &PlatformHandler{
		resolve: resolve,
		fulfill: fulfill,
		policy:  policy,
		logger:  logger,
	}
}

// ResolveRequest is the JSON body for single resolution.
type ResolveRequest struct {
	URL string `json:"url"`
}

// BatchRequest is the JSON body for batch resolution.
type BatchRequest struct {
	URLs []string `json:"urls"`
}

// TokenRequest is the JSON body for token-bearing endpoints.
type TokenRequest struct {
	Token       string `json:"token"`
	OriginalURL string `json:"original_url,omitempty"`
	Username    string `json:"username,omitempty"`
	StatusID    string `json:"status_id,omitempty"`
	VideoID     string `json:"video_id,omitempty"`
}

// Resolve handles POST /api/{platform}.
func (h *PlatformHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		respErr(w, http.StatusBadRequest, "URL is required")
		return
	}

	resp, err := h.resolve.ResolveSingle(r.Context(), req.URL)
	if err != nil {
		respDomainErr(w, err)
		return
	}
	respData(w, resp)
}

// Batch handles POST /api/{platform}/batch.
func (h *PlatformHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URLs == nil {
		respErr(w, http.StatusBadRequest, "URLs array is required")
		return
	}

	resp, err := h.resolve.ResolveBatch(r.Context(), req.URLs)
	if err != nil {
		respDomainErr(w, err)
		return
	}
	respData(w, resp)
}

// Results handles POST /api/{platform}/results: decode a previously
// issued batch token for the results page.
func (h *PlatformHandler) Results(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		respErr(w, http.StatusBadRequest, "Token is required")
		return
	}

	payload, err := h.resolve.Results(r.Context(), req.Token)
	if err != nil {
		respDomainErr(w, err)
		return
	}
	respData(w, payload)
}

// DownloadDetails handles POST /api/{platform}/get-download-details: the
// zero-proxy-bandwidth variant that returns the CDN URL and filename.
func (h *PlatformHandler) DownloadDetails(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respErr(w, http.StatusBadRequest, "invalid request body")
		return
	}

	policy := h.policy
	policy.DeliveryMode = service.DeliveryDetail

	result, err := h.fulfill.Fulfill(r.Context(), service.FulfillRequest{
		Token:       req.Token,
		UserUUID:    middleware.UserUUID(r),
		OriginalURL: req.OriginalURL,
		Username:    req.Username,
		StatusID:    req.StatusID,
		VideoID:     req.VideoID,
	}, policy)
	if err != nil {
		respDomainErr(w, err)
		return
	}

	respData(w, map[string]any{
		"videoUrl":         result.VideoURL,
		"filename":         result.FileName,
		"creditsRemaining": result.CreditsRemaining,
	})
}

// Download handles GET /api/{platform}/download?token=...: the streaming
// variant that pipes CDN bytes through the server.
func (h *PlatformHandler) Download(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	policy := h.policy
	policy.DeliveryMode = service.DeliveryStream

	result, body, err := h.fulfill.FulfillStream(r.Context(), service.FulfillRequest{
		Token:       q.Get("token"),
		UserUUID:    middleware.UserUUID(r),
		OriginalURL: q.Get("original_url"),
		Username:    q.Get("username"),
		StatusID:    q.Get("status_id"),
		VideoID:     q.Get("video_id"),
	}, policy)
	if err != nil {
		respDomainErr(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Credits-Consumed", strconv.FormatInt(result.CreditsConsumed, 10))
	w.Header().Set("X-Credits-Remaining", strconv.FormatInt(result.CreditsRemaining, 10))
	w.Header().Set("X-Download-No", result.DownloadNo)
	if result.FileSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(result.FileSize, 10))
		w.Header().Set("Accept-Ranges", "bytes")
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		// Headers are gone; all we can do is log the broken pipe.
		h.logger.Warn("stream interrupted",
			"download_no", result.DownloadNo,
			"error", err,
		)
	}
}
