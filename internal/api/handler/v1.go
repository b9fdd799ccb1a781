package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/grabvid/grabvid/internal/api/middleware"
	"github.com/grabvid/grabvid/internal/resolver"
	"github.com/grabvid/grabvid/pkg/twitter"
)

// V1Handler serves the versioned direct API for premium key holders.
// This trust tier bypasses the capability-token indirection and returns
// raw CDN URLs: machine clients who already pay are not browsers.
type V1Handler struct {
	chain  *resolver.Chain
	logger *slog.Logger
}

// NewV1Handler creates a v1 API handler.
func NewV1Handler(chain *resolver.Chain, logger *slog.Logger) *V1Handler {
	return &V1Handler{chain: chain, logger: logger}
}

// V1Variant is one rendition with its raw CDN URL exposed.
type V1Variant struct {
	Resolution string `json:"resolution"`
	Quality    string `json:"quality"`
	URL        string `json:"url"`
}

// V1ResolveResponse is the premium API payload.
type V1ResolveResponse struct {
	Thumbnail   string      `json:"thumbnail,omitempty"`
	Videos      []V1Variant `json:"videos"`
	Text        string      `json:"text,omitempty"`
	Username    string      `json:"username,omitempty"`
	StatusID    string      `json:"statusId,omitempty"`
	ProcessedAt time.Time   `json:"processed_at"`
}

// Resolve handles POST /api/v1/twitter.
func (h *V1Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	if !middleware.IsPremium(r) {
		respErr(w, http.StatusForbidden, "API access is only available for premium users. Please upgrade your account.")
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respErr(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.URL == "" {
		respErr(w, http.StatusBadRequest, "URL parameter is required")
		return
	}

	postURL := twitter.NormalizeURL(req.URL)
	if !twitter.IsValidURL(postURL) {
		respErr(w, http.StatusBadRequest, "Invalid Twitter/X URL format. Expected format: https://twitter.com/username/status/1234567890 or https://x.com/username/status/1234567890")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	result, err := h.chain.Resolve(ctx, postURL)
	if err != nil {
		respDomainErr(w, err)
		return
	}

	videos := make([]V1Variant, 0, len(result.Videos))
	for _, v := range result.Videos {
		videos = append(videos, V1Variant{
			Resolution: v.Resolution,
			Quality:    v.Quality,
			URL:        v.SourceURL,
		})
	}

	info := twitter.ExtractStatusInfo(postURL)
	respData(w, V1ResolveResponse{
		Thumbnail:   result.Thumbnail,
		Videos:      videos,
		Text:        result.Text,
		Username:    info.Username,
		StatusID:    info.StatusID,
		ProcessedAt: time.Now().UTC(),
	})
}

// Docs handles GET /api/v1/twitter: self-describing API documentation.
func (h *V1Handler) Docs(w http.ResponseWriter, r *http.Request) {
	respData(w, map[string]any{
		"name":        "Twitter Video API v1",
		"description": "Extract video information from Twitter/X URLs",
		"version":     "1.0.0",
		"authentication": map[string]any{
			"type":   "Bearer Token",
			"header": "Authorization: Bearer YOUR_API_KEY",
			"note":   "Only available for premium users",
		},
		"endpoints": map[string]any{
			"POST /api/v1/twitter": map[string]any{
				"description": "Extract video information from a Twitter/X URL",
				"body":        map[string]string{"url": "https://twitter.com/username/status/1234567890"},
				"response": map[string]any{
					"code": 0,
					"data": map[string]any{
						"thumbnail": "string|null",
						"videos":    []map[string]string{{"resolution": "string", "quality": "string", "url": "string"}},
						"text":      "string",
						"username":  "string",
						"statusId":  "string",
					},
				},
			},
		},
	})
}
