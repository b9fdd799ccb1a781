// Package service implements the resolve and fulfillment pipelines on
// top of the per-platform adapters, the token codec, and the ledger.
package service

import (
	"github.com/grabvid/grabvid/internal/domain"
	"github.com/grabvid/grabvid/pkg/kuaishou"
	"github.com/grabvid/grabvid/pkg/twitter"
)

// PostMeta identifies the post behind a validated URL. Fields are empty
// when the platform does not carry them.
type PostMeta struct {
	Username string
	StatusID string
	VideoID  string
}

// Site binds one platform's URL helpers to the generic pipelines.
type Site struct {
	Platform  domain.Platform
	Normalize func(raw string) string
	IsValid   func(url string) bool
	// Partition validates many URLs, preserving order and skipping
	// blank lines.
	Partition func(urls []string) (valid, invalid []string)
	// IsCDNURL re-checks a decoded CDN URL against the platform's host
	// pattern before any billing happens.
	IsCDNURL func(url string) bool
	// ExtractMeta recovers identifying fields from a post URL.
	ExtractMeta func(postURL string) PostMeta
	// DetailPath is the endpoint clients redeem single-media tokens at.
	DetailPath string
}

// TwitterSite wires the Twitter/X URL helpers.
func TwitterSite() Site {
	return Site{
		Platform:  domain.PlatformTwitter,
		Normalize: twitter.NormalizeURL,
		IsValid:   twitter.IsValidURL,
		Partition: func(urls []string) ([]string, []string) {
			v := twitter.ValidateURLs(urls)
			return v.Valid, v.Invalid
		},
		IsCDNURL: twitter.IsCDNURL,
		ExtractMeta: func(postURL string) PostMeta {
			info := twitter.ExtractStatusInfo(postURL)
			return PostMeta{Username: info.Username, StatusID: info.StatusID}
		},
		DetailPath: "/api/twitter/get-download-details",
	}
}

// KuaishouSite wires the Kuaishou URL helpers.
func KuaishouSite() Site {
	return Site{
		Platform:  domain.PlatformKuaishou,
		Normalize: kuaishou.NormalizeURL,
		IsValid:   kuaishou.IsValidURL,
		Partition: func(urls []string) ([]string, []string) {
			v := kuaishou.ValidateURLs(urls)
			return v.Valid, v.Invalid
		},
		IsCDNURL: kuaishou.IsCDNURL,
		ExtractMeta: func(postURL string) PostMeta {
			info := kuaishou.ExtractVideoInfo(postURL)
			return PostMeta{VideoID: info.VideoID}
		},
		DetailPath: "/api/kuaishou/get-download-details",
	}
}
