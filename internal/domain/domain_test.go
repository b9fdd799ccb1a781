package domain

import (
	"strings"
	"testing"
)

func TestFormatResolution(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1920x1080", "1080p"},
		{"1280x720", "720p"},
		{"480x270", "270p"},
		{"720p", "720p"},
		{"raw", "raw"},
	}

	for _, tt := range tests {
		if got := FormatResolution(tt.in); got != tt.want {
			t.Errorf("FormatResolution(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQualityForResolution(t *testing.T) {
	if q := QualityForResolution("720p"); q != QualityHD {
		t.Errorf("720p = %q, want HD", q)
	}
	if q := QualityForResolution("1080p"); q != QualityHD {
		t.Errorf("1080p = %q, want HD", q)
	}
	if q := QualityForResolution("480p"); q != QualitySD {
		t.Errorf("480p = %q, want SD", q)
	}
	if q := QualityForResolution("garbage"); q != QualitySD {
		t.Errorf("garbage = %q, want SD", q)
	}
}

func TestRequiredCredits(t *testing.T) {
	tests := []struct {
		resolution string
		want       int64
	}{
		{"2160p", 2},
		{"1080p", 2},
		{"720p", 2},
		{"576p", 1},
		{"480p", 1},
		{"270p", 1},
		{"", 1},
		{"bogus", 1},
	}

	for _, tt := range tests {
		got := RequiredCredits(tt.resolution)
		if got != tt.want {
			t.Errorf("RequiredCredits(%q) = %d, want %d", tt.resolution, got, tt.want)
		}
		if got <= 0 {
			t.Errorf("RequiredCredits(%q) = %d, cost must be positive", tt.resolution, got)
		}
	}
}

func TestSortVariants(t *testing.T) {
	variants := []MediaVariant{
		{SourceURL: "a", Resolution: "270p"},
		{SourceURL: "b", Resolution: "1080p"},
		{SourceURL: "c", Resolution: "720p"},
	}

	SortVariants(variants)

	want := []string{"1080p", "720p", "270p"}
	for i, w := range want {
		if variants[i].Resolution != w {
			t.Errorf("variants[%d].Resolution = %q, want %q", i, variants[i].Resolution, w)
		}
	}
}

func TestDownloadFileName(t *testing.T) {
	got := DownloadFileName(PlatformTwitter, "https://video.twimg.com/ext_tw_video/123/pu/vid/1280x720/abcDEF.mp4?tag=16", "720p")
	if got != "TwitterDown_abcDEF_720p.mp4" {
		t.Errorf("filename = %q", got)
	}

	// No extension falls back to mp4
	got = DownloadFileName(PlatformKuaishou, "https://v2.kwaicdn.com/clip/xyz", "720p")
	if got != "KuaishouVideoDownload_xyz_720p.mp4" {
		t.Errorf("filename = %q", got)
	}
}

func TestSerialNumbers(t *testing.T) {
	trans := NewTransNo()
	if !strings.HasPrefix(trans, "CREDIT_") {
		t.Errorf("trans_no %q missing prefix", trans)
	}

	dl := NewDownloadNo()
	if !strings.HasPrefix(dl, "DOWNLOAD_") {
		t.Errorf("download_no %q missing prefix", dl)
	}

	if NewTransNo() == trans {
		t.Error("trans numbers must be unique")
	}
}
