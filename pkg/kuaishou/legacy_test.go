package kuaishou

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/grabvid/grabvid/internal/domain"
)

// legacyBlob is a representative de-obfuscated payload. No spaces: the
// candidate pattern only matches fully printable non-space runs.
const legacyBlob = `{"photoUrl":"https://v26.kuaishouapp.com/clip/video.mp4","coverUrl":"https://tx2.a.kwimgs.com/cover.jpg","caption":"nice_clip","ext_params":{"w":720,"h":1280}}`

func TestShiftASCII_RoundTrip(t *testing.T) {
	for shift := 1; shift <= maxShift; shift++ {
		if got := shiftASCII(shiftASCII(legacyBlob, shift), -shift); got != legacyBlob {
			t.Errorf("shift %d does not round-trip", shift)
		}
	}
}

func TestFindObfuscatedBlob(t *testing.T) {
	page := `<script>window.__DATA__="` + shiftASCII(legacyBlob, 3) + `";</script>`

	blob, ok := findObfuscatedBlob(page)
	if !ok {
		t.Fatal("blob not found")
	}
	if blob != legacyBlob {
		t.Errorf("blob = %q, want original payload", blob)
	}
}

func TestFindObfuscatedBlob_NoCandidate(t *testing.T) {
	if _, ok := findObfuscatedBlob(`<html><body>nothing here</body></html>`); ok {
		t.Error("found a blob in a page without one")
	}
}

func TestLegacyPageResolver_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<script>window.__DATA__="` + shiftASCII(legacyBlob, 3) + `";</script>`))
	}))
	t.Cleanup(srv.Close)

	r := NewLegacyPageResolver(5*time.Second, slog.New(slog.DiscardHandler))

	result, err := r.Resolve(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(result.Videos) != 1 {
		t.Fatalf("videos = %d, want 1", len(result.Videos))
	}
	v := result.Videos[0]
	if v.SourceURL != "https://v26.kuaishouapp.com/clip/video.mp4" {
		t.Errorf("SourceURL = %q", v.SourceURL)
	}
	if v.Resolution != "1280p" || v.Quality != domain.QualityHD {
		t.Errorf("variant = %+v, want 1280p HD", v)
	}
	if result.Text != "nice_clip" {
		t.Errorf("text = %q", result.Text)
	}
	if result.Thumbnail != "https://tx2.a.kwimgs.com/cover.jpg" {
		t.Errorf("thumbnail = %q", result.Thumbnail)
	}
}

func TestLegacyPageResolver_NoBlob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>plain page</body></html>`))
	}))
	t.Cleanup(srv.Close)

	r := NewLegacyPageResolver(5*time.Second, slog.New(slog.DiscardHandler))

	_, err := r.Resolve(context.Background(), srv.URL)
	if !errors.Is(err, domain.ErrNoMediaFound) {
		t.Fatalf("err = %v, want ErrNoMediaFound", err)
	}
}
