package token

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/grabvid/grabvid/internal/domain"
)

var testSecret = []byte("test-secret-key-for-codec")

func newTestCodec(t *testing.T, opts ...Option) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret, opts...)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return c
}

func TestNewCodecRequiresSecret(t *testing.T) {
	if _, err := NewCodec(nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestSingleRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	variant := domain.MediaVariant{
		SourceURL:  "https://video.twimg.com/ext_tw_video/123/pu/vid/1280x720/abc.mp4?tag=16",
		Resolution: "720p",
		Quality:    "HD",
	}

	tok, err := c.MintSingle(variant)
	if err != nil {
		t.Fatalf("MintSingle failed: %v", err)
	}

	got, err := c.VerifySingle(tok)
	if err != nil {
		t.Fatalf("VerifySingle failed: %v", err)
	}

	if got.URL != variant.SourceURL {
		t.Errorf("URL = %q, want %q", got.URL, variant.SourceURL)
	}
	if got.Resolution != "720p" || got.Quality != "HD" {
		t.Errorf("payload = %+v", got)
	}
}

func TestSingleTamperRejection(t *testing.T) {
	c := newTestCodec(t)

	tok, err := c.MintSingle(domain.MediaVariant{
		SourceURL:  "https://video.twimg.com/vid/abc.mp4",
		Resolution: "480p",
		Quality:    "SD",
	})
	if err != nil {
		t.Fatalf("MintSingle failed: %v", err)
	}

	// Flip one byte in each segment of the token.
	for _, pos := range []int{2, len(tok) / 2, len(tok) - 2} {
		b := []byte(tok)
		if b[pos] == 'A' {
			b[pos] = 'B'
		} else {
			b[pos] = 'A'
		}
		if _, err := c.VerifySingle(string(b)); !errors.Is(err, domain.ErrInvalidToken) {
			t.Errorf("tampered token at %d accepted, err = %v", pos, err)
		}
	}

	// Signed with a different secret.
	other, _ := NewCodec([]byte("a-completely-different-secret"))
	tok2, _ := other.MintSingle(domain.MediaVariant{SourceURL: "u", Resolution: "480p", Quality: "SD"})
	if _, err := c.VerifySingle(tok2); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("cross-secret token accepted, err = %v", err)
	}
}

func TestSingleExpiry(t *testing.T) {
	minted := time.Now().Add(-2 * time.Hour)
	past, err := NewCodec(testSecret, WithClock(func() time.Time { return minted }))
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	tok, err := past.MintSingle(domain.MediaVariant{
		SourceURL:  "https://video.twimg.com/vid/abc.mp4",
		Resolution: "720p",
		Quality:    "HD",
	})
	if err != nil {
		t.Fatalf("MintSingle failed: %v", err)
	}

	// The token carried a 1h TTL from two hours ago.
	now := newTestCodec(t)
	if _, err := now.VerifySingle(tok); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("expired token accepted, err = %v", err)
	}

	// Still valid when verified within its window.
	within := newTestCodec(t, WithClock(func() time.Time { return minted.Add(30 * time.Minute) }))
	if _, err := within.VerifySingle(tok); err != nil {
		t.Errorf("unexpired token rejected: %v", err)
	}
}

func TestBatchRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	payload := map[string]any{
		"results": []string{"a", "b"},
		"summary": map[string]int{"total": 2, "successful": 2, "failed": 0},
	}

	tok, err := c.MintBatch(payload)
	if err != nil {
		t.Fatalf("MintBatch failed: %v", err)
	}

	raw, err := c.VerifyBatch(tok)
	if err != nil {
		t.Fatalf("VerifyBatch failed: %v", err)
	}

	var decoded struct {
		Results []string       `json:"results"`
		Summary map[string]int `json:"summary"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(decoded.Results) != 2 || decoded.Summary["successful"] != 2 {
		t.Errorf("decoded payload = %+v", decoded)
	}
}

func TestBatchRejectsSingleToken(t *testing.T) {
	c := newTestCodec(t)

	single, err := c.MintSingle(domain.MediaVariant{
		SourceURL:  "https://video.twimg.com/vid/abc.mp4",
		Resolution: "720p",
		Quality:    "HD",
	})
	if err != nil {
		t.Fatalf("MintSingle failed: %v", err)
	}

	// A single-media token has no batch_results type marker.
	if _, err := c.VerifyBatch(single); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("single token accepted as batch, err = %v", err)
	}
}

func TestSingleRejectsBatchToken(t *testing.T) {
	c := newTestCodec(t)

	batch, err := c.MintBatch(map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("MintBatch failed: %v", err)
	}

	if _, err := c.VerifySingle(batch); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("batch token accepted as single, err = %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	c := newTestCodec(t)

	for _, tok := range []string{"", "garbage", "a.b.c", strings.Repeat("x", 512)} {
		if _, err := c.VerifySingle(tok); !errors.Is(err, domain.ErrInvalidToken) {
			t.Errorf("VerifySingle(%q) err = %v, want ErrInvalidToken", tok, err)
		}
		if _, err := c.VerifyBatch(tok); !errors.Is(err, domain.ErrInvalidToken) {
			t.Errorf("VerifyBatch(%q) err = %v, want ErrInvalidToken", tok, err)
		}
	}
}
