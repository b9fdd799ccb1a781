// Package token mints and verifies the capability tokens that stand in
// for raw CDN URLs. Tokens are signed, time-boxed bearer credentials:
// the client only ever sees the opaque token, never the URL inside it.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/grabvid/grabvid/internal/domain"
)

const (
	// Issuer baked into every minted token and required on verify.
	Issuer = "twitter-video-downloader"

	// SingleTTL bounds the life of a single-media token.
	SingleTTL = time.Hour

	// BatchTTL bounds the life of a batch-results token.
	BatchTTL = 2 * time.Hour

	batchSubject = "batch_download_results"
	batchType    = "batch_results"
)

// signingMethod is the only accepted algorithm. Anything else is an
// algorithm-confusion attempt and fails verification.
var signingMethod = jwt.SigningMethodHS256

// SingleMedia is the payload of a single-media capability token.
type SingleMedia struct {
	URL        string `json:"url"`
	Resolution string `json:"resolution"`
	Quality    string `json:"quality"`
}

type singleClaims struct {
	SingleMedia
	jwt.RegisteredClaims
}

type batchClaims struct {
	Data json.RawMessage `json:"data"`
	Type string          `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies capability tokens with a process-wide
// symmetric key loaded once at startup.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock overrides the codec's time source. Used by tests to mint
// already-expired tokens and verify at fixed instants.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec creates a codec over the given signing secret.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: signing secret is required")
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MintSingle wraps one media variant into a signed single-media token.
// Subject is the CDN URL, expiry is SingleTTL from now.
func (c *Codec) MintSingle(variant domain.MediaVariant) (string, error) {
	now := c.now()
	claims := singleClaims{
		SingleMedia: SingleMedia{
			URL:        variant.SourceURL,
			Resolution: variant.Resolution,
			Quality:    variant.Quality,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   variant.SourceURL,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SingleTTL)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign single-media token: %w", err)
	}
	return signed, nil
}

// VerifySingle validates a single-media token and recovers its payload.
// Any signature, algorithm, issuer, expiry, or shape failure yields
// domain.ErrInvalidToken.
func (c *Codec) VerifySingle(tokenString string) (*SingleMedia, error) {
	claims := &singleClaims{}
	if err := c.parse(tokenString, claims); err != nil {
		return nil, err
	}

	if claims.URL == "" || claims.Resolution == "" || claims.Quality == "" {
		return nil, domain.ErrInvalidToken
	}

	media := claims.SingleMedia
	return &media, nil
}

// MintBatch wraps an arbitrary JSON-marshalable payload into a signed
// batch-results token with a fixed subject and BatchTTL expiry.
func (c *Codec) MintBatch(data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal batch payload: %w", err)
	}

	now := c.now()
	claims := batchClaims{
		Data: raw,
		Type: batchType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   batchSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(BatchTTL)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign batch token: %w", err)
	}
	return signed, nil
}

// VerifyBatch validates a batch-results token and returns the raw JSON
// payload it carries.
func (c *Codec) VerifyBatch(tokenString string) (json.RawMessage, error) {
	claims := &batchClaims{}
	if err := c.parse(tokenString, claims); err != nil {
		return nil, err
	}

	if claims.Type != batchType || len(claims.Data) == 0 {
		return nil, domain.ErrInvalidToken
	}

	return claims.Data, nil
}

func (c *Codec) parse(tokenString string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return domain.ErrInvalidToken
	}
	return nil
}
