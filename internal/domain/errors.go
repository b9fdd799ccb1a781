package domain

import (
	"errors"
	"fmt"
)

// Domain errors.
var (
	// ErrInvalidURL is returned when a post URL fails platform validation.
	ErrInvalidURL = errors.New("invalid post URL")

	// ErrUpstreamResolution is returned when every resolver strategy for a
	// platform has failed.
	ErrUpstreamResolution = errors.New("failed to fetch video info from all sources")

	// ErrNoMediaFound is returned when resolution succeeded but no usable
	// media variants survived filtering.
	ErrNoMediaFound = errors.New("no media found")

	// ErrInvalidToken is returned when a capability token fails signature,
	// issuer, algorithm, expiry, or payload-shape checks.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrInvalidVideoURL is returned when a decoded CDN URL does not match
	// the expected host pattern for its platform.
	ErrInvalidVideoURL = errors.New("invalid video URL")

	// ErrAuthRequired is returned when an endpoint requires a signed-in
	// caller and none could be resolved.
	ErrAuthRequired = errors.New("login required")

	// ErrUpstreamUnavailable is returned when the CDN URL failed its
	// liveness check at fulfillment time.
	ErrUpstreamUnavailable = errors.New("video source unavailable")

	// ErrPersistence is returned when a ledger or history write failed.
	ErrPersistence = errors.New("persistence failure")

	// ErrAPIKeyInvalid is returned when a v1 API key is missing or unknown.
	ErrAPIKeyInvalid = errors.New("invalid API key")

	// ErrPremiumRequired is returned when a non-premium key calls the v1 API.
	ErrPremiumRequired = errors.New("premium subscription required")

	// ErrBatchTooLarge is returned when a batch request exceeds the limit.
	ErrBatchTooLarge = errors.New("too many URLs in batch")

	// ErrNoValidURLs is returned when batch normalization yields nothing.
	ErrNoValidURLs = errors.New("no valid URLs provided")

	// ErrTransactionNotFound is returned when a ledger row cannot be found.
	ErrTransactionNotFound = errors.New("credit transaction not found")
)

// InsufficientCreditsError reports a failed balance check. It carries the
// true available/required counts for user-facing messaging.
type InsufficientCreditsError struct {
	Available int64
	Required  int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: available %d, required %d", e.Available, e.Required)
}

// IsInsufficientCredits reports whether err is an InsufficientCreditsError
// and returns it when so.
func IsInsufficientCredits(err error) (*InsufficientCreditsError, bool) {
	var ice *InsufficientCreditsError
	if errors.As(err, &ice) {
		return ice, true
	}
	return nil, false
}
