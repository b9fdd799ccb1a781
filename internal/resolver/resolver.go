// Package resolver turns validated post URLs into media variants by
// trying an ordered list of per-platform scraping strategies.
package resolver

import (
	"context"
	"log/slog"

	"github.com/grabvid/grabvid/internal/domain"
)

// Strategy converts a platform post URL into media variants via scraping
// or a private API. Implementations never panic across this boundary;
// any upstream failure comes back as an error.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Resolve fetches media variants for an already-validated post URL.
	Resolve(ctx context.Context, postURL string) (*domain.ResolveResult, error)
}

// Chain tries strategies in order until one returns a non-empty success.
// Adding, removing, or reordering sources is a construction-time change,
// not a code change.
type Chain struct {
	platform   domain.Platform
	strategies []Strategy
	logger     *slog.Logger
}

// NewChain creates a resolver chain for one platform.
func NewChain(platform domain.Platform, logger *slog.Logger, strategies ...Strategy) *Chain {
	return &Chain{
		platform:   platform,
		strategies: strategies,
		logger:     logger,
	}
}

// Platform reports which platform this chain serves.
func (c *Chain) Platform() domain.Platform { return c.platform }

// Resolve runs the chain. Individual strategy failures are logged and
// absorbed; only when every strategy has failed does the caller see
// domain.ErrUpstreamResolution.
func (c *Chain) Resolve(ctx context.Context, postURL string) (*domain.ResolveResult, error) {
	for _, s := range c.strategies {
		result, err := s.Resolve(ctx, postURL)
		if err != nil {
			c.logger.Warn("resolver strategy failed",
				"platform", c.platform,
				"strategy", s.Name(),
				"error", err,
			)
			continue
		}
		if len(result.Videos) == 0 {
			c.logger.Warn("resolver strategy returned no media",
				"platform", c.platform,
				"strategy", s.Name(),
			)
			continue
		}

		c.logger.Info("resolved media variants",
			"platform", c.platform,
			"strategy", s.Name(),
			"variants", len(result.Videos),
		)
		return result, nil
	}

	return nil, domain.ErrUpstreamResolution
}
