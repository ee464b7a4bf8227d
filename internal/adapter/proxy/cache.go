// Package proxy caches the short-lived tokens that authenticate
// traffic to an assigned backend, refreshing them per endpoint with
// at-most-one refresh in flight.
package proxy

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/singleflight"

	"github.com/colabtools/colabctl/internal/core/domain"
	"github.com/colabtools/colabctl/internal/core/ports"
	"github.com/colabtools/colabctl/internal/logger"
)

// refresher is the one ColabAPI operation the cache needs
type refresher interface {
	RefreshConnection(ctx context.Context, endpoint string) (*domain.ProxyInfo, error)
}

// TokenCache implements ports.ProxyTokenSource
type TokenCache struct {
	api     refresher
	entries *xsync.Map[string, *domain.ProxyInfo]
	group   singleflight.Group
	now     func() time.Time
	logger  *logger.StyledLogger
}

var _ ports.ProxyTokenSource = (*TokenCache)(nil)

func NewTokenCache(api refresher, log *logger.StyledLogger) *TokenCache {
	return &TokenCache{
		api:     api,
		entries: xsync.NewMap[string, *domain.ProxyInfo](),
		now:     time.Now,
		logger:  log,
	}
}

// Get returns a valid proxy credential for the endpoint, refreshing it
// when the cached one is missing or inside its safety margin.
// Concurrent misses for one endpoint coalesce into a single refresh.
func (c *TokenCache) Get(ctx context.Context, endpoint string) (*domain.ProxyInfo, error) {
	if info, ok := c.entries.Load(endpoint); ok && info.Valid(c.now()) {
		return info, nil
	}

	v, err, _ := c.group.Do(endpoint, func() (any, error) {
		// a racing caller may have refreshed while we queued
		if info, ok := c.entries.Load(endpoint); ok && info.Valid(c.now()) {
			return info, nil
		}

		c.logger.Debug("refreshing proxy token", "endpoint", endpoint)
		info, err := c.api.RefreshConnection(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		c.entries.Store(endpoint, info)
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.ProxyInfo), nil
}

// Invalidate drops the cached credential so the next Get refreshes
func (c *TokenCache) Invalidate(endpoint string) {
	c.entries.Delete(endpoint)
}
