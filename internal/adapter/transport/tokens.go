package transport

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/colabtools/colabctl/internal/core/ports"
)

// CoalescingTokenSource wraps an AccessTokenSource so that concurrent
// callers share one in-flight token fetch instead of stampeding the
// OAuth endpoint.
type CoalescingTokenSource struct {
	src   ports.AccessTokenSource
	group singleflight.Group
}

func NewCoalescingTokenSource(src ports.AccessTokenSource) *CoalescingTokenSource {
	return &CoalescingTokenSource{src: src}
}

func (s *CoalescingTokenSource) Token(ctx context.Context, forceRefresh bool) (string, error) {
	key := "token"
	if forceRefresh {
		key = "token-refresh"
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.src.Token(ctx, forceRefresh)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
