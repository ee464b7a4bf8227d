// Package ports declares the seams between the runtime core and its
// collaborators. Adapters implement these; the core only sees interfaces.
package ports

import (
	"context"

	"github.com/colabtools/colabctl/internal/core/domain"
)

// AccessTokenSource supplies a bearer token for upstream requests.
// Implementations may perform an OAuth refresh when forceRefresh is set.
type AccessTokenSource interface {
	Token(ctx context.Context, forceRefresh bool) (string, error)
}

// ColabAPI is the typed surface over the Colab REST endpoints
type ColabAPI interface {
	GetCcuInfo(ctx context.Context) (*domain.CcuInfo, error)
	GetUserInfo(ctx context.Context) (*domain.UserInfo, error)
	ListAssignments(ctx context.Context) ([]*domain.Assignment, error)
	PostAssignment(ctx context.Context, variant domain.Variant, forceNew bool) (*domain.AssignmentResult, error)
	RefreshConnection(ctx context.Context, endpoint string) (*domain.ProxyInfo, error)
	ListKernels(ctx context.Context, proxy *domain.ProxyInfo) ([]domain.Kernel, error)
	ListSessions(ctx context.Context, proxy *domain.ProxyInfo) ([]domain.JupyterSession, error)
	CreateSession(ctx context.Context, proxy *domain.ProxyInfo, path, kernelName string) (*domain.JupyterSession, error)
	DeleteSession(ctx context.Context, proxy *domain.ProxyInfo, sessionID string) error
}

// ProxyTokenSource hands out valid proxy credentials per endpoint
type ProxyTokenSource interface {
	Get(ctx context.Context, endpoint string) (*domain.ProxyInfo, error)
	Invalidate(endpoint string)
}

// HistoryStore persists and queries the execution log
type HistoryStore interface {
	Append(entry *domain.HistoryEntry) error
	Query(filter domain.HistoryFilter) ([]*domain.HistoryEntry, error)
	Stats() (*domain.HistoryStats, error)
	Clear() error
}
