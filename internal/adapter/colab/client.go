package colab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/colabtools/colabctl/internal/adapter/transport"
	"github.com/colabtools/colabctl/internal/core/constants"
	"github.com/colabtools/colabctl/internal/core/domain"
	"github.com/colabtools/colabctl/internal/core/ports"
	"github.com/colabtools/colabctl/internal/logger"
	"github.com/colabtools/colabctl/internal/util"
)

const (
	defaultProxyTTLSeconds = 600
	defaultKernelName      = "python3"
)

// RetryPolicy bounds the retry loop for transient upstream failures
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
	Jitter      float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Base:        500 * time.Millisecond,
		Cap:         8 * time.Second,
		Jitter:      0,
	}
}

// Client is the typed wrapper over the Colab REST surface. It retries
// 429/5xx with exponential backoff and converts 401 into
// ErrUnauthenticated after one forced token refresh.
type Client struct {
	transport  *transport.Client
	tokens     ports.AccessTokenSource
	apiDomain  string
	gapiDomain string
	retry      RetryPolicy
	logger     *logger.StyledLogger
}

func NewClient(t *transport.Client, tokens ports.AccessTokenSource, apiDomain, gapiDomain string, retry RetryPolicy, log *logger.StyledLogger) *Client {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	return &Client{
		transport:  t,
		tokens:     tokens,
		apiDomain:  apiDomain,
		gapiDomain: gapiDomain,
		retry:      retry,
		logger:     log,
	}
}

// do runs one logical request through the retry policy
func (c *Client) do(ctx context.Context, method, requestURL string, body any) ([]byte, error) {
	attempt := 0
	refreshed := false

	for {
		attempt++
		data, err := c.transport.Do(ctx, method, requestURL, nil, body)
		if err == nil {
			return data, nil
		}

		var httpErr *domain.HTTPError
		if !errors.As(err, &httpErr) {
			return nil, err
		}

		if httpErr.StatusCode == http.StatusUnauthorized {
			if refreshed {
				return nil, fmt.Errorf("%w: %s", domain.ErrUnauthenticated, requestURL)
			}
			// one forced refresh, then one more try
			if _, terr := c.tokens.Token(ctx, true); terr != nil {
				return nil, fmt.Errorf("%w: token refresh failed: %v", domain.ErrUnauthenticated, terr)
			}
			refreshed = true
			attempt--
			continue
		}

		if !httpErr.Retryable() || attempt >= c.retry.MaxAttempts {
			return nil, err
		}

		delay := util.CalculateExponentialBackoff(attempt, c.retry.Base, c.retry.Cap, c.retry.Jitter)
		c.logger.Debug("retrying upstream request", "url", requestURL, "attempt", attempt, "delay", delay.String(), "status", httpErr.StatusCode)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Client) GetCcuInfo(ctx context.Context) (*domain.CcuInfo, error) {
	requestURL := c.gapiDomain + "/v1/ccu-info"
	data, err := c.do(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := transport.Decode[ccuInfoResponse](data, requestURL)
	if err != nil {
		return nil, err
	}
	return &domain.CcuInfo{
		AvailableComputeUnits: resp.AvailableComputeUnits,
		UsageRatePerHour:      resp.UsageRatePerHour,
		EligibleForUpgrade:    resp.EligibleForUpgrade,
	}, nil
}

func (c *Client) GetUserInfo(ctx context.Context) (*domain.UserInfo, error) {
	requestURL := c.gapiDomain + "/v1/user-info"
	data, err := c.do(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := transport.Decode[userInfoResponse](data, requestURL)
	if err != nil {
		return nil, err
	}
	return &domain.UserInfo{
		Email:            resp.Email,
		DisplayName:      resp.DisplayName,
		SubscriptionTier: domain.NormalizeGapiSubscriptionTier(resp.SubscriptionTier),
	}, nil
}

func (c *Client) ListAssignments(ctx context.Context) ([]*domain.Assignment, error) {
	requestURL := c.apiDomain + "/api/assignments"
	data, err := c.do(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := transport.Decode[listAssignmentsResponse](data, requestURL)
	if err != nil {
		return nil, err
	}
	assignments := make([]*domain.Assignment, 0, len(resp.Assignments))
	for i := range resp.Assignments {
		assignments = append(assignments, resp.Assignments[i].toDomain())
	}
	return assignments, nil
}

func (c *Client) PostAssignment(ctx context.Context, variant domain.Variant, forceNew bool) (*domain.AssignmentResult, error) {
	requestURL := c.apiDomain + "/api/assignments"
	body := postAssignmentRequest{ForceNew: forceNew}
	if variant != "" {
		body.Variant = variant.String()
	}

	data, err := c.do(ctx, http.MethodPost, requestURL, body)
	if err != nil {
		return nil, err
	}
	resp, err := transport.Decode[postAssignmentResponse](data, requestURL)
	if err != nil {
		return nil, err
	}

	result := &domain.AssignmentResult{Outcome: domain.NormalizeOutcome(resp.Outcome)}
	if resp.Assignment != nil {
		result.Assignment = resp.Assignment.toDomain()
	}
	if resp.RuntimeProxyInfo != nil {
		if err := resp.RuntimeProxyInfo.Validate(); err != nil {
			return nil, &domain.SchemaError{Err: err, URL: requestURL}
		}
		result.Proxy = resp.RuntimeProxyInfo.toDomain()
	}
	return result, nil
}

func (c *Client) RefreshConnection(ctx context.Context, endpoint string) (*domain.ProxyInfo, error) {
	requestURL := c.apiDomain + "/api/connections/refresh"
	data, err := c.do(ctx, http.MethodPost, requestURL, refreshConnectionRequest{Endpoint: endpoint})
	if err != nil {
		return nil, err
	}
	resp, err := transport.Decode[wireProxyInfo](data, requestURL)
	if err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

func (c *Client) ListKernels(ctx context.Context, proxy *domain.ProxyInfo) ([]domain.Kernel, error) {
	requestURL := proxiedURL(proxy, "/api/kernels", nil)
	data, err := c.do(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := transport.Decode[listKernelsResponse](data, requestURL)
	if err != nil {
		return nil, err
	}
	return *resp, nil
}

func (c *Client) ListSessions(ctx context.Context, proxy *domain.ProxyInfo) ([]domain.JupyterSession, error) {
	requestURL := proxiedURL(proxy, "/api/sessions", nil)
	data, err := c.do(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := transport.Decode[listSessionsResponse](data, requestURL)
	if err != nil {
		return nil, err
	}
	return *resp, nil
}

func (c *Client) CreateSession(ctx context.Context, proxy *domain.ProxyInfo, path, kernelName string) (*domain.JupyterSession, error) {
	if kernelName == "" {
		kernelName = defaultKernelName
	}
	requestURL := proxiedURL(proxy, "/api/sessions", nil)
	body := createSessionRequest{
		Path:   path,
		Type:   "notebook",
		Kernel: createSessionKernel{Name: kernelName},
	}
	data, err := c.do(ctx, http.MethodPost, requestURL, body)
	if err != nil {
		return nil, err
	}
	resp, err := transport.Decode[domain.JupyterSession](data, requestURL)
	if err != nil {
		return nil, err
	}
	if resp.ID == "" || resp.Kernel.ID == "" {
		return nil, &domain.SchemaError{Err: errors.New("session id and kernel id are required"), URL: requestURL}
	}
	return resp, nil
}

func (c *Client) DeleteSession(ctx context.Context, proxy *domain.ProxyInfo, sessionID string) error {
	requestURL := proxiedURL(proxy, "/api/sessions/"+url.PathEscape(sessionID), nil)
	_, err := c.do(ctx, http.MethodDelete, requestURL, nil)
	return err
}

// proxiedURL builds a backend URL carrying the proxy token as the
// `token` query parameter, the way the Jupyter proxy expects it
func proxiedURL(proxy *domain.ProxyInfo, path string, extra url.Values) string {
	q := url.Values{}
	q.Set(constants.QueryParamToken, proxy.Token)
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return proxy.URL + path + "?" + q.Encode()
}
