package colab

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colabtools/colabctl/internal/adapter/transport"
	"github.com/colabtools/colabctl/internal/core/domain"
	"github.com/colabtools/colabctl/internal/logger"
)

type fakeTokenSource struct {
	token    string
	refreshs atomic.Int64
}

func (f *fakeTokenSource) Token(ctx context.Context, forceRefresh bool) (string, error) {
	if forceRefresh {
		f.refreshs.Add(1)
		f.token = "refreshed"
	}
	return f.token, nil
}

func testLogger() *logger.StyledLogger {
	return logger.NewPlainStyledLogger(slog.New(slog.DiscardHandler))
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Base: time.Millisecond, Cap: 5 * time.Millisecond}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server, *fakeTokenSource) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tokens := &fakeTokenSource{token: "initial"}
	tr := transport.New(tokens, 5*time.Second, testLogger())
	return NewClient(tr, tokens, srv.URL, srv.URL, fastRetry(), testLogger()), srv, tokens
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"assignments":[]}`))
	}))

	assignments, err := client.ListAssignments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, assignments)
	assert.Equal(t, int64(3), calls.Load())
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int64
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.ListAssignments(context.Background())
	var httpErr *domain.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, int64(3), calls.Load())
}

func TestClient_FatalClientError(t *testing.T) {
	var calls atomic.Int64
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := client.ListAssignments(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load(), "4xx must not be retried")
}

func TestClient_RefreshesTokenOn401(t *testing.T) {
	client, _, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer refreshed" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"assignments":[]}`))
	}))

	_, err := client.ListAssignments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), tokens.refreshs.Load())
}

func TestClient_SurfacesUnauthenticatedAfterRefresh(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.ListAssignments(context.Background())
	require.True(t, errors.Is(err, domain.ErrUnauthenticated))
}

func TestClient_ListAssignments_NormalizesEnums(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"assignments":[
			{"label":"gpu-1","endpoint":"m-abc123","accelerator":"T4","variant":"gpu","machineShape":"HIGH_MEM","subscriptionTier":2}
		]}`))
	}))

	assignments, err := client.ListAssignments(context.Background())
	require.NoError(t, err)
	require.Len(t, assignments, 1)

	a := assignments[0]
	assert.Equal(t, domain.VariantGPU, a.Variant)
	assert.Equal(t, domain.ShapeHighMem, a.MachineShape)
	assert.Equal(t, domain.TierProPlus, a.SubscriptionTier)
	assert.Equal(t, "m-abc123", a.Endpoint)
}

func TestClient_GetUserInfo_NormalizesGapiTier(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"email":"dev@example.com","subscriptionTier":"PRO"}`))
	}))

	info, err := client.GetUserInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, info.SubscriptionTier)
}

func TestClient_PostAssignment_Success(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{
			"outcome":"SUCCESS",
			"assignment":{"label":"tpu-1","endpoint":"m-tpu","accelerator":"v5e","variant":"TPU"},
			"runtimeProxyInfo":{"proxyUrl":"https://proxy.example","token":"pt","ttlSeconds":600}
		}`))
	}))

	result, err := client.PostAssignment(context.Background(), domain.VariantTPU, true)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, result.Outcome)
	require.NotNil(t, result.Assignment)
	assert.Equal(t, domain.VariantTPU, result.Assignment.Variant)
	require.NotNil(t, result.Proxy)
	assert.True(t, result.Proxy.Valid(time.Now()))
}

func TestClient_PostAssignment_SchemaError(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"assignment":{}}`))
	}))

	_, err := client.PostAssignment(context.Background(), "", false)
	var schemaErr *domain.SchemaError
	require.True(t, errors.As(err, &schemaErr), "missing outcome should be a schema error")
}

func TestClient_CreateSession(t *testing.T) {
	var gotToken string
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("token")
		w.Write([]byte(`{"id":"sess-1","path":"nb.ipynb","kernel":{"id":"kern-1","name":"python3"}}`))
	}))

	proxy := &domain.ProxyInfo{URL: clientBase(t, client), Token: "pt", IssuedAt: time.Now(), TTLSeconds: 600}
	sess, err := client.CreateSession(context.Background(), proxy, "nb.ipynb", "")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sess.ID)
	assert.Equal(t, "kern-1", sess.Kernel.ID)
	assert.Equal(t, "pt", gotToken)
}

// clientBase exposes the api domain for proxied requests in tests
func clientBase(t *testing.T, c *Client) string {
	t.Helper()
	return c.apiDomain
}
