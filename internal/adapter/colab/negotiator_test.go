package colab

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colabtools/colabctl/internal/core/domain"
)

type fakeAPI struct {
	assignments []*domain.Assignment
	listErr     error
	postResult  *domain.AssignmentResult
	postErr     error
	postCalls   int
}

func (f *fakeAPI) GetCcuInfo(ctx context.Context) (*domain.CcuInfo, error)   { return nil, nil }
func (f *fakeAPI) GetUserInfo(ctx context.Context) (*domain.UserInfo, error) { return nil, nil }

func (f *fakeAPI) ListAssignments(ctx context.Context) ([]*domain.Assignment, error) {
	return f.assignments, f.listErr
}

func (f *fakeAPI) PostAssignment(ctx context.Context, variant domain.Variant, forceNew bool) (*domain.AssignmentResult, error) {
	f.postCalls++
	return f.postResult, f.postErr
}

func (f *fakeAPI) RefreshConnection(ctx context.Context, endpoint string) (*domain.ProxyInfo, error) {
	return nil, nil
}

func (f *fakeAPI) ListKernels(ctx context.Context, proxy *domain.ProxyInfo) ([]domain.Kernel, error) {
	return nil, nil
}

func (f *fakeAPI) ListSessions(ctx context.Context, proxy *domain.ProxyInfo) ([]domain.JupyterSession, error) {
	return nil, nil
}

func (f *fakeAPI) CreateSession(ctx context.Context, proxy *domain.ProxyInfo, path, kernelName string) (*domain.JupyterSession, error) {
	return nil, nil
}

func (f *fakeAPI) DeleteSession(ctx context.Context, proxy *domain.ProxyInfo, sessionID string) error {
	return nil
}

func successResult(variant domain.Variant) *domain.AssignmentResult {
	return &domain.AssignmentResult{
		Outcome: domain.OutcomeSuccess,
		Assignment: &domain.Assignment{
			Label:       "rt-1",
			Endpoint:    "m-xyz",
			Accelerator: "T4",
			Variant:     variant,
		},
		Proxy: &domain.ProxyInfo{URL: "https://proxy", Token: "pt", TTLSeconds: 600},
	}
}

func TestAssignRuntime_ReusesExistingMatch(t *testing.T) {
	api := &fakeAPI{
		assignments: []*domain.Assignment{
			{Label: "cpu-1", Endpoint: "m-cpu", Variant: domain.VariantDefault},
			{Label: "gpu-1", Endpoint: "m-gpu", Variant: domain.VariantGPU},
		},
	}
	n := NewNegotiator(api, testLogger())

	a, err := n.AssignRuntime(context.Background(), AssignOptions{Variant: domain.VariantGPU})
	require.NoError(t, err)
	assert.Equal(t, "gpu-1", a.Label)
	assert.Zero(t, api.postCalls, "matching runtime must not trigger a new assignment")
}

func TestAssignRuntime_UnsetVariantTakesFirst(t *testing.T) {
	api := &fakeAPI{
		assignments: []*domain.Assignment{
			{Label: "first", Endpoint: "m-1", Variant: domain.VariantTPU},
			{Label: "second", Endpoint: "m-2", Variant: domain.VariantDefault},
		},
	}
	n := NewNegotiator(api, testLogger())

	a, err := n.AssignRuntime(context.Background(), AssignOptions{})
	require.NoError(t, err)
	assert.Equal(t, "first", a.Label)
}

func TestAssignRuntime_ForceNewSkipsListing(t *testing.T) {
	api := &fakeAPI{
		assignments: []*domain.Assignment{{Label: "old", Endpoint: "m-old"}},
		postResult:  successResult(domain.VariantDefault),
	}
	n := NewNegotiator(api, testLogger())

	a, err := n.AssignRuntime(context.Background(), AssignOptions{ForceNew: true})
	require.NoError(t, err)
	assert.Equal(t, "rt-1", a.Label)
	assert.Equal(t, 1, api.postCalls)
}

func TestAssignRuntime_QuotaDenied(t *testing.T) {
	api := &fakeAPI{postResult: &domain.AssignmentResult{Outcome: domain.OutcomeQuotaDenied}}
	n := NewNegotiator(api, testLogger())

	_, err := n.AssignRuntime(context.Background(), AssignOptions{Variant: domain.VariantTPU, ForceNew: true})
	var denied *domain.QuotaDeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, domain.VariantTPU, denied.Variant)
}

func TestAssignRuntime_QuotaExceeded(t *testing.T) {
	api := &fakeAPI{postResult: &domain.AssignmentResult{Outcome: domain.OutcomeQuotaExceeded}}
	n := NewNegotiator(api, testLogger())

	_, err := n.AssignRuntime(context.Background(), AssignOptions{ForceNew: true})
	require.True(t, errors.Is(err, domain.ErrQuotaExceeded))
}

func TestAssignRuntime_Denylisted(t *testing.T) {
	api := &fakeAPI{postResult: &domain.AssignmentResult{Outcome: domain.OutcomeDenylisted}}
	n := NewNegotiator(api, testLogger())

	_, err := n.AssignRuntime(context.Background(), AssignOptions{ForceNew: true})
	require.True(t, errors.Is(err, domain.ErrDenylisted))
}

func TestAssignRuntime_UnknownOutcome(t *testing.T) {
	api := &fakeAPI{postResult: &domain.AssignmentResult{Outcome: domain.OutcomeUndefined}}
	n := NewNegotiator(api, testLogger())

	_, err := n.AssignRuntime(context.Background(), AssignOptions{ForceNew: true})
	var failed *domain.AssignmentFailedError
	require.True(t, errors.As(err, &failed))
}

func TestAssignRuntime_MissingProxyIsFailure(t *testing.T) {
	result := successResult(domain.VariantGPU)
	result.Proxy = nil
	api := &fakeAPI{postResult: result}
	n := NewNegotiator(api, testLogger())

	_, err := n.AssignRuntime(context.Background(), AssignOptions{Variant: domain.VariantGPU, ForceNew: true})
	var failed *domain.AssignmentFailedError
	require.True(t, errors.As(err, &failed))
}
