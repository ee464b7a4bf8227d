package colab

import (
	"errors"
	"time"

	"github.com/colabtools/colabctl/internal/core/domain"
)

// Wire shapes for the Colab REST surface. Two services encode the
// subscription tier differently: the assignment API sends the numeric
// ColabSubscriptionTier, the gapi user endpoint sends the string
// ColabGapiSubscriptionTier. Both collapse through the domain
// normalizers before anything leaves this package.

type wireProxyInfo struct {
	ProxyURL   string `json:"proxyUrl"`
	Token      string `json:"token"`
	TTLSeconds int    `json:"ttlSeconds"`
}

func (w *wireProxyInfo) Validate() error {
	if w.ProxyURL == "" {
		return errors.New("proxyUrl is required")
	}
	if w.Token == "" {
		return errors.New("token is required")
	}
	return nil
}

func (w *wireProxyInfo) toDomain() *domain.ProxyInfo {
	ttl := w.TTLSeconds
	if ttl <= 0 {
		ttl = defaultProxyTTLSeconds
	}
	return &domain.ProxyInfo{
		URL:        w.ProxyURL,
		Token:      w.Token,
		IssuedAt:   time.Now(),
		TTLSeconds: ttl,
	}
}

type wireAssignment struct {
	Label             string `json:"label"`
	Endpoint          string `json:"endpoint"`
	Accelerator       string `json:"accelerator"`
	Variant           string `json:"variant"`
	MachineShape      string `json:"machineShape"`
	SubscriptionState string `json:"subscriptionState"`
	SubscriptionTier  int    `json:"subscriptionTier"`
	IdleTimeoutSec    int    `json:"idleTimeoutSec"`
}

func (w *wireAssignment) toDomain() *domain.Assignment {
	return &domain.Assignment{
		Label:             w.Label,
		Endpoint:          w.Endpoint,
		Accelerator:       w.Accelerator,
		Variant:           domain.NormalizeVariant(w.Variant),
		MachineShape:      domain.NormalizeMachineShape(w.MachineShape),
		SubscriptionState: w.SubscriptionState,
		SubscriptionTier:  domain.NormalizeSubscriptionTier(w.SubscriptionTier),
		IdleTimeoutSec:    w.IdleTimeoutSec,
	}
}

type listAssignmentsResponse struct {
	Assignments []wireAssignment `json:"assignments"`
}

type postAssignmentResponse struct {
	Outcome          string          `json:"outcome"`
	Assignment       *wireAssignment `json:"assignment"`
	RuntimeProxyInfo *wireProxyInfo  `json:"runtimeProxyInfo"`
}

func (r *postAssignmentResponse) Validate() error {
	if r.Outcome == "" {
		return errors.New("outcome is required")
	}
	return nil
}

type ccuInfoResponse struct {
	AvailableComputeUnits float64 `json:"availableComputeUnits"`
	UsageRatePerHour      float64 `json:"usageRatePerHour"`
	EligibleForUpgrade    bool    `json:"eligibleForUpgrade"`
}

type userInfoResponse struct {
	Email            string `json:"email"`
	DisplayName      string `json:"displayName"`
	SubscriptionTier string `json:"subscriptionTier"`
}

func (r *userInfoResponse) Validate() error {
	if r.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

type listKernelsResponse []domain.Kernel

type listSessionsResponse []domain.JupyterSession

type createSessionRequest struct {
	Path   string              `json:"path"`
	Type   string              `json:"type"`
	Name   string              `json:"name,omitempty"`
	Kernel createSessionKernel `json:"kernel"`
}

type createSessionKernel struct {
	Name string `json:"name"`
}

type postAssignmentRequest struct {
	Variant  string `json:"variant,omitempty"`
	ForceNew bool   `json:"forceNew"`
}

type refreshConnectionRequest struct {
	Endpoint string `json:"endpoint"`
}
