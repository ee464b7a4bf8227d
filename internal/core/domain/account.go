package domain

// UserInfo identifies the authenticated account
type UserInfo struct {
	Email            string           `json:"email"`
	DisplayName      string           `json:"displayName,omitempty"`
	SubscriptionTier SubscriptionTier `json:"subscriptionTier"`
}

// CcuInfo reports compute-unit balance and burn rate
type CcuInfo struct {
	AvailableComputeUnits float64 `json:"availableComputeUnits"`
	UsageRatePerHour      float64 `json:"usageRatePerHour,omitempty"`
	EligibleForUpgrade    bool    `json:"eligibleForUpgrade,omitempty"`
}

// AssignmentResult is the full outcome of one assignment attempt
type AssignmentResult struct {
	Outcome    Outcome     `json:"outcome"`
	Assignment *Assignment `json:"assignment,omitempty"`
	Proxy      *ProxyInfo  `json:"proxy,omitempty"`
}
