package domain

import "strings"

// Variant is the accelerator class of a Colab runtime
type Variant string

const (
	VariantDefault Variant = "DEFAULT"
	VariantGPU     Variant = "GPU"
	VariantTPU     Variant = "TPU"
)

func (v Variant) String() string {
	return string(v)
}

// NormalizeVariant collapses the wire encodings of a runtime variant.
// Unknown inputs fall back to DEFAULT; the function is idempotent.
func NormalizeVariant(raw string) Variant {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "GPU", "VARIANT_GPU", "GPU_VARIANT":
		return VariantGPU
	case "TPU", "VARIANT_TPU", "TPU_VARIANT":
		return VariantTPU
	default:
		return VariantDefault
	}
}

// MachineShape is the memory profile of a runtime
type MachineShape string

const (
	ShapeStandard MachineShape = "STANDARD"
	ShapeHighMem  MachineShape = "HIGHMEM"
)

// NormalizeMachineShape collapses wire encodings of the machine shape
func NormalizeMachineShape(raw string) MachineShape {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "HIGHMEM", "HIGH_MEM", "MACHINE_SHAPE_HIGHMEM":
		return ShapeHighMem
	default:
		return ShapeStandard
	}
}

// SubscriptionTier is the user's Colab subscription level
type SubscriptionTier string

const (
	TierNone    SubscriptionTier = "NONE"
	TierPro     SubscriptionTier = "PRO"
	TierProPlus SubscriptionTier = "PRO_PLUS"
)

// NormalizeSubscriptionTier collapses the numeric ColabSubscriptionTier
// wire encoding. The closed input set is {0..3}; anything else is NONE.
func NormalizeSubscriptionTier(raw int) SubscriptionTier {
	switch raw {
	case 1:
		return TierPro
	case 2, 3:
		return TierProPlus
	default:
		return TierNone
	}
}

// NormalizeGapiSubscriptionTier collapses the string
// ColabGapiSubscriptionTier wire encoding to the same closed set.
func NormalizeGapiSubscriptionTier(raw string) SubscriptionTier {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PRO", "SUBSCRIPTION_TIER_PRO":
		return TierPro
	case "PRO_PLUS", "PRO+", "SUBSCRIPTION_TIER_PRO_PLUS":
		return TierProPlus
	default:
		return TierNone
	}
}

// Outcome is the discrete result code of an assignment attempt
type Outcome string

const (
	OutcomeUndefined     Outcome = "UNDEFINED_OUTCOME"
	OutcomeQuotaDenied   Outcome = "QUOTA_DENIED_REQUESTED_VARIANTS"
	OutcomeQuotaExceeded Outcome = "QUOTA_EXCEEDED_USAGE_TIME"
	OutcomeSuccess       Outcome = "SUCCESS"
	OutcomeDenylisted    Outcome = "DENYLISTED"
)

// NormalizeOutcome collapses the wire encoding of an assignment outcome
func NormalizeOutcome(raw string) Outcome {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESS":
		return OutcomeSuccess
	case "QUOTA_DENIED_REQUESTED_VARIANTS":
		return OutcomeQuotaDenied
	case "QUOTA_EXCEEDED_USAGE_TIME":
		return OutcomeQuotaExceeded
	case "DENYLISTED":
		return OutcomeDenylisted
	default:
		return OutcomeUndefined
	}
}

// Assignment represents one reserved Colab backend
type Assignment struct {
	Label             string           `json:"label"`
	Endpoint          string           `json:"endpoint"`
	Accelerator       string           `json:"accelerator"`
	Variant           Variant          `json:"variant"`
	MachineShape      MachineShape     `json:"machineShape"`
	SubscriptionState string           `json:"subscriptionState,omitempty"`
	SubscriptionTier  SubscriptionTier `json:"subscriptionTier,omitempty"`
	IdleTimeoutSec    int              `json:"idleTimeoutSec,omitempty"`
}

// Matches reports whether the assignment satisfies a variant preference.
// An empty preference matches anything.
func (a *Assignment) Matches(variant Variant) bool {
	if variant == "" {
		return true
	}
	return a.Variant == variant
}
