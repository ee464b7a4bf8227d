package colab

import (
	"context"

	"github.com/colabtools/colabctl/internal/core/domain"
	"github.com/colabtools/colabctl/internal/core/ports"
	"github.com/colabtools/colabctl/internal/logger"
)

// AssignOptions express the caller's runtime preferences
type AssignOptions struct {
	Variant  domain.Variant
	ForceNew bool
}

// Negotiator picks or creates a compute assignment
type Negotiator struct {
	api    ports.ColabAPI
	logger *logger.StyledLogger
}

func NewNegotiator(api ports.ColabAPI, log *logger.StyledLogger) *Negotiator {
	return &Negotiator{api: api, logger: log}
}

// AssignRuntime resolves an assignment. Existing runtimes matching the
// variant preference are reused unless ForceNew is set; otherwise a new
// assignment is requested and its outcome mapped to typed errors.
func (n *Negotiator) AssignRuntime(ctx context.Context, opts AssignOptions) (*domain.Assignment, error) {
	if !opts.ForceNew {
		existing, err := n.api.ListAssignments(ctx)
		if err != nil {
			return nil, err
		}
		for _, a := range existing {
			if a.Endpoint != "" && a.Matches(opts.Variant) {
				n.logger.InfoWithRuntime("Reusing existing runtime", a.Label, a.Accelerator)
				return a, nil
			}
		}
	}

	result, err := n.api.PostAssignment(ctx, opts.Variant, opts.ForceNew)
	if err != nil {
		return nil, err
	}

	switch result.Outcome {
	case domain.OutcomeSuccess:
		// fall through below
	case domain.OutcomeQuotaDenied:
		return nil, &domain.QuotaDeniedError{Variant: opts.Variant}
	case domain.OutcomeQuotaExceeded:
		return nil, domain.ErrQuotaExceeded
	case domain.OutcomeDenylisted:
		return nil, domain.ErrDenylisted
	default:
		return nil, &domain.AssignmentFailedError{Outcome: result.Outcome}
	}

	// a success without proxy credentials cannot be connected to,
	// treat it as a failed assignment
	if result.Proxy == nil || result.Assignment == nil || result.Assignment.Endpoint == "" {
		return nil, &domain.AssignmentFailedError{Outcome: domain.OutcomeUndefined}
	}

	n.logger.InfoWithRuntime("Assigned new runtime", result.Assignment.Label, result.Assignment.Accelerator)
	return result.Assignment, nil
}
