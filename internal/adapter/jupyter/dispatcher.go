package jupyter

import (
	"context"
	"time"

	"github.com/colabtools/colabctl/internal/core/domain"
	"github.com/colabtools/colabctl/internal/core/ports"
	"github.com/colabtools/colabctl/internal/logger"
)

// interruptGrace is how long an interrupted kernel gets to emit its
// terminal reply before we synthesize the abort locally
var interruptGrace = 2 * time.Second

// ExecuteOptions tune one execute cycle
type ExecuteOptions struct {
	Timeout time.Duration
	Silent  bool
}

// Dispatcher runs code on a session and resolves every execution to
// exactly one terminal result, which it also records in history.
type Dispatcher struct {
	history ports.HistoryStore
	logger  *logger.StyledLogger
}

func NewDispatcher(history ports.HistoryStore, log *logger.StyledLogger) *Dispatcher {
	return &Dispatcher{history: history, logger: log}
}

// Execute sends the code and waits for its terminal reply. Failures of
// the execution itself come back as results, never as errors; the
// error return is reserved for refusing to start (busy or closed
// session).
func (d *Dispatcher) Execute(ctx context.Context, s *Session, code string, opts ExecuteOptions) (*domain.ExecutionResult, error) {
	req := NewExecuteRequest(s.ID, code, opts.Silent)
	p := newPendingExecution(req.Header.MsgID, code, opts.Timeout)

	if err := s.beginExecution(p); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := s.Send(ctx, req); err != nil {
		s.endExecution(p.MsgID)
		status, code := domain.ExecutionError, domain.ErrorCodeTransport
		if ctx.Err() != nil {
			// the caller gave up before the request left, not the socket
			status, code = domain.ExecutionAbort, domain.ErrorCodeCanceled
		}
		result := p.Buffer.Snapshot(status, code)
		d.finish(s, p, result, start)
		return result, nil
	}

	var timeoutC <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	var result *domain.ExecutionResult
	select {
	case result = <-p.Done():
	case <-timeoutC:
		d.logger.Warn("execution timed out, interrupting kernel",
			"session", s.ID, "timeout", opts.Timeout)
		result = d.abort(s, p, domain.ErrorCodeTimeout)
	case <-ctx.Done():
		result = d.abort(s, p, domain.ErrorCodeCanceled)
	}

	d.finish(s, p, result, start)
	return result, nil
}

// abort interrupts the kernel and gives it a grace window to produce
// the terminal reply itself; past that the result is synthesized from
// whatever output arrived.
func (d *Dispatcher) abort(s *Session, p *PendingExecution, code int) *domain.ExecutionResult {
	sendCtx, cancel := context.WithTimeout(context.Background(), interruptGrace)
	defer cancel()
	if err := s.Send(sendCtx, NewInterruptRequest(s.ID)); err != nil {
		d.logger.Debug("interrupt send failed", "session", s.ID, "error", err)
	}

	grace := time.NewTimer(interruptGrace)
	defer grace.Stop()

	select {
	case result := <-p.Done():
		// the kernel acknowledged the interrupt; the code still has to
		// say why we interrupted
		if result.Status == domain.ExecutionAbort {
			result.ErrorCode = code
		}
		return result
	case <-grace.C:
		s.endExecution(p.MsgID)
		p.complete(p.Buffer.Snapshot(domain.ExecutionAbort, code))
		return <-p.Done()
	}
}

func (d *Dispatcher) finish(s *Session, p *PendingExecution, result *domain.ExecutionResult, start time.Time) {
	result.ExecutionMS = time.Since(start).Milliseconds()
	d.record(s, p.Code, result)
}

func (d *Dispatcher) record(s *Session, code string, result *domain.ExecutionResult) {
	entry := &domain.HistoryEntry{
		Timestamp:      time.Now().UTC(),
		Command:        code,
		Mode:           domain.ModeKernel,
		Status:         result.Status,
		Stdout:         result.Stdout,
		Stderr:         result.Stderr,
		Traceback:      result.Traceback,
		ExecutionCount: result.ExecutionCount,
		ErrorCode:      result.ErrorCode,
		Error:          result.Error,
		Runtime: domain.RuntimeInfo{
			Label:       s.Assignment.Label,
			Accelerator: s.Assignment.Accelerator,
		},
	}
	if err := d.history.Append(entry); err != nil {
		d.logger.Warn("failed to record execution history", "error", err)
	}
}
