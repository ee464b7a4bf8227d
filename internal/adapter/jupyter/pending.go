package jupyter

import (
	"sync"
	"time"

	"github.com/colabtools/colabctl/internal/core/domain"
)

// PendingExecution tracks one in-flight execute_request from send
// until its terminal reply, timeout, or abort. The completion channel
// has capacity one and is written exactly once.
type PendingExecution struct {
	MsgID     string
	Code      string
	StartedAt time.Time
	Deadline  time.Time
	Buffer    *domain.OutputBuffer

	done chan *domain.ExecutionResult
	once sync.Once
}

func newPendingExecution(msgID, code string, timeout time.Duration) *PendingExecution {
	p := &PendingExecution{
		MsgID:     msgID,
		Code:      code,
		StartedAt: time.Now(),
		Buffer:    domain.NewOutputBuffer(),
		done:      make(chan *domain.ExecutionResult, 1),
	}
	if timeout > 0 {
		p.Deadline = p.StartedAt.Add(timeout)
	}
	return p
}

// complete delivers the result; late callers lose the race silently
func (p *PendingExecution) complete(result *domain.ExecutionResult) {
	p.once.Do(func() {
		p.done <- result
	})
}

// Done yields the terminal result exactly once
func (p *PendingExecution) Done() <-chan *domain.ExecutionResult {
	return p.done
}
