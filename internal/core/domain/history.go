package domain

import "time"

// ExecutionMode distinguishes kernel executions from terminal commands
type ExecutionMode string

const (
	ModeKernel   ExecutionMode = "kernel"
	ModeTerminal ExecutionMode = "terminal"
)

// RuntimeInfo pins the runtime a history entry ran on
type RuntimeInfo struct {
	Label       string `json:"label"`
	Accelerator string `json:"accelerator"`
}

// HistoryEntry is one immutable record in the execution log
type HistoryEntry struct {
	Timestamp      time.Time       `json:"timestamp"`
	Command        string          `json:"command"`
	Mode           ExecutionMode   `json:"mode"`
	Status         ExecutionStatus `json:"status"`
	Stdout         string          `json:"stdout,omitempty"`
	Stderr         string          `json:"stderr,omitempty"`
	Traceback      []string        `json:"traceback,omitempty"`
	ExecutionCount int             `json:"executionCount,omitempty"`
	Runtime        RuntimeInfo     `json:"runtime"`
	ErrorCode      int             `json:"errorCode"`
	Error          *KernelError    `json:"error,omitempty"`
	Category       ErrorCategory   `json:"category,omitempty"`
}

// HistoryFilter selects entries from the log. Zero values mean
// "no constraint", except Limit which is an exact cap.
type HistoryFilter struct {
	Status   ExecutionStatus
	Mode     ExecutionMode
	Category ErrorCategory
	Since    time.Time
	Until    time.Time
	Limit    int
}

// DefaultHistoryLimit caps query results when the caller does not say
const DefaultHistoryLimit = 50

// HistoryStats summarises the whole execution log
type HistoryStats struct {
	TotalExecutions      int                   `json:"totalExecutions"`
	SuccessfulExecutions int                   `json:"successfulExecutions"`
	FailedExecutions     int                   `json:"failedExecutions"`
	AbortedExecutions    int                   `json:"abortedExecutions"`
	SuccessRate          int                   `json:"successRate"`
	ExecutionsByMode     map[ExecutionMode]int `json:"executionsByMode"`
	ErrorsByCategory     map[ErrorCategory]int `json:"errorsByCategory"`
	OldestEntry          *time.Time            `json:"oldestEntry,omitempty"`
	NewestEntry          *time.Time            `json:"newestEntry,omitempty"`
}
