package domain

import (
	"strings"
	"sync"
)

// ExecutionStatus is the terminal status of one execute cycle
type ExecutionStatus string

const (
	ExecutionOK    ExecutionStatus = "OK"
	ExecutionError ExecutionStatus = "ERROR"
	ExecutionAbort ExecutionStatus = "ABORT"
)

// Error codes emitted with failed executions. Each category owns a
// hundred-range; the emitted code is the range base. The query layer
// inverts the same table, so the ranges must never be reshuffled.
const (
	ErrorCodeNone      = 0
	ErrorCodeSyntax    = 100
	ErrorCodeImport    = 200
	ErrorCodeRuntime   = 300
	ErrorCodeTimeout   = 400
	ErrorCodeTransport = 500
	ErrorCodeCanceled  = 600
)

// ErrorCategory is a coarse classification of execution failures
type ErrorCategory string

const (
	CategorySyntax    ErrorCategory = "SYNTAX"
	CategoryImport    ErrorCategory = "IMPORT"
	CategoryRuntime   ErrorCategory = "RUNTIME"
	CategoryTimeout   ErrorCategory = "TIMEOUT"
	CategoryTransport ErrorCategory = "TRANSPORT"
	CategoryCanceled  ErrorCategory = "CANCELED"
	CategoryOther     ErrorCategory = "OTHER"
)

// CategoryForCode maps an error code into its category.
// Zero (and negatives) mean success and have no category.
func CategoryForCode(code int) ErrorCategory {
	switch {
	case code <= 0:
		return ""
	case code >= 100 && code < 200:
		return CategorySyntax
	case code >= 200 && code < 300:
		return CategoryImport
	case code >= 300 && code < 400:
		return CategoryRuntime
	case code >= 400 && code < 500:
		return CategoryTimeout
	case code >= 500 && code < 600:
		return CategoryTransport
	case code >= 600 && code < 700:
		return CategoryCanceled
	default:
		return CategoryOther
	}
}

// CodeForKernelError classifies a kernel error by its ename
func CodeForKernelError(ename string) int {
	switch {
	case strings.HasSuffix(ename, "SyntaxError"), ename == "IndentationError", ename == "TabError":
		return ErrorCodeSyntax
	case ename == "ImportError", ename == "ModuleNotFoundError":
		return ErrorCodeImport
	default:
		return ErrorCodeRuntime
	}
}

// KernelError carries the kernel-side error triple
type KernelError struct {
	Ename     string   `json:"ename"`
	Evalue    string   `json:"evalue"`
	Traceback []string `json:"traceback,omitempty"`
}

// ExecutionResult is the aggregate outcome of one execute cycle
type ExecutionResult struct {
	Status         ExecutionStatus `json:"status"`
	Stdout         string          `json:"stdout"`
	Stderr         string          `json:"stderr"`
	Traceback      []string        `json:"traceback,omitempty"`
	DisplayData    []string        `json:"displayData,omitempty"`
	ExecutionCount int             `json:"executionCount,omitempty"`
	ErrorCode      int             `json:"errorCode"`
	Error          *KernelError    `json:"error,omitempty"`

	// timing breakdown, milliseconds
	ConnectionMS int64 `json:"connectionMs,omitempty"`
	ExecutionMS  int64 `json:"executionMs,omitempty"`
	CleanupMS    int64 `json:"cleanupMs,omitempty"`
}

// OutputBuffer accumulates the interleaved output stream of one
// execution. Appends arrive from the read pump; the snapshot is taken
// once when the terminal reply (or an abort) lands.
type OutputBuffer struct {
	mu             sync.Mutex
	stdout         strings.Builder
	stderr         strings.Builder
	traceback      []string
	displayData    []string
	executionCount int
	err            *KernelError
}

func NewOutputBuffer() *OutputBuffer {
	return &OutputBuffer{}
}

// AppendStream routes stream output by channel name
func (b *OutputBuffer) AppendStream(name, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if name == "stderr" {
		b.stderr.WriteString(text)
		return
	}
	b.stdout.WriteString(text)
}

// AppendDisplay records rich output (text/plain representation)
func (b *OutputBuffer) AppendDisplay(data string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.displayData = append(b.displayData, data)
}

// SetError records the kernel error triple; last writer wins, which
// matches the kernel emitting at most one error per execution
func (b *OutputBuffer) SetError(ename, evalue string, traceback []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = &KernelError{Ename: ename, Evalue: evalue, Traceback: traceback}
	b.traceback = traceback
}

func (b *OutputBuffer) SetExecutionCount(count int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.executionCount = count
}

// Snapshot freezes the buffer into a result with the given terminal
// status and error code
func (b *OutputBuffer) Snapshot(status ExecutionStatus, errorCode int) *ExecutionResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &ExecutionResult{
		Status:         status,
		Stdout:         b.stdout.String(),
		Stderr:         b.stderr.String(),
		Traceback:      b.traceback,
		DisplayData:    b.displayData,
		ExecutionCount: b.executionCount,
		ErrorCode:      errorCode,
		Error:          b.err,
	}
}

// KernelError returns the recorded error triple, if any
func (b *OutputBuffer) KernelError() *KernelError {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}
