package domain

import "time"

// SocketState tracks the lifecycle of a kernel WebSocket
type SocketState int32

const (
	SocketConnecting SocketState = iota
	SocketOpen
	SocketClosing
	SocketClosed
)

func (s SocketState) String() string {
	switch s {
	case SocketConnecting:
		return "CONNECTING"
	case SocketOpen:
		return "OPEN"
	case SocketClosing:
		return "CLOSING"
	default:
		return "CLOSED"
	}
}

// KernelSession describes one live Jupyter session bound to an assignment
type KernelSession struct {
	SessionID    string      `json:"sessionId"`
	KernelID     string      `json:"kernelId"`
	Path         string      `json:"path"`
	Assignment   *Assignment `json:"assignment"`
	State        SocketState `json:"state"`
	LastActivity time.Time   `json:"lastActivity"`
}

// JupyterSession is the server-side binding of a notebook path to a kernel
type JupyterSession struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Kernel Kernel `json:"kernel"`
}

// Kernel is the process executing code on the backend
type Kernel struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ExecutionState string `json:"execution_state,omitempty"`
}
