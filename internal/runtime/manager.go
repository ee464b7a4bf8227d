// Package runtime is the façade over assignment negotiation, kernel
// sessions and execution dispatch. Callers say "run this code"; the
// manager finds or creates everything underneath.
package runtime

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/colabtools/colabctl/internal/adapter/colab"
	"github.com/colabtools/colabctl/internal/adapter/jupyter"
	"github.com/colabtools/colabctl/internal/core/domain"
	"github.com/colabtools/colabctl/internal/core/ports"
	"github.com/colabtools/colabctl/internal/logger"
)

// DefaultNotebookPath is the scratch notebook executions attach to
const DefaultNotebookPath = "colabctl.ipynb"

// assigner resolves compute assignments
type assigner interface {
	AssignRuntime(ctx context.Context, opts colab.AssignOptions) (*domain.Assignment, error)
}

// statusAPI is the slice of the Colab API status reporting needs
type statusAPI interface {
	GetUserInfo(ctx context.Context) (*domain.UserInfo, error)
	GetCcuInfo(ctx context.Context) (*domain.CcuInfo, error)
	ListAssignments(ctx context.Context) ([]*domain.Assignment, error)
}

// kernelConn is one connected kernel the manager can run code on
type kernelConn interface {
	Run(ctx context.Context, code string, opts jupyter.ExecuteOptions) (*domain.ExecutionResult, error)
	State() domain.SocketState
	Describe() *domain.KernelSession
	Close(reason string)
}

// connector dials kernel connections for an assignment
type connector interface {
	Connect(ctx context.Context, assignment *domain.Assignment, path string) (kernelConn, error)
}

// ExecuteRequest is one façade-level execution
type ExecuteRequest struct {
	Code    string
	Timeout time.Duration
	Silent  bool
}

// Status aggregates account, quota and runtime state for reporting
type Status struct {
	User        *domain.UserInfo        `json:"user"`
	Ccu         *domain.CcuInfo         `json:"ccu"`
	Assignments []*domain.Assignment    `json:"assignments"`
	Sessions    []*domain.KernelSession `json:"sessions,omitempty"`
}

// Manager wires negotiation, connection and dispatch behind a small
// surface. One kernel connection is kept per assignment endpoint and
// reused while its socket stays open; a dead connection is replaced on
// the next Execute rather than repaired in the background.
type Manager struct {
	api        statusAPI
	negotiator assigner
	connector  connector
	history    ports.HistoryStore
	logger     *logger.StyledLogger

	notebookPath string
	assignOpts   colab.AssignOptions

	current  atomic.Pointer[domain.Assignment]
	sessions *xsync.Map[string, kernelConn]
}

func NewManager(api statusAPI, negotiator assigner, conn connector, history ports.HistoryStore, notebookPath string, log *logger.StyledLogger) *Manager {
	if notebookPath == "" {
		notebookPath = DefaultNotebookPath
	}
	return &Manager{
		api:          api,
		negotiator:   negotiator,
		connector:    conn,
		history:      history,
		logger:       log,
		notebookPath: notebookPath,
		sessions:     xsync.NewMap[string, kernelConn](),
	}
}

// SetAssignOptions pins the variant preference used for lazy assignment
func (m *Manager) SetAssignOptions(opts colab.AssignOptions) {
	m.assignOpts = opts
}

// Assign negotiates a runtime and makes it current
func (m *Manager) Assign(ctx context.Context, opts colab.AssignOptions) (*domain.Assignment, error) {
	assignment, err := m.negotiator.AssignRuntime(ctx, opts)
	if err != nil {
		return nil, err
	}
	m.current.Store(assignment)
	return assignment, nil
}

// Connect ensures a live kernel connection on the current assignment,
// negotiating one first when nothing is assigned yet
func (m *Manager) Connect(ctx context.Context) (*domain.KernelSession, error) {
	conn, err := m.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	return conn.Describe(), nil
}

// Execute runs code on the current runtime, assigning and connecting
// as needed. The time spent getting a usable connection is reported
// separately from the execution itself.
func (m *Manager) Execute(ctx context.Context, req ExecuteRequest) (*domain.ExecutionResult, error) {
	connectStart := time.Now()
	conn, err := m.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	connectionMS := time.Since(connectStart).Milliseconds()

	result, err := conn.Run(ctx, req.Code, jupyter.ExecuteOptions{
		Timeout: req.Timeout,
		Silent:  req.Silent,
	})
	if err != nil {
		return nil, err
	}

	result.ConnectionMS = connectionMS
	return result, nil
}

// Status reports account, quota, assignments and any live session
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	user, err := m.api.GetUserInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	ccu, err := m.api.GetCcuInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch compute unit info: %w", err)
	}
	assignments, err := m.api.ListAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	status := &Status{User: user, Ccu: ccu, Assignments: assignments}
	m.sessions.Range(func(endpoint string, conn kernelConn) bool {
		status.Sessions = append(status.Sessions, conn.Describe())
		return true
	})
	return status, nil
}

// RecordTerminal logs a command that ran outside the kernel path
func (m *Manager) RecordTerminal(command string, result *domain.ExecutionResult) error {
	entry := &domain.HistoryEntry{
		Timestamp: time.Now().UTC(),
		Command:   command,
		Mode:      domain.ModeTerminal,
		Status:    result.Status,
		Stdout:    result.Stdout,
		Stderr:    result.Stderr,
		ErrorCode: result.ErrorCode,
		Error:     result.Error,
	}
	if assignment := m.current.Load(); assignment != nil {
		entry.Runtime = domain.RuntimeInfo{Label: assignment.Label, Accelerator: assignment.Accelerator}
	}
	return m.history.Append(entry)
}

// Disconnect closes the connection on the current assignment, if any
func (m *Manager) Disconnect(reason string) {
	assignment := m.current.Load()
	if assignment == nil {
		return
	}
	if conn, ok := m.sessions.LoadAndDelete(assignment.Endpoint); ok {
		conn.Close(reason)
	}
}

// Close shuts down every live connection
func (m *Manager) Close() {
	m.sessions.Range(func(endpoint string, conn kernelConn) bool {
		m.sessions.Delete(endpoint)
		conn.Close(jupyter.CloseReasonShutdown)
		return true
	})
}

// ensureSession returns an open kernel connection for the current
// assignment, negotiating and dialing whatever is missing
func (m *Manager) ensureSession(ctx context.Context) (kernelConn, error) {
	assignment := m.current.Load()
	if assignment == nil {
		negotiated, err := m.Assign(ctx, m.assignOpts)
		if err != nil {
			return nil, err
		}
		assignment = negotiated
	}

	if conn, ok := m.sessions.Load(assignment.Endpoint); ok {
		if conn.State() == domain.SocketOpen {
			return conn, nil
		}
		// a dead socket is replaced, not repaired
		m.sessions.Delete(assignment.Endpoint)
		conn.Close(jupyter.CloseReasonReplace)
		m.logger.Debug("replacing dead kernel connection", "endpoint", assignment.Endpoint)
	}

	conn, err := m.connector.Connect(ctx, assignment, m.notebookPath)
	if err != nil {
		return nil, err
	}
	m.sessions.Store(assignment.Endpoint, conn)
	return conn, nil
}

// liveConnector adapts the session manager and dispatcher into the
// connector seam
type liveConnector struct {
	sessions   *jupyter.Manager
	dispatcher *jupyter.Dispatcher
}

// NewLiveConnector bundles a session manager and dispatcher for use
// with NewManager
func NewLiveConnector(sessions *jupyter.Manager, dispatcher *jupyter.Dispatcher) *liveConnector {
	return &liveConnector{sessions: sessions, dispatcher: dispatcher}
}

func (c *liveConnector) Connect(ctx context.Context, assignment *domain.Assignment, path string) (kernelConn, error) {
	s, err := c.sessions.Connect(ctx, assignment, path)
	if err != nil {
		return nil, err
	}
	return &liveSession{session: s, dispatcher: c.dispatcher}, nil
}

// liveSession pairs a session with the dispatcher that runs code on it
type liveSession struct {
	session    *jupyter.Session
	dispatcher *jupyter.Dispatcher
}

func (l *liveSession) Run(ctx context.Context, code string, opts jupyter.ExecuteOptions) (*domain.ExecutionResult, error) {
	return l.dispatcher.Execute(ctx, l.session, code, opts)
}

func (l *liveSession) State() domain.SocketState       { return l.session.State() }
func (l *liveSession) Describe() *domain.KernelSession { return l.session.Describe() }
func (l *liveSession) Close(reason string)             { l.session.Close(reason) }
