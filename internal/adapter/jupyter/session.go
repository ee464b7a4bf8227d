package jupyter

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/colabtools/colabctl/internal/config"
	"github.com/colabtools/colabctl/internal/core/constants"
	"github.com/colabtools/colabctl/internal/core/domain"
	"github.com/colabtools/colabctl/internal/core/ports"
	"github.com/colabtools/colabctl/internal/logger"
)

const (
	writeTimeout = 10 * time.Second

	// reasons sent in the close frame
	CloseReasonShutdown = "client_shutdown"
	CloseReasonReplace  = "session_replaced"
)

// sessionAPI is the slice of the Colab API the manager needs
type sessionAPI interface {
	ListSessions(ctx context.Context, proxy *domain.ProxyInfo) ([]domain.JupyterSession, error)
	CreateSession(ctx context.Context, proxy *domain.ProxyInfo, path, kernelName string) (*domain.JupyterSession, error)
}

// Manager dials kernel channels and owns the resulting sessions
type Manager struct {
	api     sessionAPI
	proxies ports.ProxyTokenSource
	cfg     config.WebSocketConfig
	dialer  *websocket.Dialer
	logger  *logger.StyledLogger
}

func NewManager(api sessionAPI, proxies ports.ProxyTokenSource, cfg config.WebSocketConfig, log *logger.StyledLogger) *Manager {
	return &Manager{
		api:     api,
		proxies: proxies,
		cfg:     cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.ConnectTimeout,
		},
		logger: log,
	}
}

// Connect resolves a server session for the notebook path (reusing an
// existing one when the backend already has it) and dials the kernel's
// channels endpoint.
func (m *Manager) Connect(ctx context.Context, assignment *domain.Assignment, path string) (*Session, error) {
	proxy, err := m.proxies.Get(ctx, assignment.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("resolve proxy for %s: %w", assignment.Endpoint, err)
	}

	sess, err := m.resolveServerSession(ctx, proxy, path)
	if err != nil {
		return nil, err
	}

	wsURL, err := kernelChannelsURL(proxy, sess.Kernel.ID)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("dialing kernel channels",
		"endpoint", assignment.Endpoint,
		"session", sess.ID,
		"kernel", sess.Kernel.ID)

	conn, _, err := m.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		// a stale proxy token is the common dial failure; drop it so
		// the next attempt refreshes
		m.proxies.Invalidate(assignment.Endpoint)
		return nil, fmt.Errorf("dial kernel channels: %w", err)
	}

	s := newSession(sess, assignment, conn, m.cfg, m.logger)
	s.start()

	m.logger.InfoWithEndpoint("kernel session established", assignment.Endpoint,
		"session", sess.ID,
		"kernel", sess.Kernel.ID)
	return s, nil
}

func (m *Manager) resolveServerSession(ctx context.Context, proxy *domain.ProxyInfo, path string) (*domain.JupyterSession, error) {
	existing, err := m.api.ListSessions(ctx, proxy)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	for i := range existing {
		if existing[i].Path == path && existing[i].Kernel.ID != "" {
			return &existing[i], nil
		}
	}
	created, err := m.api.CreateSession(ctx, proxy, path, "")
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return created, nil
}

// kernelChannelsURL rewrites the proxy base into the kernel's
// channels WebSocket endpoint
func kernelChannelsURL(proxy *domain.ProxyInfo, kernelID string) (string, error) {
	u, err := url.Parse(proxy.URL)
	if err != nil {
		return "", fmt.Errorf("parse proxy url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/kernels/" + kernelID + "/channels"
	q := u.Query()
	q.Set(constants.QueryParamToken, proxy.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Session is one live kernel WebSocket. A read pump routes replies to
// the pending execution by parent msg_id; a write pump serializes all
// outbound frames and keepalive pings.
type Session struct {
	ID         string
	KernelID   string
	Path       string
	Assignment *domain.Assignment

	conn     *websocket.Conn
	cfg      config.WebSocketConfig
	logger   *logger.StyledLogger
	outbound chan *Message
	pending  *xsync.Map[string, *PendingExecution]

	state        atomic.Int32
	lastActivity atomic.Int64

	execMu    sync.Mutex
	lost      chan struct{}
	lostOnce  sync.Once
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSession(sess *domain.JupyterSession, assignment *domain.Assignment, conn *websocket.Conn, cfg config.WebSocketConfig, log *logger.StyledLogger) *Session {
	s := &Session{
		ID:         sess.ID,
		KernelID:   sess.Kernel.ID,
		Path:       sess.Path,
		Assignment: assignment,
		conn:       conn,
		cfg:        cfg,
		logger:     log,
		outbound:   make(chan *Message, cfg.WriteQueueSize),
		pending:    xsync.NewMap[string, *PendingExecution](),
		lost:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.state.Store(int32(domain.SocketConnecting))
	s.touch()
	return s
}

func (s *Session) start() {
	s.state.Store(int32(domain.SocketOpen))
	s.wg.Add(2)
	go s.readPump()
	go s.writePump()
}

// State reports the socket lifecycle state
func (s *Session) State() domain.SocketState {
	return domain.SocketState(s.state.Load())
}

// LastActivity is the time of the last inbound kernel traffic
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Lost is closed when the transport fails underneath us
func (s *Session) Lost() <-chan struct{} {
	return s.lost
}

// Describe snapshots the session for status reporting
func (s *Session) Describe() *domain.KernelSession {
	return &domain.KernelSession{
		SessionID:    s.ID,
		KernelID:     s.KernelID,
		Path:         s.Path,
		Assignment:   s.Assignment,
		State:        s.State(),
		LastActivity: s.LastActivity(),
	}
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// beginExecution installs a pending execution. At most one execution
// may be in flight per session.
func (s *Session) beginExecution(p *PendingExecution) error {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	if s.State() != domain.SocketOpen {
		return domain.ErrSessionClosed
	}
	if s.pending.Size() > 0 {
		return domain.ErrBusy
	}
	s.pending.Store(p.MsgID, p)
	return nil
}

func (s *Session) endExecution(msgID string) {
	s.pending.Delete(msgID)
}

// Send queues a message for the write pump
func (s *Session) Send(ctx context.Context, msg *Message) error {
	select {
	case s.outbound <- msg:
		return nil
	case <-s.lost:
		return domain.ErrTransportLost
	case <-s.done:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) readPump() {
	defer s.wg.Done()

	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.transportLost(err)
			return
		}
		// inbound traffic counts as liveness alongside pongs
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		s.touch()

		msg, err := Decode(data)
		if err != nil {
			s.logger.Debug("dropping malformed kernel message", "error", err)
			continue
		}
		s.route(msg)
	}
}

// route delivers a kernel message to its pending execution. Messages
// without a matching parent (idle chatter, late replies after an
// abort) are dropped.
func (s *Session) route(msg *Message) {
	if msg.Header.MsgType == MsgTypeStatus {
		return
	}

	p, ok := s.pending.Load(msg.ParentID())
	if !ok {
		return
	}

	switch msg.Header.MsgType {
	case MsgTypeStream:
		name, text := msg.StreamContent()
		p.Buffer.AppendStream(name, text)

	case MsgTypeError:
		ename, evalue, traceback := msg.ErrorContent()
		p.Buffer.SetError(ename, evalue, traceback)

	case MsgTypeDisplayData, MsgTypeExecuteResult:
		if text, ok := msg.DisplayText(); ok {
			p.Buffer.AppendDisplay(text)
		}
		if count, ok := msg.ExecutionCount(); ok {
			p.Buffer.SetExecutionCount(count)
		}

	case MsgTypeExecuteReply:
		if count, ok := msg.ExecutionCount(); ok {
			p.Buffer.SetExecutionCount(count)
		}
		s.endExecution(msg.ParentID())
		p.complete(s.terminalResult(p, msg))
	}
}

// terminalResult folds an execute_reply status into a result snapshot
func (s *Session) terminalResult(p *PendingExecution, reply *Message) *domain.ExecutionResult {
	switch reply.ReplyStatus() {
	case "ok":
		return p.Buffer.Snapshot(domain.ExecutionOK, domain.ErrorCodeNone)
	case "abort", "aborted":
		return p.Buffer.Snapshot(domain.ExecutionAbort, domain.ErrorCodeCanceled)
	default:
		code := domain.ErrorCodeRuntime
		if kerr := p.Buffer.KernelError(); kerr != nil {
			code = domain.CodeForKernelError(kerr.Ename)
		}
		return p.Buffer.Snapshot(domain.ExecutionError, code)
	}
}

func (s *Session) writePump() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.outbound:
			if err := s.writeMessage(msg); err != nil {
				s.transportLost(err)
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.transportLost(err)
				return
			}

		case <-s.done:
			s.drainOutbound()
			return
		}
	}
}

func (s *Session) writeMessage(msg *Message) error {
	data, err := Encode(msg)
	if err != nil {
		s.logger.Warn("dropping unencodable message", "error", err)
		return nil
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// drainOutbound flushes queued writes for up to the drain timeout
// before the socket closes
func (s *Session) drainOutbound() {
	deadline := time.After(s.cfg.DrainTimeout)
	for {
		select {
		case msg := <-s.outbound:
			if err := s.writeMessage(msg); err != nil {
				return
			}
		case <-deadline:
			return
		default:
			return
		}
	}
}

// transportLost marks the session dead and fails every in-flight
// execution with a transport error. Idempotent.
func (s *Session) transportLost(err error) {
	s.lostOnce.Do(func() {
		deliberate := s.State() == domain.SocketClosing
		s.state.Store(int32(domain.SocketClosed))
		close(s.lost)

		if !deliberate {
			s.logger.WarnWithEndpoint("kernel transport lost", s.Assignment.Endpoint, "error", err)
		}

		s.pending.Range(func(msgID string, p *PendingExecution) bool {
			s.pending.Delete(msgID)
			p.complete(p.Buffer.Snapshot(domain.ExecutionError, domain.ErrorCodeTransport))
			return true
		})

		_ = s.conn.Close()
	})
}

// Close shuts the session down deliberately: in-flight executions are
// aborted, queued writes get a drain window, and a close frame carries
// the reason.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(domain.SocketClosing))

		s.pending.Range(func(msgID string, p *PendingExecution) bool {
			s.pending.Delete(msgID)
			p.complete(p.Buffer.Snapshot(domain.ExecutionAbort, domain.ErrorCodeCanceled))
			return true
		})

		close(s.done)

		frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = s.conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(writeTimeout))
		_ = s.conn.Close()

		s.wg.Wait()
		s.state.Store(int32(domain.SocketClosed))
		s.logger.Debug("kernel session closed", "session", s.ID, "reason", reason)
	})
}
