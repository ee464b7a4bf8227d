// Package jupyter speaks the Jupyter v5.3 wire protocol over a kernel
// WebSocket: message framing, correlation by parent msg_id, and the
// execute request/reply cycle.
package jupyter

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/colabtools/colabctl/internal/core/domain"
)

const (
	ProtocolVersion = "5.3"
	clientUsername  = "colabctl"

	ChannelShell   = "shell"
	ChannelControl = "control"
)

// Message types this client sends or routes
const (
	MsgTypeExecuteRequest   = "execute_request"
	MsgTypeExecuteReply     = "execute_reply"
	MsgTypeInterruptRequest = "interrupt_request"
	MsgTypeStream           = "stream"
	MsgTypeDisplayData      = "display_data"
	MsgTypeExecuteResult    = "execute_result"
	MsgTypeError            = "error"
	MsgTypeStatus           = "status"
)

// MessageHeader is the v5.3 header block. Fields are omitted when
// empty so an empty parent_header round-trips as {}.
type MessageHeader struct {
	MsgID    string `json:"msg_id,omitempty"`
	MsgType  string `json:"msg_type,omitempty"`
	Session  string `json:"session,omitempty"`
	Username string `json:"username,omitempty"`
	Date     string `json:"date,omitempty"`
	Version  string `json:"version,omitempty"`
}

// Message is one Jupyter wire message
type Message struct {
	Header       MessageHeader  `json:"header"`
	ParentHeader MessageHeader  `json:"parent_header"`
	Metadata     map[string]any `json:"metadata"`
	Content      map[string]any `json:"content"`
	Buffers      []any          `json:"buffers"`
	Channel      string         `json:"channel,omitempty"`
}

// newHeader mints a fresh header with a UUIDv4 msg_id
func newHeader(msgType, session string) MessageHeader {
	return MessageHeader{
		MsgID:    uuid.NewString(),
		MsgType:  msgType,
		Session:  session,
		Username: clientUsername,
		Date:     time.Now().UTC().Format(time.RFC3339),
		Version:  ProtocolVersion,
	}
}

// NewExecuteRequest builds an execute_request for the shell channel
func NewExecuteRequest(session, code string, silent bool) *Message {
	return &Message{
		Header:   newHeader(MsgTypeExecuteRequest, session),
		Metadata: map[string]any{},
		Content: map[string]any{
			"code":             code,
			"silent":           silent,
			"store_history":    !silent,
			"user_expressions": map[string]any{},
			"allow_stdin":      false,
			"stop_on_error":    true,
		},
		Buffers: []any{},
		Channel: ChannelShell,
	}
}

// NewInterruptRequest builds an interrupt_request for the control channel
func NewInterruptRequest(session string) *Message {
	return &Message{
		Header:   newHeader(MsgTypeInterruptRequest, session),
		Metadata: map[string]any{},
		Content:  map[string]any{},
		Buffers:  []any{},
		Channel:  ChannelControl,
	}
}

// Encode serializes a message for the wire
func Encode(msg *Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, &domain.ProtocolError{Err: err, Reason: "encode message"}
	}
	return data, nil
}

// Decode parses a wire message. A payload without header.msg_type is a
// ProtocolError; callers log and drop those.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &domain.ProtocolError{Err: err, Reason: "decode message"}
	}
	if msg.Header.MsgType == "" {
		return nil, &domain.ProtocolError{Reason: "message missing header.msg_type"}
	}
	return &msg, nil
}

// ParentID is the msg_id this message replies to
func (m *Message) ParentID() string {
	return m.ParentHeader.MsgID
}

func (m *Message) contentString(key string) string {
	if v, ok := m.Content[key].(string); ok {
		return v
	}
	return ""
}

func (m *Message) contentStrings(key string) []string {
	raw, ok := m.Content[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// StreamContent extracts a stream message's channel name and text
func (m *Message) StreamContent() (name, text string) {
	return m.contentString("name"), m.contentString("text")
}

// ErrorContent extracts the kernel error triple
func (m *Message) ErrorContent() (ename, evalue string, traceback []string) {
	return m.contentString("ename"), m.contentString("evalue"), m.contentStrings("traceback")
}

// ReplyStatus extracts an execute_reply's terminal status
func (m *Message) ReplyStatus() string {
	return m.contentString("status")
}

// ExecutionCount extracts content.execution_count when present
func (m *Message) ExecutionCount() (int, bool) {
	if v, ok := m.Content["execution_count"].(float64); ok {
		return int(v), true
	}
	return 0, false
}

// DisplayText extracts the text/plain representation of rich output
func (m *Message) DisplayText() (string, bool) {
	data, ok := m.Content["data"].(map[string]any)
	if !ok {
		return "", false
	}
	text, ok := data["text/plain"].(string)
	return text, ok
}
