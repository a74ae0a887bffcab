package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Status is the lifecycle state of a message. Pending and streaming are
// transient; done, error and aborted are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusDone      Status = "done"
	StatusError     Status = "error"
	StatusAborted   Status = "aborted"
)

// IsTerminal reports whether the status permits no further transitions
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusError || s == StatusAborted
}

// Message is one entry in the conversation transcript. Content is
// append-only while the status is streaming and immutable afterwards.
type Message struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Analysis  string     `json:"analysis,omitempty"`
	Status    Status     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	RunID     string     `json:"run_id,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   strings.TrimSpace(content),
		Status:    StatusDone,
		Timestamp: time.Now(),
	}
}

func NewAssistantMessage() Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Status:    StatusPending,
		Timestamp: time.Now(),
	}
}

func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}

// MessageRecord is the persisted wire shape of a message
type MessageRecord struct {
	ID        string     `json:"id,omitempty"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
	RunID     string     `json:"run_id,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}
