package store

import (
	"fmt"
	"time"
)

// Role identifies the sender of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a session's conversation log.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Validate checks that the message carries a known role.
func (m Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant:
		return nil
	default:
		return fmt.Errorf("invalid message role: %s", m.Role)
	}
}

// ToolSchema describes one tool the model may request during a session.
// Parameters is an opaque JSON-schema object; it is passed through to the
// model verbatim and never used to validate arguments.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Session is one server-held multi-turn agentic conversation.
// ModelID and Tools are fixed at creation; Messages is append-only.
type Session struct {
	ID             string       `json:"id"`
	ModelID        string       `json:"model_id"`
	Messages       []Message    `json:"messages"`
	Tools          []ToolSchema `json:"tools,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	LastAccessedAt time.Time    `json:"last_accessed_at"`
}

// SessionInfo is a lightweight projection of a session without the
// message log, for listing and status reads.
type SessionInfo struct {
	ID             string    `json:"id"`
	ModelID        string    `json:"model_id"`
	MessageCount   int       `json:"message_count"`
	ToolCount      int       `json:"tool_count"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	TTLRemainingMS int64     `json:"ttl_remaining_ms"`
}

// ToolSet is a reusable bundle of tool schemas, decoupled from any one
// session so repeated agentic calls don't resend identical schemas.
type ToolSet struct {
	ID             string       `json:"id"`
	Tools          []ToolSchema `json:"tools"`
	CreatedAt      time.Time    `json:"created_at"`
	LastAccessedAt time.Time    `json:"last_accessed_at"`
}
