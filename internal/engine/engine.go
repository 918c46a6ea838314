// Package engine drives the agentic continuation loop: it owns session
// creation, relays tool results back to the model, and decides from each
// reply whether the task is done or more tool work is requested.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/lmbridge/internal/backend"
	"github.com/ChamsBouzaiene/lmbridge/internal/parser"
	"github.com/ChamsBouzaiene/lmbridge/internal/store"
)

const (
	// DefaultMaxTokens caps a single completion unless the caller asks
	// for more.
	DefaultMaxTokens = 2048

	// respondTimeout bounds one model turn. Local models can be slow to
	// first token, so this is generous.
	respondTimeout = 5 * time.Minute
)

// ToolResult is one executed tool outcome the caller relays back.
type ToolResult struct {
	Name   string `json:"name"`
	Result string `json:"result"`
}

// ActInput selects one of the two entry modes: Identifier+Task starts a
// new session, SessionID resumes an existing one.
type ActInput struct {
	Identifier  string             `json:"identifier,omitempty"`
	Task        string             `json:"task,omitempty"`
	SessionID   string             `json:"session_id,omitempty"`
	Tools       []store.ToolSchema `json:"tools,omitempty"`
	ToolSetID   string             `json:"tool_set_id,omitempty"`
	ToolResults []ToolResult       `json:"tool_results,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
}

// Stats summarizes one turn.
type Stats struct {
	MessageCount   int `json:"message_count"`
	ResponseLength int `json:"response_length"`
}

// ActData is the successful payload of one act turn. Done means the model
// produced a final answer; otherwise ToolCalls carries the work the
// caller must execute and relay back.
type ActData struct {
	SessionID string            `json:"session_id"`
	Done      bool              `json:"done"`
	ToolCalls []parser.ToolCall `json:"tool_calls,omitempty"`
	Stats     Stats             `json:"stats"`
}

// Engine wires the session store to the model backend.
type Engine struct {
	store     *store.Store
	backend   backend.Client
	maxTokens int
	timeout   time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxTokens overrides the default completion cap.
func WithMaxTokens(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithTimeout overrides the per-turn model timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New creates an engine over the given store and backend.
func New(st *store.Store, client backend.Client, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		backend:   client,
		maxTokens: DefaultMaxTokens,
		timeout:   respondTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the session store for the surrounding tool surface.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Act runs one model turn. With a SessionID it resumes that session,
// appending ToolResults first when present; otherwise it starts a new
// session from Identifier and Task. Either way the model is called once,
// its reply is appended to the log, and the reply is inspected for
// tool-call requests.
func (e *Engine) Act(ctx context.Context, input ActInput) Result[ActData] {
	if input.SessionID != "" {
		return e.resume(ctx, input)
	}
	return e.begin(ctx, input)
}

func (e *Engine) begin(ctx context.Context, input ActInput) Result[ActData] {
	if strings.TrimSpace(input.Identifier) == "" {
		return Fail[ActData](CodeInvalidInput, "identifier is required to start a new task")
	}
	if strings.TrimSpace(input.Task) == "" {
		return Fail[ActData](CodeInvalidInput, "task is required to start a new task")
	}

	tools := input.Tools
	if len(tools) == 0 && input.ToolSetID != "" {
		ts, ok := e.store.GetToolSet(input.ToolSetID)
		if !ok {
			return Fail[ActData](CodeInvalidInput, "tool set %s not found or expired", input.ToolSetID)
		}
		tools = ts.Tools
	}

	sess := e.store.CreateSession(input.Identifier, tools, BuildToolSystemPrompt(tools))
	e.store.AppendMessage(sess.ID, store.Message{Role: store.RoleUser, Content: input.Task})

	return e.run(ctx, sess.ID, input.Identifier, input.MaxTokens, true)
}

func (e *Engine) resume(ctx context.Context, input ActInput) Result[ActData] {
	sess, ok := e.store.GetSession(input.SessionID)
	if !ok {
		return Fail[ActData](CodeInvalidInput, "session %s not found or expired", input.SessionID)
	}

	if len(input.ToolResults) > 0 {
		e.store.AppendMessage(sess.ID, store.Message{
			Role:    store.RoleUser,
			Content: FormatToolResults(input.ToolResults),
		})
	}

	return e.run(ctx, sess.ID, sess.ModelID, input.MaxTokens, false)
}

// run is the shared tail of both entry modes. isNew controls failure
// cleanup: a session created in this same call is deleted on failure so a
// broken first turn leaves nothing behind, while resumed sessions always
// survive.
func (e *Engine) run(ctx context.Context, sessionID, modelID string, maxTokens int, isNew bool) Result[ActData] {
	fail := func(code, format string, args ...any) Result[ActData] {
		if isNew {
			e.store.DeleteSession(sessionID)
		}
		return Fail[ActData](code, format, args...)
	}

	desc, err := e.backend.GetModelInfo(ctx, modelID)
	if err != nil {
		return fail(ClassifyBackendError(err), "model lookup failed: %v", err)
	}
	if desc == nil || !desc.Loaded() {
		return fail(CodeModelNotLoaded, "model %s is not loaded", modelID)
	}

	sess, ok := e.store.GetSession(sessionID)
	if !ok {
		return Fail[ActData](CodeUnknown, "session %s vanished mid-turn", sessionID)
	}

	if maxTokens <= 0 {
		maxTokens = e.maxTokens
	}
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reply, err := e.backend.Respond(callCtx, modelID, sess.Messages, backend.RespondOptions{MaxTokens: maxTokens})
	if err != nil {
		return fail(ClassifyBackendError(err), "model call failed: %v", err)
	}

	trimmed := strings.TrimSpace(reply)
	e.store.AppendMessage(sessionID, store.Message{Role: store.RoleAssistant, Content: trimmed})

	calls := parser.ParseToolCalls(trimmed)
	data := ActData{
		SessionID: sessionID,
		Done:      len(calls) == 0,
		ToolCalls: calls,
		Stats: Stats{
			MessageCount:   len(sess.Messages) + 1,
			ResponseLength: len(trimmed),
		},
	}

	msg := "task complete"
	if !data.Done {
		msg = "model requested tool calls"
	}
	return OK(msg, data)
}
