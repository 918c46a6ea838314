// Package server exposes the bridge as an MCP tool server over stdio.
// Every tool replies with the same JSON envelope serialized as text
// content, so callers get one uniform success/error shape.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/lmbridge/internal/backend"
	"github.com/ChamsBouzaiene/lmbridge/internal/engine"
	"github.com/ChamsBouzaiene/lmbridge/internal/store"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/xeipuuv/gojsonschema"
)

// Server registers the bridge tools on an MCP server.
type Server struct {
	engine  *engine.Engine
	backend backend.Client
	mcp     *mcp.Server
}

// New builds the MCP server and registers every tool.
func New(eng *engine.Engine, client backend.Client, version string) *Server {
	s := &Server{
		engine:  eng,
		backend: client,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "lmbridge",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

type emptyInput struct{}

type loadModelInput struct {
	ModelKey      string `json:"model_key" jsonschema:"the model key to load"`
	TTLSeconds    int    `json:"ttl_seconds,omitempty" jsonschema:"idle auto-unload in seconds"`
	ContextLength int    `json:"context_length,omitempty" jsonschema:"context window override"`
}

type identifierInput struct {
	Identifier string `json:"identifier" jsonschema:"the loaded model identifier"`
}

type sessionIDInput struct {
	SessionID string `json:"session_id" jsonschema:"the session id"`
}

type actInput struct {
	Identifier  string              `json:"identifier,omitempty" jsonschema:"model identifier, required for a new task"`
	Task        string              `json:"task,omitempty" jsonschema:"the task prompt, required for a new task"`
	SessionID   string              `json:"session_id,omitempty" jsonschema:"session id to resume instead of starting fresh"`
	Tools       []store.ToolSchema  `json:"tools,omitempty" jsonschema:"inline tool definitions"`
	ToolSetID   string              `json:"tool_set_id,omitempty" jsonschema:"registered tool set to use instead of inline tools"`
	ToolResults []engine.ToolResult `json:"tool_results,omitempty" jsonschema:"executed tool results to relay back"`
	MaxTokens   int                 `json:"max_tokens,omitempty" jsonschema:"completion cap for this turn"`
}

type registerToolSetInput struct {
	Tools []store.ToolSchema `json:"tools" jsonschema:"tool definitions to register"`
	ID    string             `json:"id,omitempty" jsonschema:"tool set id, generated when empty"`
}

type toolSetIDInput struct {
	ID string `json:"id" jsonschema:"the tool set id"`
}

// Envelope payloads.
type modelsData struct {
	Models []backend.ModelDescriptor `json:"models"`
	Count  int                       `json:"count"`
}

type loadedModelsData struct {
	Models []backend.LoadedModel `json:"models"`
	Count  int                   `json:"count"`
}

type loadData struct {
	Model backend.LoadedModel `json:"model"`
}

type unloadData struct {
	Identifier string `json:"identifier"`
}

type modelInfoData struct {
	Model backend.ModelDescriptor `json:"model"`
}

type sessionData struct {
	Session store.Session `json:"session"`
}

type sessionInfoData struct {
	Info store.SessionInfo `json:"info"`
}

type deletedData struct {
	Deleted bool `json:"deleted"`
}

type idListData struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

type toolSetData struct {
	ToolSet store.ToolSet `json:"tool_set"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_models",
		Description: "List every model the serving API has downloaded, loaded or not.",
	}, s.listModels)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_loaded_models",
		Description: "List the model instances currently loaded into memory.",
	}, s.listLoadedModels)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "load_model",
		Description: "Load a model into memory, optionally with an idle TTL and context length.",
	}, s.loadModel)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "unload_model",
		Description: "Unload a loaded model instance.",
	}, s.unloadModel)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_model_info",
		Description: "Get the descriptor for one model by identifier.",
	}, s.getModelInfo)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "act",
		Description: "Run one agentic turn. Start a new task with identifier and task " +
			"(plus tools or tool_set_id), or resume with session_id and tool_results. " +
			"When done is false, execute the returned tool_calls and call act again.",
	}, s.act)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_session",
		Description: "Fetch a session's full message log, including the final answer.",
	}, s.getSession)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_session_info",
		Description: "Fetch a session summary without the message log.",
	}, s.getSessionInfo)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_session",
		Description: "Delete a session.",
	}, s.deleteSession)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_sessions",
		Description: "List live session ids.",
	}, s.listSessions)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "register_tool_set",
		Description: "Register a reusable named tool set for act calls.",
	}, s.registerToolSet)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_tool_set",
		Description: "Delete a registered tool set.",
	}, s.deleteToolSet)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_tool_sets",
		Description: "List registered tool set ids.",
	}, s.listToolSets)
}

// envelope serializes any Result as the tool's text content. Failures are
// carried inside the envelope, never as protocol errors, so callers always
// get the same shape back.
func envelope[T any](res engine.Result[T]) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func (s *Server) listModels(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, any, error) {
	models, err := s.backend.ListDownloadedModels(ctx)
	if err != nil {
		return envelope(engine.Fail[modelsData](engine.ClassifyBackendError(err), "list models failed: %v", err))
	}
	return envelope(engine.OK("models listed", modelsData{Models: models, Count: len(models)}))
}

func (s *Server) listLoadedModels(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, any, error) {
	models, err := s.backend.ListLoadedModels(ctx)
	if err != nil {
		return envelope(engine.Fail[loadedModelsData](engine.ClassifyBackendError(err), "list loaded models failed: %v", err))
	}
	return envelope(engine.OK("loaded models listed", loadedModelsData{Models: models, Count: len(models)}))
}

func (s *Server) loadModel(ctx context.Context, req *mcp.CallToolRequest, in loadModelInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.ModelKey) == "" {
		return envelope(engine.Fail[loadData](engine.CodeInvalidInput, "model_key is required"))
	}
	loaded, err := s.backend.Load(ctx, in.ModelKey, backend.LoadOptions{
		TTLSeconds:    in.TTLSeconds,
		ContextLength: in.ContextLength,
	})
	if err != nil {
		return envelope(engine.Fail[loadData](engine.ClassifyBackendError(err), "load failed: %v", err))
	}
	return envelope(engine.OK(fmt.Sprintf("model %s loaded", loaded.Identifier), loadData{Model: loaded}))
}

func (s *Server) unloadModel(ctx context.Context, req *mcp.CallToolRequest, in identifierInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.Identifier) == "" {
		return envelope(engine.Fail[unloadData](engine.CodeInvalidInput, "identifier is required"))
	}
	if err := s.backend.Unload(ctx, in.Identifier); err != nil {
		return envelope(engine.Fail[unloadData](engine.ClassifyBackendError(err), "unload failed: %v", err))
	}
	return envelope(engine.OK(fmt.Sprintf("model %s unloaded", in.Identifier), unloadData{Identifier: in.Identifier}))
}

func (s *Server) getModelInfo(ctx context.Context, req *mcp.CallToolRequest, in identifierInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.Identifier) == "" {
		return envelope(engine.Fail[modelInfoData](engine.CodeInvalidInput, "identifier is required"))
	}
	desc, err := s.backend.GetModelInfo(ctx, in.Identifier)
	if err != nil {
		return envelope(engine.Fail[modelInfoData](engine.ClassifyBackendError(err), "model lookup failed: %v", err))
	}
	if desc == nil {
		return envelope(engine.Fail[modelInfoData](engine.CodeModelNotLoaded, "model %s not found", in.Identifier))
	}
	return envelope(engine.OK("model found", modelInfoData{Model: *desc}))
}

func (s *Server) act(ctx context.Context, req *mcp.CallToolRequest, in actInput) (*mcp.CallToolResult, any, error) {
	return envelope(s.engine.Act(ctx, engine.ActInput{
		Identifier:  in.Identifier,
		Task:        in.Task,
		SessionID:   in.SessionID,
		Tools:       in.Tools,
		ToolSetID:   in.ToolSetID,
		ToolResults: in.ToolResults,
		MaxTokens:   in.MaxTokens,
	}))
}

func (s *Server) getSession(ctx context.Context, req *mcp.CallToolRequest, in sessionIDInput) (*mcp.CallToolResult, any, error) {
	sess, ok := s.engine.Store().GetSession(in.SessionID)
	if !ok {
		return envelope(engine.Fail[sessionData](engine.CodeInvalidInput, "session %s not found or expired", in.SessionID))
	}
	return envelope(engine.OK("session found", sessionData{Session: *sess}))
}

func (s *Server) getSessionInfo(ctx context.Context, req *mcp.CallToolRequest, in sessionIDInput) (*mcp.CallToolResult, any, error) {
	info, ok := s.engine.Store().GetSessionInfo(in.SessionID)
	if !ok {
		return envelope(engine.Fail[sessionInfoData](engine.CodeInvalidInput, "session %s not found or expired", in.SessionID))
	}
	return envelope(engine.OK("session found", sessionInfoData{Info: info}))
}

func (s *Server) deleteSession(ctx context.Context, req *mcp.CallToolRequest, in sessionIDInput) (*mcp.CallToolResult, any, error) {
	deleted := s.engine.Store().DeleteSession(in.SessionID)
	msg := "session deleted"
	if !deleted {
		msg = "session was not present"
	}
	return envelope(engine.OK(msg, deletedData{Deleted: deleted}))
}

func (s *Server) listSessions(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, any, error) {
	ids := s.engine.Store().ListSessions()
	return envelope(engine.OK("sessions listed", idListData{IDs: ids, Count: len(ids)}))
}

func (s *Server) registerToolSet(ctx context.Context, req *mcp.CallToolRequest, in registerToolSetInput) (*mcp.CallToolResult, any, error) {
	if len(in.Tools) == 0 {
		return envelope(engine.Fail[toolSetData](engine.CodeInvalidInput, "tools must not be empty"))
	}
	for _, tool := range in.Tools {
		if strings.TrimSpace(tool.Name) == "" {
			return envelope(engine.Fail[toolSetData](engine.CodeInvalidInput, "every tool needs a name"))
		}
		if len(tool.Parameters) > 0 {
			if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(tool.Parameters)); err != nil {
				return envelope(engine.Fail[toolSetData](engine.CodeInvalidInput,
					"tool %s has invalid parameters schema: %v", tool.Name, err))
			}
		}
	}
	ts := s.engine.Store().RegisterToolSet(in.Tools, in.ID)
	return envelope(engine.OK(fmt.Sprintf("tool set %s registered", ts.ID), toolSetData{ToolSet: *ts}))
}

func (s *Server) deleteToolSet(ctx context.Context, req *mcp.CallToolRequest, in toolSetIDInput) (*mcp.CallToolResult, any, error) {
	deleted := s.engine.Store().DeleteToolSet(in.ID)
	msg := "tool set deleted"
	if !deleted {
		msg = "tool set was not present"
	}
	return envelope(engine.OK(msg, deletedData{Deleted: deleted}))
}

func (s *Server) listToolSets(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, any, error) {
	ids := s.engine.Store().ListToolSets()
	return envelope(engine.OK("tool sets listed", idListData{IDs: ids, Count: len(ids)}))
}
