package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/lmbridge/internal/store"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// DefaultBaseURL is the LM Studio local server default.
const DefaultBaseURL = "http://localhost:1234"

// LMStudioClient implements Client against an LM Studio style server:
// chat completions go through the OpenAI-compatible /v1 endpoint, model
// management through the native REST API under /api/v0.
type LMStudioClient struct {
	baseURL string
	http    *http.Client
	chat    *openai.Client
}

// NewLMStudioClient creates a client for the server at baseURL. An empty
// baseURL falls back to the local default; apiKey can be any placeholder
// for local servers.
func NewLMStudioClient(baseURL, apiKey string) *LMStudioClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if apiKey == "" {
		apiKey = "lm-studio"
	}
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"

	return &LMStudioClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		chat:    openai.NewClientWithConfig(config),
	}
}

// BaseURL returns the resolved server base URL.
func (c *LMStudioClient) BaseURL() string {
	return c.baseURL
}

type modelListResponse struct {
	Data []ModelDescriptor `json:"data"`
}

// ListDownloadedModels returns every model the server knows about,
// loaded or not.
func (c *LMStudioClient) ListDownloadedModels(ctx context.Context) ([]ModelDescriptor, error) {
	var resp modelListResponse
	if err := c.getJSON(ctx, "/api/v0/models", &resp); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return resp.Data, nil
}

// ListLoadedModels returns the currently loaded model instances.
func (c *LMStudioClient) ListLoadedModels(ctx context.Context) ([]LoadedModel, error) {
	var resp modelListResponse
	if err := c.getJSON(ctx, "/api/v0/models", &resp); err != nil {
		return nil, fmt.Errorf("list loaded models: %w", err)
	}

	var loaded []LoadedModel
	for _, d := range resp.Data {
		if d.Loaded() {
			loaded = append(loaded, LoadedModel{
				Identifier:    d.Key,
				Key:           d.Key,
				ContextLength: d.MaxContextLength,
			})
		}
	}
	return loaded, nil
}

// Load asks the server to load modelKey into memory.
func (c *LMStudioClient) Load(ctx context.Context, modelKey string, opts LoadOptions) (LoadedModel, error) {
	body := struct {
		ModelKey string `json:"model_key"`
		LoadOptions
	}{ModelKey: modelKey, LoadOptions: opts}

	var loaded LoadedModel
	if err := c.postJSON(ctx, "/api/v0/models/load", body, &loaded); err != nil {
		return LoadedModel{}, fmt.Errorf("load model %s: %w", modelKey, err)
	}
	return loaded, nil
}

// Unload asks the server to unload the model instance.
func (c *LMStudioClient) Unload(ctx context.Context, identifier string) error {
	body := struct {
		Identifier string `json:"identifier"`
	}{Identifier: identifier}

	if err := c.postJSON(ctx, "/api/v0/models/unload", body, nil); err != nil {
		return fmt.Errorf("unload model %s: %w", identifier, err)
	}
	return nil
}

// GetModelInfo returns the descriptor for identifier, or nil when the
// server does not know it.
func (c *LMStudioClient) GetModelInfo(ctx context.Context, identifier string) (*ModelDescriptor, error) {
	var desc ModelDescriptor
	err := c.getJSON(ctx, "/api/v0/models/"+identifier, &desc)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get model info %s: %w", identifier, err)
	}
	return &desc, nil
}

// Respond runs one chat completion against the OpenAI-compatible endpoint.
func (c *LMStudioClient) Respond(ctx context.Context, modelID string, messages []store.Message, opts RespondOptions) (string, error) {
	chatMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:    modelID,
		Messages: chatMsgs,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	resp, err := c.chat.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model %s", modelID)
	}
	return resp.Choices[0].Message.Content, nil
}

// httpStatusError carries the status code so callers can distinguish
// not-found from real failures.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var statusErr *httpStatusError
	return errors.As(err, &statusErr) && statusErr.status == http.StatusNotFound
}

func (c *LMStudioClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *LMStudioClient) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *LMStudioClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpStatusError{status: resp.StatusCode, body: truncateBody(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncateBody(data []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(data))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
