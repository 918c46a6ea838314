// Package backend talks to the local model-serving API. The continuation
// engine depends only on GetModelInfo and Respond; the remaining
// operations back the model-management tool surface.
package backend

import (
	"context"

	"github.com/ChamsBouzaiene/lmbridge/internal/store"
)

// Model states reported by the management API.
const (
	StateLoaded    = "loaded"
	StateNotLoaded = "not-loaded"
)

// ModelDescriptor describes a model known to the serving API, loaded or not.
type ModelDescriptor struct {
	Key              string `json:"id"`
	Type             string `json:"type,omitempty"`
	Publisher        string `json:"publisher,omitempty"`
	Arch             string `json:"arch,omitempty"`
	Quantization     string `json:"quantization,omitempty"`
	State            string `json:"state"`
	MaxContextLength int    `json:"max_context_length,omitempty"`
}

// Loaded reports whether the model is currently loaded into memory.
func (d ModelDescriptor) Loaded() bool {
	return d.State == StateLoaded
}

// LoadedModel describes one loaded model instance.
type LoadedModel struct {
	Identifier    string `json:"identifier"`
	Key           string `json:"id"`
	ContextLength int    `json:"context_length,omitempty"`
}

// LoadOptions tune a model load request. Zero values mean server defaults.
type LoadOptions struct {
	TTLSeconds    int `json:"ttl_seconds,omitempty"`
	ContextLength int `json:"context_length,omitempty"`
}

// RespondOptions tune one chat completion.
type RespondOptions struct {
	MaxTokens int
}

// Client is the model-serving capability consumed by the rest of the
// system. Implementations must be safe for concurrent use.
type Client interface {
	ListDownloadedModels(ctx context.Context) ([]ModelDescriptor, error)
	ListLoadedModels(ctx context.Context) ([]LoadedModel, error)
	Load(ctx context.Context, modelKey string, opts LoadOptions) (LoadedModel, error)
	Unload(ctx context.Context, identifier string) error

	// GetModelInfo returns nil with no error when the identifier is unknown
	// to the serving API.
	GetModelInfo(ctx context.Context, identifier string) (*ModelDescriptor, error)

	// Respond runs one chat completion over the full ordered message log
	// and returns the raw assistant text.
	Respond(ctx context.Context, modelID string, messages []store.Message, opts RespondOptions) (string, error)
}
