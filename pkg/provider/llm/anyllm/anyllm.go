// Package anyllm provides response providers backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface.
//
// verbi uses it for the Groq hosted API and for a locally hosted Ollama
// server; both receive the transcript unchanged.
//
// Usage:
//
//	p, err := anyllm.NewGroq("llama3-8b-8192", anyllmlib.WithAPIKey("gsk_..."))
//	p, err := anyllm.NewOllama("llama3:8b", anyllmlib.WithBaseURL("http://localhost:11434"))
package anyllm

import (
	"context"
	"errors"
	"fmt"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"

	"github.com/MrWong99/verbi/pkg/provider"
	"github.com/MrWong99/verbi/pkg/provider/llm"
	"github.com/MrWong99/verbi/pkg/transcript"
)

// Default models per backend.
const (
	DefaultGroqModel   = "llama3-8b-8192"
	DefaultOllamaModel = "llama3:8b"
)

// Provider implements llm.Provider by wrapping github.com/mozilla-ai/any-llm-go.
type Provider struct {
	kind    llm.Kind
	backend anyllmlib.Provider
	model   string
}

// New creates a new Provider for kind, which must be [llm.KindGroq] or
// [llm.KindOllama]. An empty model selects the backend's default.
//
// opts are any-llm-go configuration options (e.g., anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL).
func New(kind llm.Kind, model string, opts ...anyllmlib.Option) (*Provider, error) {
	var (
		backend anyllmlib.Provider
		err     error
	)
	switch kind {
	case llm.KindGroq:
		if model == "" {
			model = DefaultGroqModel
		}
		backend, err = groq.New(opts...)
	case llm.KindOllama:
		if model == "" {
			model = DefaultOllamaModel
		}
		backend, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("anyllm: %w: %q; supported: groq, ollama", provider.ErrUnsupported, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", kind, err)
	}
	return &Provider{kind: kind, backend: backend, model: model}, nil
}

// NewGroq creates a Provider backed by Groq.
// Without options, it reads the GROQ_API_KEY environment variable.
func NewGroq(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New(llm.KindGroq, model, opts...)
}

// NewOllama creates a Provider backed by Ollama (local inference).
// Without options, it connects to http://localhost:11434.
func NewOllama(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New(llm.KindOllama, model, opts...)
}

// Kind returns the backend this provider talks to.
func (p *Provider) Kind() llm.Kind { return p.kind }

// Model returns the configured model.
func (p *Provider) Model() string { return p.model }

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, turns []transcript.Turn) (string, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(turns))
	if err != nil {
		return "", fmt.Errorf("anyllm: %s completion: %w", p.kind, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("anyllm: empty choices in response")
	}
	return resp.Choices[0].Message.ContentString(), nil
}

// buildParams converts the transcript into anyllm CompletionParams.
func (p *Provider) buildParams(turns []transcript.Turn) anyllmlib.CompletionParams {
	messages := make([]anyllmlib.Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, convertTurn(t))
	}
	return anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: messages,
	}
}

// convertTurn converts a transcript turn to anyllm.Message. transcript roles
// share their wire names with the chat APIs.
func convertTurn(t transcript.Turn) anyllmlib.Message {
	return anyllmlib.Message{
		Role:    string(t.Role),
		Content: t.Content,
	}
}

var _ llm.Provider = (*Provider)(nil)
