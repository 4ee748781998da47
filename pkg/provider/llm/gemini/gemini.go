// Package gemini provides a response provider backed by Google Gemini via
// google.golang.org/genai.
//
// Gemini's chat API does not take a flat message list. Each call creates a
// chat session seeded with the prior turns and then sends the newest user
// message; see [Normalize] for the exact reshaping.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/MrWong99/verbi/pkg/provider/llm"
	"github.com/MrWong99/verbi/pkg/transcript"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-1.5-flash"

// session is the part of *genai.Chat the provider uses.
type session interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// sessionFactory opens a chat session for model seeded with history.
type sessionFactory func(ctx context.Context, model string, history []*genai.Content) (session, error)

// Provider implements llm.Provider using the Gemini chat API.
type Provider struct {
	model string
	open  sessionFactory
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel overrides [DefaultModel].
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// New creates a Gemini Provider authenticated with apiKey.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: apiKey must not be empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	p := &Provider{
		model: DefaultModel,
		open: func(ctx context.Context, model string, history []*genai.Content) (session, error) {
			return client.Chats.Create(ctx, model, nil, history)
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Model returns the configured model.
func (p *Provider) Model() string { return p.model }

// Complete implements llm.Provider. An empty transcript or one whose newest
// turn is not a user turn fails with [ErrEmptyTranscript] or [ErrStaleTurn]
// before any network call.
func (p *Provider) Complete(ctx context.Context, turns []transcript.Turn) (string, error) {
	conv, err := Normalize(turns)
	if err != nil {
		return "", err
	}

	chat, err := p.open(ctx, p.model, conv.History)
	if err != nil {
		return "", fmt.Errorf("gemini: create chat: %w", err)
	}
	resp, err := chat.SendMessage(ctx, *genai.NewPartFromText(conv.Message))
	if err != nil {
		return "", fmt.Errorf("gemini: send message: %w", err)
	}
	if resp == nil {
		return "", errors.New("gemini: nil response")
	}
	return resp.Text(), nil
}

var _ llm.Provider = (*Provider)(nil)
