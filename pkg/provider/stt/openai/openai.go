// Package openai provides an STT provider backed by the OpenAI audio
// transcription API. The same client also serves Groq, whose Whisper endpoint
// is wire compatible; see [NewGroq].
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/verbi/pkg/provider/stt"
)

const (
	// DefaultModel is the OpenAI Whisper model.
	DefaultModel = "whisper-1"

	// GroqBaseURL is Groq's OpenAI-compatible API root.
	GroqBaseURL = "https://api.groq.com/openai/v1"

	// GroqModel is the Whisper model served by Groq.
	GroqModel = "whisper-large-v3"
)

// Provider implements stt.Provider using the OpenAI transcription endpoint.
type Provider struct {
	client     oai.Client
	model      string
	language   string
	baseURL    string
	maxRetries int
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel overrides the transcription model.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible API root.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithLanguage sets the ISO-639-1 language hint. Defaults to
// [stt.DefaultLanguage].
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithMaxRetries sets how often the SDK retries a failed request.
func WithMaxRetries(n int) Option {
	return func(p *Provider) {
		p.maxRetries = n
	}
}

// New creates an OpenAI transcription Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	p := &Provider{
		model:      DefaultModel,
		language:   stt.DefaultLanguage,
		maxRetries: -1,
	}
	for _, o := range opts {
		o(p)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if p.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(p.baseURL))
	}
	if p.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(p.maxRetries))
	}
	p.client = oai.NewClient(reqOpts...)
	return p, nil
}

// NewGroq creates a Provider for Groq's Whisper endpoint. Options are applied
// after the Groq defaults, so WithBaseURL and WithModel still override them.
func NewGroq(apiKey string, opts ...Option) (*Provider, error) {
	return New(apiKey, append([]Option{WithBaseURL(GroqBaseURL), WithModel(GroqModel)}, opts...)...)
}

// Model returns the configured transcription model.
func (p *Provider) Model() string { return p.model }

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("openai: open audio: %w", err)
	}
	defer f.Close()

	params := oai.AudioTranscriptionNewParams{
		File:  f,
		Model: oai.AudioModel(p.model),
	}
	if p.language != "" {
		params.Language = oai.String(p.language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: transcription: %w", err)
	}
	return resp.Text, nil
}

var _ stt.Provider = (*Provider)(nil)
