// Package openai provides a TTS provider backed by the OpenAI speech API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/verbi/pkg/provider/tts"
)

const (
	// DefaultModel is the OpenAI speech model.
	DefaultModel = "tts-1"

	// DefaultVoice is the OpenAI voice used when none is configured.
	DefaultVoice = "fable"
)

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

// WithVoice overrides [DefaultVoice].
func WithVoice(voice string) Option {
	return func(p *Provider) {
		if voice != "" {
			p.voice = voice
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible API root.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithMaxRetries sets how often the SDK retries a failed request.
func WithMaxRetries(n int) Option {
	return func(p *Provider) {
		p.maxRetries = n
	}
}

// Provider implements tts.Provider using the OpenAI speech endpoint. It
// always produces MP3.
type Provider struct {
	client     oai.Client
	model      string
	voice      string
	baseURL    string
	maxRetries int
}

// New creates an OpenAI speech Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	p := &Provider{model: DefaultModel, voice: DefaultVoice, maxRetries: -1}
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

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text, outputPath string) (tts.Artifact, error) {
	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Input:          text,
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(p.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return tts.Artifact{}, fmt.Errorf("openai: speech: %w", err)
	}
	defer resp.Body.Close()

	f, err := os.Create(outputPath)
	if err != nil {
		return tts.Artifact{}, fmt.Errorf("openai: create output: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return tts.Artifact{}, fmt.Errorf("openai: write output: %w", err)
	}
	if err := f.Close(); err != nil {
		return tts.Artifact{}, fmt.Errorf("openai: close output: %w", err)
	}
	return tts.Artifact{Path: outputPath, Format: tts.FormatMP3}, nil
}

var _ tts.Provider = (*Provider)(nil)
