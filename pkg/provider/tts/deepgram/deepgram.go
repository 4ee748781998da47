// Package deepgram provides a TTS provider backed by the Deepgram Aura
// speak REST API.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/MrWong99/verbi/pkg/provider/tts"
)

const (
	speakEndpoint  = "https://api.deepgram.com/v1/speak"
	defaultModel   = "aura-luna-en"
	defaultTimeout = 60 * time.Second
)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel sets the Aura voice model (e.g., "aura-luna-en").
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithEndpoint overrides the speak endpoint. Used in tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Provider using Deepgram. It always produces
// 16-bit linear PCM in a WAV container.
type Provider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// New creates a Deepgram speech Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		endpoint:   speakEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text, outputPath string) (tts.Artifact, error) {
	reqURL, err := p.buildURL()
	if err != nil {
		return tts.Artifact{}, fmt.Errorf("deepgram: build URL: %w", err)
	}
	body, _ := json.Marshal(map[string]string{"text": text})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return tts.Artifact{}, fmt.Errorf("deepgram: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return tts.Artifact{}, fmt.Errorf("deepgram: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.Artifact{}, fmt.Errorf("deepgram: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return tts.Artifact{}, fmt.Errorf("deepgram: create output: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return tts.Artifact{}, fmt.Errorf("deepgram: write output: %w", err)
	}
	if err := f.Close(); err != nil {
		return tts.Artifact{}, fmt.Errorf("deepgram: close output: %w", err)
	}
	return tts.Artifact{Path: outputPath, Format: tts.FormatWAV}, nil
}

func (p *Provider) buildURL() (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", p.model)
	q.Set("encoding", "linear16")
	q.Set("container", "wav")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

var _ tts.Provider = (*Provider)(nil)
