// Package piper provides a TTS provider for a locally hosted Piper HTTP
// wrapper.
//
// The service answers POST /synthesize/ with the rendered WAV file; the
// provider streams the body to the requested output path.
package piper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/verbi/pkg/provider/tts"
)

const (
	// DefaultBaseURL is where the Piper wrapper listens by default.
	DefaultBaseURL = "http://localhost:5000"

	synthesizePath = "/synthesize/"
	defaultTimeout = 120 * time.Second
)

// Request is the JSON body of POST /synthesize/.
type Request struct {
	Text string `json:"text"`
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Provider against the Piper service.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Provider for the service at baseURL. An empty baseURL selects
// [DefaultBaseURL].
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// BaseURL returns the service root.
func (p *Provider) BaseURL() string { return p.baseURL }

// Synthesize implements tts.Provider. An empty outputPath lets the provider
// pick a unique "<uuid>.wav" name. A failed download leaves no file behind.
func (p *Provider) Synthesize(ctx context.Context, text, outputPath string) (art tts.Artifact, err error) {
	if strings.TrimSpace(text) == "" {
		return tts.Artifact{}, errors.New("piper: text must not be empty")
	}
	if outputPath == "" {
		outputPath = uuid.NewString() + ".wav"
	}

	body, err := json.Marshal(Request{Text: text})
	if err != nil {
		return tts.Artifact{}, fmt.Errorf("piper: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+synthesizePath, bytes.NewReader(body))
	if err != nil {
		return tts.Artifact{}, fmt.Errorf("piper: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return tts.Artifact{}, fmt.Errorf("piper: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.Artifact{}, fmt.Errorf("piper: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return tts.Artifact{}, fmt.Errorf("piper: create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("piper: close output: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(outputPath)
			art = tts.Artifact{}
		}
	}()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return tts.Artifact{}, fmt.Errorf("piper: write output: %w", err)
	}
	return tts.Artifact{Path: outputPath, Format: tts.FormatWAV}, nil
}

var _ tts.Provider = (*Provider)(nil)
