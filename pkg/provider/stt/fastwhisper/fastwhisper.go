// Package fastwhisper provides an STT provider for a locally hosted
// FastWhisperAPI server.
//
// The server is probed once per process through a shared [liveness.Probe]
// before the first upload; later calls skip the probe.
package fastwhisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/verbi/pkg/liveness"
	"github.com/MrWong99/verbi/pkg/provider/stt"
)

const (
	// DefaultBaseURL is where FastWhisperAPI listens by default.
	DefaultBaseURL = "http://localhost:8000"

	// NoText is returned when the server answers without a "text" field.
	NoText = "No text found in the response."

	transcriptionsPath = "/v1/transcriptions"
	defaultModel       = "base"
	placeholderToken   = "dummy_api_key"
	defaultTimeout     = 120 * time.Second
)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithProbe shares an existing probe. Without it New creates a private one.
func WithProbe(p *liveness.Probe) Option {
	return func(fw *Provider) {
		fw.probe = p
	}
}

// WithModel sets the Whisper model size the server should use.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithInitialPrompt sets the decoder prompt. Empty prompts are not sent.
func WithInitialPrompt(prompt string) Option {
	return func(p *Provider) {
		p.initialPrompt = prompt
	}
}

// WithHTTPClient sets the HTTP client used for uploads.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider against FastWhisperAPI.
type Provider struct {
	baseURL       string
	model         string
	language      string
	initialPrompt string
	vadFilter     bool
	probe         *liveness.Probe
	httpClient    *http.Client
}

// New creates a Provider for the server at baseURL. An empty baseURL selects
// [DefaultBaseURL].
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      defaultModel,
		language:   stt.DefaultLanguage,
		vadFilter:  true,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	if p.probe == nil {
		probe, err := liveness.New(p.baseURL)
		if err != nil {
			return nil, fmt.Errorf("fastwhisper: %w", err)
		}
		p.probe = probe
	}
	return p, nil
}

// Probe returns the liveness probe guarding this provider.
func (p *Provider) Probe() *liveness.Probe { return p.probe }

type transcriptionResponse struct {
	Text *string `json:"text"`
}

// Transcribe implements stt.Provider. A failed liveness probe returns an
// error wrapping [liveness.ErrUnavailable] and no upload is attempted.
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if err := p.probe.Ensure(ctx); err != nil {
		return "", fmt.Errorf("fastwhisper: %w", err)
	}

	body, contentType, err := p.buildForm(audioPath)
	if err != nil {
		return "", fmt.Errorf("fastwhisper: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+transcriptionsPath, body)
	if err != nil {
		return "", fmt.Errorf("fastwhisper: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+placeholderToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fastwhisper: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("fastwhisper: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("fastwhisper: decode response: %w", err)
	}
	if out.Text == nil {
		return NoText, nil
	}
	return *out.Text, nil
}

// buildForm reads the audio file into a multipart body. The file is closed
// before buildForm returns.
func (p *Provider) buildForm(audioPath string) (*bytes.Buffer, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"model", p.model},
		{"language", p.language},
		{"vad_filter", strconv.FormatBool(p.vadFilter)},
	}
	if p.initialPrompt != "" {
		fields = append(fields, [2]string{"initial_prompt", p.initialPrompt})
	}
	for _, kv := range fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var _ stt.Provider = (*Provider)(nil)
