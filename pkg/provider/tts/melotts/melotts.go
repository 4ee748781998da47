// Package melotts provides a TTS provider for a locally hosted MeloTTS
// microservice.
//
// The service renders the audio itself and writes it to the filename given in
// the request; the provider only tells it what to say and where to put it.
package melotts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/verbi/pkg/provider/tts"
)

const (
	// DefaultBaseURL is where the MeloTTS service listens by default.
	DefaultBaseURL = "http://localhost:5150"

	// DefaultLanguage and DefaultAccent select the American English speaker.
	DefaultLanguage = "EN"
	DefaultAccent   = "EN-US"

	// Speed bounds accepted by [Request.Validate].
	MinSpeed = 0.1
	MaxSpeed = 3.0

	generatePath   = "/generate-audio/"
	defaultTimeout = 120 * time.Second
)

// ErrInvalidAccent is returned when the requested accent is not one of the
// known English speakers.
var ErrInvalidAccent = errors.New("melotts: invalid accent")

// accents is the English speaker set shipped with MeloTTS.
var accents = []string{"EN-US", "EN-BR", "EN-INDIA", "EN-AU", "EN-Default"}

// Accents returns the known speaker accents.
func Accents() []string { return slices.Clone(accents) }

// ValidAccent reports whether accent is a known speaker.
func ValidAccent(accent string) bool { return slices.Contains(accents, accent) }

// Request is the JSON body of POST /generate-audio/.
type Request struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Accent   string  `json:"accent"`
	Speed    float64 `json:"speed"`
	Filename string  `json:"filename"`
}

// Validate checks the accent and speed without contacting the service.
func (r Request) Validate() error {
	if !ValidAccent(r.Accent) {
		return fmt.Errorf("%w %q; known: %s", ErrInvalidAccent, r.Accent, strings.Join(accents, ", "))
	}
	if r.Speed < MinSpeed || r.Speed > MaxSpeed {
		return fmt.Errorf("melotts: speed %.2f out of range [%.1f, %.1f]", r.Speed, MinSpeed, MaxSpeed)
	}
	return nil
}

// Response is the JSON body returned by the service.
type Response struct {
	Message  string `json:"message"`
	FilePath string `json:"file_path"`
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithAccent selects the speaker accent.
func WithAccent(accent string) Option {
	return func(p *Provider) {
		if accent != "" {
			p.accent = accent
		}
	}
}

// WithSpeed sets the speaking rate. 1.0 is normal speed.
func WithSpeed(speed float64) Option {
	return func(p *Provider) {
		if speed != 0 {
			p.speed = speed
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Provider against the MeloTTS service.
type Provider struct {
	baseURL    string
	language   string
	accent     string
	speed      float64
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
		language:   DefaultLanguage,
		accent:     DefaultAccent,
		speed:      1.0,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// BaseURL returns the service root.
func (p *Provider) BaseURL() string { return p.baseURL }

// Synthesize implements tts.Provider. An invalid accent or speed fails before
// any request is made. An empty outputPath lets the provider pick a unique
// "<uuid>.wav" name.
func (p *Provider) Synthesize(ctx context.Context, text, outputPath string) (tts.Artifact, error) {
	if outputPath == "" {
		outputPath = uuid.NewString() + ".wav"
	}
	req := Request{
		Text:     text,
		Language: p.language,
		Accent:   p.accent,
		Speed:    p.speed,
		Filename: outputPath,
	}
	if err := req.Validate(); err != nil {
		return tts.Artifact{}, err
	}

	resp, err := p.generate(ctx, req)
	if err != nil {
		return tts.Artifact{}, err
	}
	path := resp.FilePath
	if path == "" {
		path = outputPath
	}
	return tts.Artifact{Path: path, Format: formatOf(path)}, nil
}

func (p *Provider) generate(ctx context.Context, r Request) (Response, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return Response{}, fmt.Errorf("melotts: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("melotts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("melotts: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Response{}, fmt.Errorf("melotts: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("melotts: decode response: %w", err)
	}
	return out, nil
}

func formatOf(path string) tts.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return tts.FormatWAV
	default:
		return tts.FormatMP3
	}
}

var _ tts.Provider = (*Provider)(nil)
