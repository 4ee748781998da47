// Package google provides an STT provider backed by Google Cloud
// Speech-to-Text synchronous recognition.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/MrWong99/verbi/pkg/provider/stt"
)

const defaultLanguageCode = "en-US"

// recognizer is the subset of *speech.Client used by Provider.
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithLanguageCode sets the BCP-47 recognition language.
func WithLanguageCode(code string) Option {
	return func(p *Provider) {
		if code != "" {
			p.languageCode = code
		}
	}
}

// WithSampleRate sets the sample rate of the uploaded LINEAR16 audio. Zero
// lets the service read it from the WAV header.
func WithSampleRate(hz int32) Option {
	return func(p *Provider) {
		p.sampleRate = hz
	}
}

// Provider implements stt.Provider using Cloud Speech-to-Text.
type Provider struct {
	client       recognizer
	languageCode string
	sampleRate   int32
}

// New dials Cloud Speech-to-Text authenticated with apiKey.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("google: apiKey must not be empty")
	}
	client, err := speech.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("google: create speech client: %w", err)
	}
	return newWithClient(client, opts...), nil
}

func newWithClient(client recognizer, opts ...Option) *Provider {
	p := &Provider{client: client, languageCode: defaultLanguageCode}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Close releases the underlying gRPC connection.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Transcribe implements stt.Provider. The whole file is sent inline; results
// for consecutive audio segments are joined with a space.
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (string, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("google: read audio: %w", err)
	}

	resp, err := p.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            p.sampleRate,
			LanguageCode:               p.languageCode,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google: recognize: %w", err)
	}

	var parts []string
	for _, r := range resp.GetResults() {
		if alts := r.GetAlternatives(); len(alts) > 0 {
			if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " "), nil
}

var _ stt.Provider = (*Provider)(nil)
