// Package polly provides a TTS provider backed by Amazon Polly.
//
// Credentials come from the AWS default chain (environment, shared config,
// instance role) rather than from verbi's credential table.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/MrWong99/verbi/pkg/provider/tts"
)

const (
	defaultRegion = "us-east-1"
	defaultVoice  = "Joanna"
	defaultEngine = "neural"
)

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Config selects the Polly region, voice and engine. Zero fields take the
// package defaults.
type Config struct {
	Region  string
	VoiceID string
	Engine  string
}

// Provider implements tts.Provider using Amazon Polly. It always produces MP3.
type Provider struct {
	mu     sync.Mutex
	client synthClient
	cfg    Config
}

// New returns a Provider. The AWS client is created lazily on first use.
func New(cfg Config) *Provider {
	return newWithClient(cfg, nil)
}

func newWithClient(cfg Config, client synthClient) *Provider {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = defaultRegion
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = defaultVoice
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = defaultEngine
	}
	return &Provider{client: client, cfg: cfg}
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text, outputPath string) (tts.Artifact, error) {
	client, err := p.resolveClient(ctx)
	if err != nil {
		return tts.Artifact{}, err
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(p.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	out, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         aws.String(text),
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(p.cfg.VoiceID),
	})
	if err != nil {
		return tts.Artifact{}, describeError(err)
	}
	if out == nil || out.AudioStream == nil {
		return tts.Artifact{}, errors.New("polly: empty audio stream")
	}
	defer out.AudioStream.Close()

	f, err := os.Create(outputPath)
	if err != nil {
		return tts.Artifact{}, fmt.Errorf("polly: create output: %w", err)
	}
	if _, err := io.Copy(f, out.AudioStream); err != nil {
		f.Close()
		return tts.Artifact{}, fmt.Errorf("polly: write output: %w", err)
	}
	if err := f.Close(); err != nil {
		return tts.Artifact{}, fmt.Errorf("polly: close output: %w", err)
	}
	return tts.Artifact{Path: outputPath, Format: tts.FormatMP3}, nil
}

// describeError prefixes Polly API errors with their error code.
func describeError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("polly: %s: %w", apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("polly: synthesize: %w", err)
}

func (p *Provider) resolveClient(ctx context.Context) (synthClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("polly: load aws config: %w", err)
	}
	p.client = polly.NewFromConfig(awsCfg)
	return p.client, nil
}

var _ tts.Provider = (*Provider)(nil)
