// Package dispatch routes each pipeline stage to the provider selected for
// it.
//
// Provider names form a closed set per role (stt.Kind, llm.Kind, tts.Kind).
// Each role has exactly one constructor that switches over every kind, so an
// unknown name is reported as [ErrConfiguration] before any network I/O.
//
// The three dispatchers differ in how they treat provider failures:
//
//   - [Transcriber] returns them, wrapped in [ErrTranscription].
//   - [Responder] logs them and answers with [Apology].
//   - [Synthesizer] logs them and reports false.
package dispatch

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/MrWong99/verbi/internal/config"
	"github.com/MrWong99/verbi/pkg/provider/tts"
	"github.com/MrWong99/verbi/pkg/transcript"
)

// Dispatcher bundles the dispatchers for the three roles as selected by a
// [config.Config].
type Dispatcher struct {
	Transcriber *Transcriber
	Responder   *Responder
	Synthesizer *Synthesizer

	closeOnce sync.Once
	closeErr  error
}

// Close releases providers holding connections, such as the Google speech
// gRPC client. Every provider implementing [io.Closer] is closed once;
// later calls return the first result.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		var errs []error
		if d.Transcriber != nil {
			errs = append(errs, d.Transcriber.Close())
		}
		if d.Responder != nil {
			errs = append(errs, d.Responder.Close())
		}
		if d.Synthesizer != nil {
			errs = append(errs, d.Synthesizer.Close())
		}
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}

func closeProvider(p any) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// New builds every role's provider from cfg. Provider timeouts from cfg are
// applied after opts. All configuration errors are joined.
func New(ctx context.Context, cfg *config.Config, env Env, opts ...Option) (*Dispatcher, error) {
	if env.Local == (config.LocalConfig{}) {
		env.Local = cfg.Local
	}
	with := func(role config.Role) []Option {
		return append(opts[:len(opts):len(opts)], WithTimeout(cfg.Entry(role).Timeout))
	}

	var (
		d    = new(Dispatcher)
		errs []error
	)
	if sp, kind, err := NewTranscriptionProvider(ctx, cfg.Providers.Transcription, cfg.APIKey(config.RoleTranscription), env); err != nil {
		errs = append(errs, err)
	} else {
		d.Transcriber = NewTranscriber(sp, kind, with(config.RoleTranscription)...)
	}
	if rp, kind, err := NewResponseProvider(ctx, cfg.Providers.Response, cfg.APIKey(config.RoleResponse), env); err != nil {
		errs = append(errs, err)
	} else {
		d.Responder = NewResponder(rp, kind, with(config.RoleResponse)...)
	}
	if tp, kind, err := NewSpeechProvider(ctx, cfg.Providers.Speech, cfg.APIKey(config.RoleSpeech), env); err != nil {
		errs = append(errs, err)
	} else {
		d.Synthesizer = NewSynthesizer(tp, kind, with(config.RoleSpeech)...)
	}
	if err := errors.Join(errs...); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// Transcribe builds the named provider with credential and transcribes
// audioPath in one call.
func Transcribe(ctx context.Context, providerName, credential, audioPath string, env Env, opts ...Option) (string, error) {
	p, kind, err := NewTranscriptionProvider(ctx, config.ProviderEntry{Name: providerName}, credential, env)
	if err != nil {
		return "", err
	}
	defer closeProvider(p)
	return NewTranscriber(p, kind, opts...).Transcribe(ctx, audioPath)
}

// GenerateResponse builds the named provider with credential and replies to
// turns in one call. The error is non-nil only for configuration problems;
// provider failures yield [Apology].
func GenerateResponse(ctx context.Context, providerName, credential string, turns []transcript.Turn, env Env, opts ...Option) (string, error) {
	p, kind, err := NewResponseProvider(ctx, config.ProviderEntry{Name: providerName}, credential, env)
	if err != nil {
		return "", err
	}
	defer closeProvider(p)
	return NewResponder(p, kind, opts...).Reply(ctx, turns), nil
}

// Synthesize builds the named provider with credential and speaks text in one
// call. The error is non-nil only for configuration problems; provider
// failures are logged and reported through ok.
func Synthesize(ctx context.Context, providerName, credential, text, outputPath string, env Env, opts ...Option) (art tts.Artifact, ok bool, err error) {
	p, kind, err := NewSpeechProvider(ctx, config.ProviderEntry{Name: providerName}, credential, env)
	if err != nil {
		return tts.Artifact{}, false, err
	}
	defer closeProvider(p)
	art, ok = NewSynthesizer(p, kind, opts...).Synthesize(ctx, text, outputPath)
	return art, ok, nil
}
