package dispatch

import (
	"context"
	"fmt"

	"github.com/MrWong99/verbi/internal/config"
	"github.com/MrWong99/verbi/pkg/provider/tts"
)

// Synthesizer speaks text through one selected provider. Failures are logged
// and reported through the boolean result only.
type Synthesizer struct {
	provider tts.Provider
	kind     tts.Kind
	s        settings
}

// NewSynthesizer wraps p, which was built for kind.
func NewSynthesizer(p tts.Provider, kind tts.Kind, opts ...Option) *Synthesizer {
	return &Synthesizer{provider: p, kind: kind, s: newSettings(opts)}
}

// Close closes the provider when it holds a connection.
func (s *Synthesizer) Close() error { return closeProvider(s.provider) }

// Kind returns the selected provider.
func (s *Synthesizer) Kind() tts.Kind { return s.kind }

// OutputFile returns the file name matching the container the selected
// provider produces.
func (s *Synthesizer) OutputFile() string { return config.OutputFile(s.kind) }

// Synthesize renders text to outputPath, or streams it to the playback sink
// for streaming providers. ok is false when synthesis failed; the artifact is
// then the zero value. A successful streamed artifact has an empty Path.
func (s *Synthesizer) Synthesize(ctx context.Context, text, outputPath string) (art tts.Artifact, ok bool) {
	var err error
	ctx, c := s.s.begin(ctx, config.RoleSpeech, string(s.kind))
	defer func() {
		c.end(ctx, s.s.metrics.SpeechDuration, err)
		if err != nil {
			art, ok = tts.Artifact{}, false
		}
	}()

	callCtx, cancel := s.s.bound(ctx)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %s: panic: %v", ErrSynthesis, s.kind, p)
		}
	}()

	art, err = s.provider.Synthesize(callCtx, text, outputPath)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrSynthesis, s.kind, err)
		return tts.Artifact{}, false
	}
	return art, true
}
