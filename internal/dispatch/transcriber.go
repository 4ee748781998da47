package dispatch

import (
	"context"
	"fmt"

	"github.com/MrWong99/verbi/internal/config"
	"github.com/MrWong99/verbi/pkg/provider/stt"
)

// Transcriber turns recorded audio into text using one selected provider.
// Failures are returned to the caller wrapped in [ErrTranscription].
type Transcriber struct {
	provider stt.Provider
	kind     stt.Kind
	s        settings
}

// NewTranscriber wraps p, which was built for kind.
func NewTranscriber(p stt.Provider, kind stt.Kind, opts ...Option) *Transcriber {
	return &Transcriber{provider: p, kind: kind, s: newSettings(opts)}
}

// Close closes the provider when it holds a connection.
func (t *Transcriber) Close() error { return closeProvider(t.provider) }

// Kind returns the selected provider.
func (t *Transcriber) Kind() stt.Kind { return t.kind }

// Transcribe returns the text spoken in the audio file at audioPath. An empty
// string with a nil error means no speech was recognised.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (text string, err error) {
	ctx, c := t.s.begin(ctx, config.RoleTranscription, string(t.kind))
	defer func() { c.end(ctx, t.s.metrics.TranscriptionDuration, err) }()

	callCtx, cancel := t.s.bound(ctx)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %s: panic: %v", ErrTranscription, t.kind, r)
		}
	}()

	text, err = t.provider.Transcribe(callCtx, audioPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrTranscription, t.kind, err)
	}
	return text, nil
}
