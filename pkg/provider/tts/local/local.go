// Package local provides the offline placeholder TTS provider.
package local

import (
	"context"
	"fmt"
	"os"

	"github.com/MrWong99/verbi/pkg/provider/tts"
)

// Audio is the fixed payload written for every synthesis.
var Audio = []byte("Local TTS audio data")

// Provider implements tts.Provider without any model.
type Provider struct{}

// New returns a Provider.
func New() *Provider { return &Provider{} }

// Synthesize implements tts.Provider.
func (*Provider) Synthesize(ctx context.Context, _ string, outputPath string) (tts.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return tts.Artifact{}, err
	}
	if err := os.WriteFile(outputPath, Audio, 0o644); err != nil {
		return tts.Artifact{}, fmt.Errorf("local: write output: %w", err)
	}
	return tts.Artifact{Path: outputPath, Format: tts.KindLocal.Format()}, nil
}

var _ tts.Provider = (*Provider)(nil)
