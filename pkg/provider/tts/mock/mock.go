// Package mock provides a test double for the tts.Provider interface.
//
// By default Synthesize writes Audio to the requested output path so callers
// that play or delete the artifact see a real file.
package mock

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/MrWong99/verbi/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
	// OutputPath is the path passed to Synthesize.
	OutputPath string
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Audio is written to the output path unless Streamed is true.
	Audio []byte

	// Format is reported in the returned Artifact. Defaults to tts.FormatWAV.
	Format tts.Format

	// Streamed makes Synthesize report a streamed artifact without writing a
	// file.
	Streamed bool

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// Calls records every call to Synthesize in order.
	Calls []SynthesizeCall
}

// Synthesize records the call and writes Audio to outputPath.
func (p *Provider) Synthesize(ctx context.Context, text, outputPath string) (tts.Artifact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, SynthesizeCall{Ctx: ctx, Text: text, OutputPath: outputPath})
	if p.Err != nil {
		return tts.Artifact{}, p.Err
	}
	format := p.Format
	if format == "" {
		format = tts.FormatWAV
	}
	if p.Streamed {
		return tts.Artifact{Format: format, Streamed: true}, nil
	}
	if err := os.WriteFile(outputPath, p.Audio, 0o644); err != nil {
		return tts.Artifact{}, fmt.Errorf("mock: write %s: %w", outputPath, err)
	}
	return tts.Artifact{Path: outputPath, Format: format}, nil
}

// CallCount returns the number of recorded Synthesize calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
