// Package local provides the offline placeholder STT provider.
package local

import (
	"context"
	"fmt"
	"os"

	"github.com/MrWong99/verbi/pkg/provider/stt"
)

// Text is the fixed transcript returned for every audio file.
const Text = "Transcribed text from local model"

// Provider implements stt.Provider without any model.
type Provider struct{}

// New returns a Provider.
func New() *Provider { return &Provider{} }

// Transcribe implements stt.Provider. The file must exist.
func (*Provider) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("local: %w", err)
	}
	return Text, nil
}

var _ stt.Provider = (*Provider)(nil)
