// Package local provides the offline placeholder response provider.
package local

import (
	"context"

	"github.com/MrWong99/verbi/pkg/provider/llm"
	"github.com/MrWong99/verbi/pkg/transcript"
)

// Reply is the fixed text returned for every transcript.
const Reply = "Generated response from local model"

// Provider implements llm.Provider without any model.
type Provider struct{}

// New returns a Provider.
func New() *Provider { return &Provider{} }

// Complete implements llm.Provider.
func (*Provider) Complete(ctx context.Context, _ []transcript.Turn) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return Reply, nil
}

var _ llm.Provider = (*Provider)(nil)
