// Package llm defines the Provider interface for text response backends.
//
// A response provider receives the uniform chat transcript (system, user and
// assistant turns in chronological order) and returns the assistant's next
// reply. Providers whose APIs want a different history shape convert a copy
// of the turns themselves; the caller's transcript is never modified.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/verbi/pkg/provider"
	"github.com/MrWong99/verbi/pkg/transcript"
)

// Kind names a supported response backend.
type Kind string

const (
	// KindOpenAI is the OpenAI chat completions API.
	KindOpenAI Kind = "openai"

	// KindGroq is Groq's hosted chat API.
	KindGroq Kind = "groq"

	// KindOllama is a locally hosted Ollama server.
	KindOllama Kind = "ollama"

	// KindGemini is Google Gemini. Its chat API takes prior turns as history
	// and the newest user message separately.
	KindGemini Kind = "gemini"

	// KindAgent is a Groq-hosted model that may call the assistant's tools
	// (calendar, email, tasks and so on) before it answers.
	KindAgent Kind = "agent"

	// KindLocal is the offline placeholder.
	KindLocal Kind = "local"
)

// Kinds returns every supported Kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindOpenAI, KindGroq, KindOllama, KindGemini, KindAgent, KindLocal}
}

// ParseKind validates name against [Kinds]. Unknown names wrap
// [provider.ErrUnsupported].
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	s := make([]string, 0, len(Kinds()))
	for _, known := range Kinds() {
		s = append(s, string(known))
	}
	return "", fmt.Errorf("%w: response/%q; supported: %s", provider.ErrUnsupported, name, strings.Join(s, ", "))
}

// NeedsCredential reports whether the backend requires an API key.
func (k Kind) NeedsCredential() bool {
	switch k {
	case KindOpenAI, KindGroq, KindGemini, KindAgent:
		return true
	}
	return false
}

// Provider is the abstraction over any response backend.
type Provider interface {
	// Complete returns the assistant reply for turns. turns is a copy owned
	// by the callee for the duration of the call.
	Complete(ctx context.Context, turns []transcript.Turn) (string, error)
}
