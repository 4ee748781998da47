// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider turns a recorded audio file into text. Every backend, hosted
// or local, is reduced to the same blocking call so the transcription
// dispatcher can treat them uniformly. Backends are selected by [Kind], a
// closed set of names validated at configuration time.
package stt

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/verbi/pkg/provider"
)

// DefaultLanguage is the language hint sent to every backend that accepts one.
const DefaultLanguage = "en"

// Kind names a supported transcription backend.
type Kind string

const (
	// KindOpenAI is the hosted OpenAI Whisper API.
	KindOpenAI Kind = "openai"

	// KindGroq is Groq's OpenAI-compatible Whisper endpoint.
	KindGroq Kind = "groq"

	// KindDeepgram is Deepgram's prerecorded transcription API.
	KindDeepgram Kind = "deepgram"

	// KindGoogle is Google Cloud Speech-to-Text.
	KindGoogle Kind = "google"

	// KindFastWhisper is a locally hosted FastWhisperAPI server.
	KindFastWhisper Kind = "fastwhisperapi"

	// KindLocal is the offline placeholder.
	KindLocal Kind = "local"
)

// Kinds returns every supported Kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindOpenAI, KindGroq, KindDeepgram, KindGoogle, KindFastWhisper, KindLocal}
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
	return "", fmt.Errorf("%w: transcription/%q; supported: %s", provider.ErrUnsupported, name, joinKinds(Kinds()))
}

// NeedsCredential reports whether the backend requires an API key.
func (k Kind) NeedsCredential() bool {
	switch k {
	case KindOpenAI, KindGroq, KindDeepgram, KindGoogle:
		return true
	}
	return false
}

// Provider is the abstraction over any STT backend.
//
// Implementations open, fully read, and close the audio file within a single
// call. An empty transcript with a nil error means no speech was detected.
type Provider interface {
	// Transcribe returns the best transcript for the audio file at audioPath.
	// Any failure to reach the backend or interpret its answer is returned as
	// an error; implementations never substitute text for a failed call.
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

func joinKinds(kinds []Kind) string {
	s := make([]string, len(kinds))
	for i, k := range kinds {
		s[i] = string(k)
	}
	return strings.Join(s, ", ")
}
