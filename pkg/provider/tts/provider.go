// Package tts defines the Provider interface for Text-to-Speech backends.
//
// Most backends write a complete audio file; streaming backends instead hand
// audio chunks to a playback sink as they arrive and leave nothing on disk.
// The returned [Artifact] tells the caller which of the two happened and in
// which container format.
package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/verbi/pkg/provider"
)

// Format is the container/encoding of synthesised audio.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
	FormatPCM Format = "pcm"
)

// Ext returns the file extension for f, including the leading dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Kind names a supported speech backend.
type Kind string

const (
	// KindOpenAI is the OpenAI speech API (MP3 file).
	KindOpenAI Kind = "openai"

	// KindDeepgram is Deepgram Aura (WAV file).
	KindDeepgram Kind = "deepgram"

	// KindElevenLabs is the ElevenLabs streaming API (PCM to a sink).
	KindElevenLabs Kind = "elevenlabs"

	// KindMeloTTS is a locally hosted MeloTTS microservice.
	KindMeloTTS Kind = "melotts"

	// KindPiper is a locally hosted Piper wrapper (WAV file).
	KindPiper Kind = "piper"

	// KindPolly is Amazon Polly (MP3 file).
	KindPolly Kind = "polly"

	// KindLocal is the offline placeholder.
	KindLocal Kind = "local"
)

// Kinds returns every supported Kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindOpenAI, KindDeepgram, KindElevenLabs, KindMeloTTS, KindPiper, KindPolly, KindLocal}
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
	return "", fmt.Errorf("%w: speech/%q; supported: %s", provider.ErrUnsupported, name, strings.Join(s, ", "))
}

// NeedsCredential reports whether the backend requires an API key. Polly
// authenticates through the AWS default credential chain instead.
func (k Kind) NeedsCredential() bool {
	switch k {
	case KindOpenAI, KindDeepgram, KindElevenLabs:
		return true
	}
	return false
}

// Format returns the audio format the backend produces.
func (k Kind) Format() Format {
	switch k {
	case KindOpenAI, KindMeloTTS, KindPolly:
		return FormatMP3
	case KindElevenLabs:
		return FormatPCM
	case KindDeepgram, KindPiper:
		return FormatWAV
	default:
		return FormatWAV
	}
}

// Streams reports whether the backend plays audio through a sink instead of
// writing a file.
func (k Kind) Streams() bool {
	return k == KindElevenLabs
}

// Artifact describes the outcome of a successful synthesis.
type Artifact struct {
	// Path is the file the audio was written to. Empty when Streamed is true.
	Path string

	// Format is the audio container/encoding.
	Format Format

	// Streamed is true when audio went straight to a playback sink.
	Streamed bool
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text to speech. File-producing backends write to
	// outputPath; streaming backends ignore it. The file handle is closed
	// before Synthesize returns.
	Synthesize(ctx context.Context, text, outputPath string) (Artifact, error)
}
