package dispatch

import (
	"errors"

	"github.com/MrWong99/verbi/pkg/liveness"
)

// Apology is the reply substituted for any response generation failure.
const Apology = "I'm sorry, I couldn't generate a response at the moment."

var (
	// ErrConfiguration wraps every failure to build a provider: an
	// unsupported name, a missing credential or a missing collaborator.
	// It is always returned before any network I/O.
	ErrConfiguration = errors.New("dispatch: configuration error")

	// ErrTranscription wraps every failure returned by [Transcriber.Transcribe].
	ErrTranscription = errors.New("dispatch: transcription failed")

	// ErrResponseGeneration marks a response failure. It never leaves
	// [Responder.Reply]; it only appears in logs and spans.
	ErrResponseGeneration = errors.New("dispatch: response generation failed")

	// ErrEmptyReply marks a provider answer with no visible text.
	ErrEmptyReply = errors.New("dispatch: empty reply")

	// ErrSynthesis marks a speech synthesis failure. [Synthesizer.Synthesize]
	// logs it and reports false.
	ErrSynthesis = errors.New("dispatch: speech synthesis failed")

	// ErrServiceUnavailable is wrapped, together with [ErrTranscription], when
	// a locally hosted transcription service fails its liveness probe.
	ErrServiceUnavailable = liveness.ErrUnavailable
)
