// Package provider holds what the per-role provider packages (stt, llm, tts)
// have in common.
package provider

import "errors"

// ErrUnsupported is returned when a provider name is not part of a role's
// allow-list. It marks a configuration error: it is raised before any network
// I/O and is never retried.
var ErrUnsupported = errors.New("unsupported provider")
