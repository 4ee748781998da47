package dispatch

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/verbi/internal/config"
	"github.com/MrWong99/verbi/pkg/provider/llm"
	"github.com/MrWong99/verbi/pkg/transcript"
)

// Responder generates the assistant's reply from the conversation so far.
// It never fails: any provider error, panic or blank reply is logged,
// counted and replaced with [Apology].
type Responder struct {
	provider llm.Provider
	kind     llm.Kind
	s        settings
}

// NewResponder wraps p, which was built for kind.
func NewResponder(p llm.Provider, kind llm.Kind, opts ...Option) *Responder {
	return &Responder{provider: p, kind: kind, s: newSettings(opts)}
}

// Close closes the provider when it holds a connection.
func (r *Responder) Close() error { return closeProvider(r.provider) }

// Kind returns the selected provider.
func (r *Responder) Kind() llm.Kind { return r.kind }

// Reply returns the provider's reply to turns, or [Apology]. The provider
// receives a copy of turns.
func (r *Responder) Reply(ctx context.Context, turns []transcript.Turn) (reply string) {
	var err error
	ctx, c := r.s.begin(ctx, config.RoleResponse, string(r.kind))
	defer func() {
		c.end(ctx, r.s.metrics.ResponseDuration, err)
		if err != nil {
			r.s.metrics.RecordResponseFallback(ctx, string(r.kind))
			reply = Apology
		}
	}()

	callCtx, cancel := r.s.bound(ctx)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %s: panic: %v", ErrResponseGeneration, r.kind, p)
		}
	}()

	reply, err = r.provider.Complete(callCtx, slices.Clone(turns))
	switch {
	case err != nil:
		err = fmt.Errorf("%w: %s: %w", ErrResponseGeneration, r.kind, err)
	case strings.TrimSpace(reply) == "":
		err = fmt.Errorf("%w: %s: %w", ErrResponseGeneration, r.kind, ErrEmptyReply)
	}
	return reply
}
