// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify which transcript a caller sends and to
// feed controlled replies without a live backend. All fields are safe to set
// before calling any method; mutating them during a concurrent call is the
// caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{Reply: "Hello!"}
//	text, err := p.Complete(ctx, turns)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/verbi/pkg/provider/llm"
	"github.com/MrWong99/verbi/pkg/transcript"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Turns is a copy of the transcript passed to Complete.
	Turns []transcript.Turn
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Reply is returned by Complete when Err is nil.
	Reply string

	// Err, if non-nil, is returned as the error from Complete.
	Err error

	// Panic, if non-nil, is passed to panic() inside Complete.
	Panic any

	// Calls records every invocation of Complete in order.
	Calls []CompleteCall
}

// Complete records the call and returns Reply, Err.
func (p *Provider) Complete(ctx context.Context, turns []transcript.Turn) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]transcript.Turn, len(turns))
	copy(cp, turns)
	p.Calls = append(p.Calls, CompleteCall{Ctx: ctx, Turns: cp})
	if p.Panic != nil {
		panic(p.Panic)
	}
	if p.Err != nil {
		return "", p.Err
	}
	return p.Reply, nil
}

// CallCount returns the number of recorded Complete calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
