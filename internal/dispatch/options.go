package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/verbi/internal/observe"
)

// Option configures a [Transcriber], [Responder] or [Synthesizer].
type Option func(*settings)

type settings struct {
	metrics *observe.Metrics
	logger  *slog.Logger
	timeout time.Duration
}

// WithMetrics records calls on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *settings) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger logs through l instead of the trace-aware default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithTimeout bounds every provider call. Zero means no extra deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func newSettings(opts []Option) settings {
	var s settings
	for _, o := range opts {
		o(&s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

func (s settings) log(ctx context.Context) *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return observe.Logger(ctx)
}

func (s settings) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}
