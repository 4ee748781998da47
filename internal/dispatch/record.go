package dispatch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/verbi/internal/config"
	"github.com/MrWong99/verbi/internal/observe"
)

// call tracks one provider invocation for logging, metrics and tracing.
type call struct {
	s        settings
	role     config.Role
	provider string
	start    time.Time
	span     trace.Span
}

func (s settings) begin(ctx context.Context, role config.Role, provider string) (context.Context, *call) {
	ctx, span := observe.StartProviderSpan(ctx, string(role), provider)
	return ctx, &call{s: s, role: role, provider: provider, start: time.Now(), span: span}
}

// end records the outcome of c and ends its span. err is the error as the
// caller will see or log it.
func (c *call) end(ctx context.Context, hist metric.Float64Histogram, err error) {
	defer observe.EndSpan(c.span, err)

	elapsed := time.Since(c.start)
	hist.Record(ctx, elapsed.Seconds(), metric.WithAttributes(observe.Attr(observe.AttrProvider, c.provider)))

	if err == nil {
		c.s.metrics.RecordProviderRequest(ctx, c.provider, string(c.role), observe.StatusOK)
		c.s.log(ctx).Debug("provider call succeeded",
			observe.AttrRole, c.role,
			observe.AttrProvider, c.provider,
			"duration", elapsed,
		)
		return
	}
	c.s.metrics.RecordProviderRequest(ctx, c.provider, string(c.role), observe.StatusError)
	c.s.metrics.RecordProviderError(ctx, c.provider, string(c.role))
	c.s.log(ctx).Error("provider call failed",
		observe.AttrRole, c.role,
		observe.AttrProvider, c.provider,
		"duration", elapsed,
		"err", err,
	)
}
