package mcp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fyrsmithlabs/linkrank/internal/analysis"
)

const instrumentationName = "github.com/fyrsmithlabs/linkrank/internal/mcp"

var (
	errInvalidInput = errors.New("invalid input")
	errSuperseded   = errors.New("request superseded by a newer analysis")
)

// toolMetrics counts tool calls, their latency and failures.
type toolMetrics struct {
	calls    metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
	inflight metric.Int64UpDownCounter
}

// newToolMetrics registers the instruments on meter. Instruments that fail
// to register are left nil and skipped; the joined error reports them.
func newToolMetrics(meter metric.Meter) (*toolMetrics, error) {
	var m toolMetrics
	var errs [4]error
	m.calls, errs[0] = meter.Int64Counter("linkrank.mcp.tool.calls",
		metric.WithDescription("MCP tool calls by tool"),
		metric.WithUnit("{call}"))
	m.failures, errs[1] = meter.Int64Counter("linkrank.mcp.tool.failures",
		metric.WithDescription("MCP tool calls that returned an error, by tool and reason"),
		metric.WithUnit("{call}"))
	m.duration, errs[2] = meter.Float64Histogram("linkrank.mcp.tool.duration",
		metric.WithDescription("MCP tool call latency; rank_links includes the full ranking"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60))
	m.inflight, errs[3] = meter.Int64UpDownCounter("linkrank.mcp.tool.inflight",
		metric.WithDescription("MCP tool calls in progress"),
		metric.WithUnit("{call}"))
	return &m, errors.Join(errs[:]...)
}

// start records a call of tool and returns the function that completes it.
func (m *toolMetrics) start(ctx context.Context, tool string) func(err error) {
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	if m.inflight != nil {
		m.inflight.Add(ctx, 1, attrs)
	}
	begin := time.Now()
	return func(err error) {
		if m.inflight != nil {
			m.inflight.Add(ctx, -1, attrs)
		}
		if m.calls != nil {
			m.calls.Add(ctx, 1, attrs)
		}
		if m.duration != nil {
			m.duration.Record(ctx, time.Since(begin).Seconds(), attrs)
		}
		if err != nil && m.failures != nil {
			m.failures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool", tool),
				attribute.String("reason", failureReason(err)),
			))
		}
	}
}

// failureReason buckets tool errors for the failures counter.
func failureReason(err error) string {
	switch {
	case errors.Is(err, errInvalidInput):
		return "invalid_input"
	case errors.Is(err, errSuperseded):
		return "superseded"
	case errors.Is(err, analysis.ErrClosed):
		return "closed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
