package http

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fyrsmithlabs/linkrank/internal/http"

// routeMetrics records per-route request counts, latency and in-flight
// requests. The stream route's latency is the lifetime of the SSE
// connection.
type routeMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inflight metric.Int64UpDownCounter
}

func newRouteMetrics(meter metric.Meter) (*routeMetrics, error) {
	var m routeMetrics
	var errs [3]error
	m.requests, errs[0] = meter.Int64Counter("linkrank.http.requests",
		metric.WithDescription("HTTP requests by method, route and status"),
		metric.WithUnit("{request}"))
	m.duration, errs[1] = meter.Float64Histogram("linkrank.http.duration",
		metric.WithDescription("HTTP request latency by method, route and status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60))
	m.inflight, errs[2] = meter.Int64UpDownCounter("linkrank.http.inflight",
		metric.WithDescription("HTTP requests in progress"),
		metric.WithUnit("{request}"))
	return &m, errors.Join(errs[:]...)
}

// middleware records every request. Unmatched requests share the route
// "unmatched" so stray paths do not create new series.
func (m *routeMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if m.inflight != nil {
				m.inflight.Add(ctx, 1)
				defer m.inflight.Add(ctx, -1)
			}
			begin := time.Now()
			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if err != nil && errors.As(err, &he) {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			attrs := metric.WithAttributes(
				attribute.String("http.request.method", c.Request().Method),
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", status),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(begin).Seconds(), attrs)
			}
			return err
		}
	}
}
