package logging

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxURLLen = 512

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

type ctxKey int

const (
	analysisKey ctxKey = iota
	batchKey
	requestIDKey
)

// Analysis identifies the ranking request a log line belongs to.
type Analysis struct {
	RequestID uint64
	URL       string
}

// WithAnalysis tags ctx with the analysis token id and page URL. The URL is
// cut to 512 bytes.
func WithAnalysis(ctx context.Context, requestID uint64, url string) context.Context {
	if !utf8.ValidString(url) {
		url = strings.ToValidUTF8(url, "�")
	}
	if len(url) > maxURLLen {
		url = url[:maxURLLen]
	}
	return context.WithValue(ctx, analysisKey, Analysis{RequestID: requestID, URL: url})
}

// AnalysisFromContext returns the analysis set by WithAnalysis.
func AnalysisFromContext(ctx context.Context) (Analysis, bool) {
	a, ok := ctx.Value(analysisKey).(Analysis)
	return a, ok
}

// WithBatch tags ctx with a zero-based batch index. Negative indexes are
// ignored.
func WithBatch(ctx context.Context, batch int) context.Context {
	if batch < 0 {
		return ctx
	}
	return context.WithValue(ctx, batchKey, batch)
}

// WithRequestID tags ctx with a transport request id such as X-Request-Id.
// Client-supplied ids that are not short alphanumeric tokens are dropped.
func WithRequestID(ctx context.Context, id string) context.Context {
	if !requestIDPattern.MatchString(id) {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// ContextFields returns the correlation fields carried by ctx: trace and
// span ids, the analysis, the batch and the request id.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if a, ok := AnalysisFromContext(ctx); ok {
		fields = append(fields,
			zap.Uint64("analysis.request_id", a.RequestID),
			zap.String("analysis.url", a.URL),
		)
	}
	if b, ok := ctx.Value(batchKey).(int); ok {
		fields = append(fields, zap.Int("analysis.batch", b))
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		fields = append(fields, zap.String("request.id", id))
	}
	return fields
}
