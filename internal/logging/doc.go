// Package logging builds the zap logger used across linkrank.
//
// Console output is JSON on stderr by default, since stdout carries MCP
// frames and ranking results. When telemetry is enabled the same entries
// are bridged to the OTEL log pipeline through otelzap.
//
// Context methods add correlation fields:
//
//	ctx = logging.WithAnalysis(ctx, tok.ID(), pageURL)
//	ctx = logging.WithBatch(ctx, 1)
//	logger.Info(ctx, "Batch finished", zap.Duration("duration", d))
//
// produces trace_id, span_id, analysis.request_id, analysis.url and
// analysis.batch alongside the entry's own fields.
//
// Entries below error level are sampled per message. Values of sensitive
// keys and substrings that look like credentials (bearer tokens, API keys,
// token query parameters on page URLs) are masked before encoding.
package logging
