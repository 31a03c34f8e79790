// Package telemetry provides OpenTelemetry instrumentation for linkrank.
//
// It owns the TracerProvider and MeterProvider, exports over OTLP (gRPC or
// HTTP) and installs W3C trace-context propagation. Ranking spans
// (analysis.run, orchestrator.rank, orchestrator.batch) and the HTTP and MCP
// meters are recorded against the global providers this package sets.
//
// # Usage
//
//	cfg := telemetry.NewDefaultConfig()
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(ctx)
//
//	tracer := tel.Tracer("github.com/fyrsmithlabs/linkrank/internal/orchestrator")
//	ctx, span := tracer.Start(ctx, "orchestrator.rank")
//	defer span.End()
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc            # or http/protobuf
//	  service_name: "linkrank"
//	  attributes:
//	    deployment.environment: dev
//	  sampling:
//	    rate: 1.0
//	  metrics:
//	    enabled: true
//	    export_interval: "15s"
//
// # Error Handling
//
// Telemetry failures do not stop ranking. If a provider cannot be created
// the instance is marked degraded and the global no-op providers stay in
// place.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	tracer := tt.Tracer("test")
//	_, span := tracer.Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
package telemetry
