// Package telemetry wires OpenTelemetry tracing for the storefront server
// and its calls to the product backend.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Options struct {
	Service string
	Env     string
	// Stdout enables the stdout span exporter. Without it spans are
	// sampled but not exported.
	Stdout bool
	// Writer overrides the exporter's destination (stdout by default).
	Writer io.Writer
}

// Init installs a global tracer provider and propagator. The returned
// function flushes and stops the provider.
func Init(opts Options) (func(context.Context) error, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", opts.Service),
		attribute.String("deployment.environment", opts.Env),
	)
	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if opts.Stdout {
		w := opts.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// HTTPClient returns a client whose requests carry trace context.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Middleware creates a server span per request. Paths in skip are not traced.
func Middleware(service string, skip ...string) func(http.Handler) http.Handler {
	excluded := make(map[string]bool, len(skip))
	for _, p := range skip {
		excluded[p] = true
	}
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, service,
			otelhttp.WithFilter(func(r *http.Request) bool { return !excluded[r.URL.Path] }),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
}
