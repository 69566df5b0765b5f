// Package telemetry wires OpenTelemetry metrics and traces for the language
// server.
//
// Traces are exported as JSON to a writer (stderr by default, since stdout
// carries the protocol). Metrics are kept in a manual reader and can be
// collected on demand. With both disabled every instrument is a no-op.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/tsumiki/tsumiki-ls/lsp"

// Config controls which signals are recorded.
type Config struct {
	ServiceName   string
	EnableMetrics bool
	EnableTraces  bool
	// TraceWriter receives exported spans; nil means os.Stderr.
	TraceWriter io.Writer
}

// Provider owns the SDK providers and the instruments derived from them.
type Provider struct {
	cfg            Config
	reader         *sdkmetric.ManualReader
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	instruments    *Instruments

	shutdownOnce sync.Once
}

// Setup builds the providers selected by cfg. The providers are not
// installed globally.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "tsumiki-ls"
	}
	p := &Provider{cfg: cfg}

	var (
		meter  metric.Meter = metricnoop.NewMeterProvider().Meter(instrumentationName)
		tracer trace.Tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	)

	if cfg.EnableMetrics || cfg.EnableTraces {
		res, err := resource.Merge(
			resource.Default(),
			resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName)),
		)
		if err != nil {
			return nil, fmt.Errorf("build resource: %w", err)
		}

		if cfg.EnableMetrics {
			p.reader = sdkmetric.NewManualReader()
			p.meterProvider = sdkmetric.NewMeterProvider(
				sdkmetric.WithReader(p.reader),
				sdkmetric.WithResource(res),
			)
			meter = p.meterProvider.Meter(instrumentationName)
		}

		if cfg.EnableTraces {
			w := cfg.TraceWriter
			if w == nil {
				w = os.Stderr
			}
			exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
			if err != nil {
				return nil, fmt.Errorf("init trace exporter: %w", err)
			}
			p.tracerProvider = sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(exp, sdktrace.WithMaxExportBatchSize(64)),
				sdktrace.WithResource(res),
			)
			tracer = p.tracerProvider.Tracer(instrumentationName)
		}
	}

	inst, err := newInstruments(meter, tracer)
	if err != nil {
		return nil, err
	}
	p.instruments = inst
	return p, nil
}

// Instruments returns the message instruments; never nil for a Provider
// returned by Setup.
func (p *Provider) Instruments() *Instruments {
	if p == nil {
		return nil
	}
	return p.instruments
}

// Collect gathers the current metric values. It fails when metrics are
// disabled.
func (p *Provider) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if p == nil || p.reader == nil {
		return rm, errors.New("metrics are disabled")
	}
	err := p.reader.Collect(ctx, &rm)
	return rm, err
}

// Shutdown flushes pending spans and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var err error
	p.shutdownOnce.Do(func() {
		var errs []error
		if p.meterProvider != nil {
			if shutdownErr := p.meterProvider.Shutdown(ctx); shutdownErr != nil {
				errs = append(errs, shutdownErr)
			}
		}
		if p.tracerProvider != nil {
			if shutdownErr := p.tracerProvider.Shutdown(ctx); shutdownErr != nil {
				errs = append(errs, shutdownErr)
			}
		}
		err = errors.Join(errs...)
	})
	return err
}
