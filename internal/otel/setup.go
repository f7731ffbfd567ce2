package otel

import (
	"context"
	"errors"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

type Options struct {
	ServiceName string
	Environment string
	// Export to the collector named by the OTEL_EXPORTER_OTLP_* variables
	// instead of stdout
	UseOTLP bool
	// Share of new root traces that are recorded, values outside (0, 1) keep all
	SampleRatio float64
	// Target of the stdout exporters, os.Stdout when nil
	Writer io.Writer
}

func (o Options) sampler() trace.Sampler {
	if o.SampleRatio <= 0 || o.SampleRatio >= 1 {
		return trace.AlwaysSample()
	}
	return trace.ParentBased(trace.TraceIDRatioBased(o.SampleRatio))
}

func (o Options) writer() io.Writer {
	if o.Writer == nil {
		return os.Stdout
	}
	return o.Writer
}

// Installs global trace, metric and log providers plus the W3C propagators.
// The returned shutdown flushes and stops every provider that was started, it
// is safe to call after a failed Setup.
func Setup(ctx context.Context, opts Options) (func(context.Context) error, error) {
	var stops []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var err error
		for i := len(stops) - 1; i >= 0; i-- {
			err = errors.Join(err, stops[i](ctx))
		}
		stops = nil
		return err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("deployment.environment", opts.Environment),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	spanExporter, err := pick(opts.UseOTLP,
		func() (trace.SpanExporter, error) { return otlptracegrpc.New(ctx) },
		func() (trace.SpanExporter, error) { return stdouttrace.New(stdouttrace.WithWriter(opts.writer())) },
	)
	if err != nil {
		return shutdown, errors.Join(err, shutdown(ctx))
	}
	tracerProvider := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSampler(opts.sampler()),
		trace.WithBatcher(spanExporter),
	)
	stops = append(stops, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := pick(opts.UseOTLP,
		func() (metric.Exporter, error) { return otlpmetricgrpc.New(ctx) },
		func() (metric.Exporter, error) { return stdoutmetric.New(stdoutmetric.WithWriter(opts.writer())) },
	)
	if err != nil {
		return shutdown, errors.Join(err, shutdown(ctx))
	}
	meterProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExporter)),
	)
	stops = append(stops, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	logExporter, err := pick(opts.UseOTLP,
		func() (log.Exporter, error) { return otlploggrpc.New(ctx) },
		func() (log.Exporter, error) { return stdoutlog.New(stdoutlog.WithWriter(opts.writer())) },
	)
	if err != nil {
		return shutdown, errors.Join(err, shutdown(ctx))
	}
	loggerProvider := log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(logExporter)),
	)
	stops = append(stops, loggerProvider.Shutdown)
	global.SetLoggerProvider(loggerProvider)

	return shutdown, nil
}

func pick[T any](useOTLP bool, otlp func() (T, error), stdout func() (T, error)) (T, error) {
	if useOTLP {
		return otlp()
	}
	return stdout()
}
