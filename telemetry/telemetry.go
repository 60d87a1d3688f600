// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package telemetry installs the OpenTelemetry SDK around an [app.Runtime].
//
// The router, breaker and openapi packages only talk to the global OTel
// providers. Without this package every span, metric and log record they
// produce is dropped.
//
// Environment Variables:
//   - OTEL_SERVICE_NAME: service name resource attribute
//   - OTEL_SERVICE_VERSION: service version resource attribute
//   - OTEL_EXPORTER_OTLP_ENDPOINT: collector address, telemetry is disabled when unset
//   - OTEL_EXPORTER_OTLP_PROTOCOL: grpc (default) or http/protobuf
//   - OTEL_EXPORTER_OTLP_INSECURE: disable TLS for the http protocol
//   - OTEL_TRACES_SAMPLER_ARG: trace id ratio between 0.0 and 1.0
//   - OTEL_METRIC_EXPORT_INTERVAL: metric export interval
//   - OTEL_BSP_SCHEDULE_DELAY: span and log batch export interval
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/z5labs/apiguard/app"
	"github.com/z5labs/apiguard/concurrent"
	"github.com/z5labs/apiguard/config"

	"github.com/z5labs/sdk-go/try"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.38.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Supported values of [Config.Protocol].
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// UnknownProtocolError is returned for an unsupported OTLP protocol.
type UnknownProtocolError struct {
	Protocol string
}

// Error implements the [error] interface.
func (e UnknownProtocolError) Error() string {
	return fmt.Sprintf("unknown otlp protocol: %q", e.Protocol)
}

// Config describes where and how telemetry is exported.
type Config struct {
	ServiceName    config.Reader[string]
	ServiceVersion config.Reader[string]

	Endpoint config.Reader[string]
	Protocol config.Reader[string]
	Insecure config.Reader[bool]

	SampleRatio           config.Reader[float64]
	MetricExportInterval  config.Reader[time.Duration]
	BatchExportInterval   config.Reader[time.Duration]
	DisableRuntimeMetrics config.Reader[bool]
}

// ConfigFromEnv reads [Config] from the standard OTEL_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		ServiceName:          config.Env("OTEL_SERVICE_NAME"),
		ServiceVersion:       config.Env("OTEL_SERVICE_VERSION"),
		Endpoint:             config.Env("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Protocol:             config.Env("OTEL_EXPORTER_OTLP_PROTOCOL"),
		Insecure:             config.BoolFromString(config.Env("OTEL_EXPORTER_OTLP_INSECURE")),
		SampleRatio:          config.Float64FromString(config.Env("OTEL_TRACES_SAMPLER_ARG")),
		MetricExportInterval: config.DurationFromString(config.Env("OTEL_METRIC_EXPORT_INTERVAL")),
		BatchExportInterval:  config.DurationFromString(config.Env("OTEL_BSP_SCHEDULE_DELAY")),
	}
}

// Runtime registers the SDK providers globally for the lifetime of an inner
// [app.Runtime] and flushes them once it returns.
type Runtime struct {
	inner     app.Runtime
	shutdowns []func(context.Context) error
}

// Build wraps builder so the OTel SDK is installed before the inner runtime
// is built. Without an endpoint only the propagator is installed.
func Build[T app.Runtime](cfg Config, builder app.Builder[T]) app.Builder[Runtime] {
	return app.BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.Baggage{},
			propagation.TraceContext{},
		))

		var shutdowns []func(context.Context) error
		endpoint := config.MustOr(ctx, "", cfg.Endpoint)
		if endpoint != "" {
			var err error
			shutdowns, err = install(ctx, cfg, endpoint)
			if err != nil {
				return Runtime{}, err
			}
		}

		inner, err := builder.Build(ctx)
		if err != nil {
			return Runtime{}, errors.Join(err, shutdown(shutdowns))
		}

		return Runtime{
			inner:     inner,
			shutdowns: shutdowns,
		}, nil
	})
}

// Run implements the [app.Runtime] interface.
//
// Providers are shut down even when the inner runtime fails.
func (rt Runtime) Run(ctx context.Context) (err error) {
	defer try.Close(&err, closerFunc(func() error {
		return shutdown(rt.shutdowns)
	}))

	return rt.inner.Run(ctx)
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

func shutdown(fs []func(context.Context) error) error {
	var errs error
	for i := len(fs) - 1; i >= 0; i-- {
		errs = errors.Join(errs, fs[i](context.Background()))
	}
	return errs
}

func install(ctx context.Context, cfg Config, endpoint string) ([]func(context.Context) error, error) {
	rsc, err := resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(config.MustOr(ctx, "apiguard", cfg.ServiceName)),
			semconv.ServiceVersion(config.MustOr(ctx, "", cfg.ServiceVersion)),
		),
	)
	if err != nil {
		return nil, err
	}

	exp, err := newExporters(ctx, cfg, endpoint)
	if err != nil {
		return nil, err
	}

	batchInterval := config.MustOr(ctx, 5*time.Second, cfg.BatchExportInterval)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(rsc),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(config.MustOr(ctx, 1.0, cfg.SampleRatio)),
		)),
		sdktrace.WithBatcher(exp.span, sdktrace.WithBatchTimeout(batchInterval)),
	)
	otel.SetTracerProvider(tp)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(rsc),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
			exp.metric,
			sdkmetric.WithInterval(config.MustOr(ctx, 10*time.Second, cfg.MetricExportInterval)),
		)),
	)
	otel.SetMeterProvider(mp)

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(rsc),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp.log, sdklog.WithExportInterval(batchInterval))),
	)
	global.SetLoggerProvider(lp)

	shutdowns := []func(context.Context) error{
		tp.Shutdown,
		mp.Shutdown,
		lp.Shutdown,
	}

	if !config.MustOr(ctx, false, cfg.DisableRuntimeMetrics) {
		err = runtime.Start(
			runtime.WithMeterProvider(mp),
			runtime.WithMinimumReadMemStatsInterval(time.Second),
		)
		if err != nil {
			return nil, errors.Join(err, shutdown(shutdowns))
		}
	}
	return shutdowns, nil
}

type exporters struct {
	span   sdktrace.SpanExporter
	metric sdkmetric.Exporter
	log    sdklog.Exporter
}

func newExporters(ctx context.Context, cfg Config, endpoint string) (exporters, error) {
	protocol := config.MustOr(ctx, ProtocolGRPC, cfg.Protocol)
	switch protocol {
	case ProtocolGRPC:
		return newGrpcExporters(ctx, endpoint)
	case ProtocolHTTP:
		return newHttpExporters(ctx, endpoint, config.MustOr(ctx, false, cfg.Insecure))
	default:
		return exporters{}, UnknownProtocolError{Protocol: protocol}
	}
}

var conns = concurrent.NewCache[string, *grpc.ClientConn]()

func newGrpcExporters(ctx context.Context, endpoint string) (exporters, error) {
	cc, err := conns.GetOr(endpoint, func() (*grpc.ClientConn, error) {
		return grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	})
	if err != nil {
		return exporters{}, err
	}

	span, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(cc))
	if err != nil {
		return exporters{}, err
	}
	metric, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(cc))
	if err != nil {
		return exporters{}, err
	}
	log, err := otlploggrpc.New(ctx, otlploggrpc.WithGRPCConn(cc))
	if err != nil {
		return exporters{}, err
	}

	return exporters{
		span:   span,
		metric: metric,
		log:    log,
	}, nil
}

func newHttpExporters(ctx context.Context, endpoint string, plaintext bool) (exporters, error) {
	traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	logOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(endpoint)}
	if plaintext {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		logOpts = append(logOpts, otlploghttp.WithInsecure())
	}

	span, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return exporters{}, err
	}
	metric, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return exporters{}, err
	}
	log, err := otlploghttp.New(ctx, logOpts...)
	if err != nil {
		return exporters{}, err
	}

	return exporters{
		span:   span,
		metric: metric,
		log:    log,
	}, nil
}
