package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is used for every capflow tracer and meter.
const InstrumentationName = "github.com/itsneelabh/capflow"

// Exporter names accepted by Setup.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLP     = "otlp"
	ExporterOTLPHTTP = "otlp-http" // traces and metrics over OTLP/HTTP
)

// Options configure Setup.
type Options struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Exporter is one of the Exporter constants. An empty value picks OTLP
	// when Endpoint is set and none otherwise.
	Exporter string
	Endpoint string
	Insecure bool
	// SamplingRate in [0,1]; values outside the range mean always sample.
	SamplingRate float64
	// Writer receives stdout exporter output; defaults to os.Stdout.
	Writer io.Writer
	// SetGlobal installs the providers as the otel globals.
	SetGlobal bool
}

// Provider owns the providers created by Setup.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	// MeterProvider is only set for ExporterOTLPHTTP.
	MeterProvider *sdkmetric.MeterProvider
	Tracer        trace.Tracer
	Meter         metric.Meter
	exporter      string
}

// Setup builds a tracer provider for opts. Unless the exporter pushes
// metrics, the meter comes from the global meter provider, which is a no-op
// unless the host installs one.
func Setup(ctx context.Context, opts Options) (*Provider, error) {
	if os.Getenv("OTEL_SDK_DISABLED") == "true" {
		opts.Exporter = ExporterNone
	}
	if opts.ServiceName == "" {
		opts.ServiceName = os.Getenv("OTEL_SERVICE_NAME")
		if opts.ServiceName == "" {
			opts.ServiceName = "capflow"
		}
	}
	if opts.Endpoint == "" {
		opts.Endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	exporterName := strings.ToLower(opts.Exporter)
	if exporterName == "" {
		exporterName = ExporterNone
		if opts.Endpoint != "" {
			exporterName = ExporterOTLP
		}
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(opts.ServiceName),
		semconv.ServiceVersionKey.String(valueOr(opts.ServiceVersion, "dev")),
		semconv.DeploymentEnvironmentKey.String(valueOr(opts.Environment, getEnvironment())),
		attribute.String("capflow.exporter", exporterName),
	)

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(opts.SamplingRate)),
	}

	var mp *sdkmetric.MeterProvider
	switch exporterName {
	case ExporterNone:
	case ExporterStdout:
		w := opts.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithSyncer(exp))
	case ExporterOTLP:
		if opts.Endpoint == "" {
			return nil, fmt.Errorf("otlp exporter requires an endpoint")
		}
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
		if opts.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	case ExporterOTLPHTTP:
		if opts.Endpoint == "" {
			return nil, fmt.Errorf("otlp-http exporter requires an endpoint")
		}
		traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
		metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(opts.Endpoint)}
		if opts.Insecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, traceOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP HTTP trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))

		mexp, err := otlpmetrichttp.New(ctx, metricOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP HTTP metric exporter: %w", err)
		}
		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(mexp)),
		)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", opts.Exporter)
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	if opts.SetGlobal {
		otel.SetTracerProvider(tp)
		if mp != nil {
			otel.SetMeterProvider(mp)
		}
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	meter := otel.GetMeterProvider().Meter(InstrumentationName)
	if mp != nil {
		meter = mp.Meter(InstrumentationName)
	}
	return &Provider{
		TracerProvider: tp,
		MeterProvider:  mp,
		Tracer:         tp.Tracer(InstrumentationName),
		Meter:          meter,
		exporter:       exporterName,
	}, nil
}

// Exporter returns the exporter name in use.
func (p *Provider) Exporter() string {
	return p.exporter
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.TracerProvider != nil {
		errs = append(errs, p.TracerProvider.Shutdown(ctx))
	}
	if p.MeterProvider != nil {
		errs = append(errs, p.MeterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func sampler(rate float64) sdktrace.Sampler {
	if rate > 0 && rate < 1 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
	if rate == 0 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.AlwaysSample()
}

// getEnvironment gets the deployment environment
func getEnvironment() string {
	if env := os.Getenv("DEPLOYMENT_ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
