// Package tracing wires the OpenTelemetry tracer provider used for
// collaborator call spans.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dd0wney/crclink/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ServiceName is reported on every span
const ServiceName = "crclink"

// Config governs how tracing is initialised
type Config struct {
	Enabled bool
	// File receives spans as JSON lines; empty means stderr
	File        string
	SampleRatio float64
}

// ShutdownFunc flushes pending spans and releases the exporter
type ShutdownFunc func(context.Context) error

// Init installs a global tracer provider according to cfg. The returned
// function must be called before exit to flush spans.
func Init(ctx context.Context, cfg Config, log logging.Logger) (ShutdownFunc, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Debug("tracing disabled; using noop tracer provider")
		return func(context.Context) error { return nil }, nil
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer
	)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		w, closer = f, f
	}

	tp, err := NewProvider(ctx, w, cfg.SampleRatio)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	log.Info("tracing enabled",
		logging.String("file", cfg.File),
		logging.Float64("sample_ratio", ratio(cfg.SampleRatio)),
	)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if closer != nil {
			if cerr := closer.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}, nil
}

// NewProvider builds a tracer provider exporting to w without installing it
func NewProvider(ctx context.Context, w io.Writer, sampleRatio float64) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			attribute.String("service.name", ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio(sampleRatio)))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	), nil
}

// ratio treats an unset ratio as "sample everything"
func ratio(r float64) float64 {
	if r <= 0 || r > 1 {
		return 1
	}
	return r
}

// ShutdownWithTimeout invokes shutdown with a bounded timeout, logging
// rather than returning failures.
func ShutdownWithTimeout(ctx context.Context, shutdown ShutdownFunc, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn("tracing shutdown failed", logging.Error(err))
	}
}
