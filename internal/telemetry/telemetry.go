// Package telemetry provides OpenTelemetry metrics for the exam pipeline.
//
// Metrics are recorded against the global meter provider, which is a no-op
// until Init installs an SDK provider. With SKILLTRACK_TELEMETRY_ENABLED
// unset nothing is exported.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const instrumentationScope = "github.com/abhisek/skilltrack"

// Init installs a metric provider exporting to stdout every interval and
// returns its shutdown function. When enabled is false it installs nothing
// and the returned function is a no-op.
func Init(ctx context.Context, enabled bool, serviceName, version string, interval time.Duration) (func(context.Context) error, error) {
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	exp, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: stdout exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// Metrics holds the pipeline instruments.
type Metrics struct {
	SkillsVerified      metric.Int64Counter
	EntriesSkipped      metric.Int64Counter
	CompetenciesUpdated metric.Int64Counter
	AncestorsUpdated    metric.Int64Counter
	WriteFailures       metric.Int64Counter
	SyncFailures        metric.Int64Counter
	RunDuration         metric.Float64Histogram
}

// New creates the instruments from meter. Instrument creation errors fall
// back to no-op instruments.
func New(meter metric.Meter) *Metrics {
	fallback := noop.NewMeterProvider().Meter(instrumentationScope)
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}

	dur, err := meter.Float64Histogram("skilltrack.exam.run.duration",
		metric.WithDescription("Exam processing run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		dur, _ = fallback.Float64Histogram("skilltrack.exam.run.duration")
	}

	return &Metrics{
		SkillsVerified:      counter("skilltrack.exam.skills_verified", "Normalized verified skills accepted from exam payloads"),
		EntriesSkipped:      counter("skilltrack.exam.entries_skipped", "Exam entries discarded during normalization"),
		CompetenciesUpdated: counter("skilltrack.competency.updated", "Competency rows written by direct skill processing"),
		AncestorsUpdated:    counter("skilltrack.competency.propagated", "Ancestor competency rows rewritten by propagation"),
		WriteFailures:       counter("skilltrack.competency.write_failures", "Competency writes that failed"),
		SyncFailures:        counter("skilltrack.sync.failures", "Best-effort outbound sends that failed"),
		RunDuration:         dur,
	}
}

// Default creates instruments from the global meter provider.
func Default() *Metrics {
	return New(otel.Meter(instrumentationScope))
}

// Noop returns instruments that record nothing.
func Noop() *Metrics {
	return New(noop.NewMeterProvider().Meter(instrumentationScope))
}
