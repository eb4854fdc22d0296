package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInit_DisabledInstallsNothing(t *testing.T) {
	before := otel.GetMeterProvider()

	shutdown, err := Init(context.Background(), false, "skilltrack", "test", time.Second)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetMeterProvider())
}

func TestNew_RecordsOnProvidedMeter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m := New(mp.Meter(instrumentationScope))
	m.CompetenciesUpdated.Add(context.Background(), 2)
	m.RunDuration.Record(context.Background(), 12)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		names[md.Name] = true
		if md.Name == "skilltrack.competency.updated" {
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(2), sum.DataPoints[0].Value)
		}
	}
	assert.True(t, names["skilltrack.competency.updated"])
	assert.True(t, names["skilltrack.exam.run.duration"])
}

// brokenMeter fails every instrument creation.
type brokenMeter struct {
	noop.Meter
}

func (brokenMeter) Int64Counter(string, ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return nil, errors.New("no counters")
}

func (brokenMeter) Float64Histogram(string, ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	return nil, errors.New("no histograms")
}

func TestNew_FallsBackToNoop(t *testing.T) {
	m := New(brokenMeter{})
	require.NotNil(t, m.SkillsVerified)
	require.NotNil(t, m.RunDuration)
	assert.NotPanics(t, func() {
		m.SkillsVerified.Add(context.Background(), 1)
		m.RunDuration.Record(context.Background(), 1)
	})
}

func TestNoop(t *testing.T) {
	m := Noop()
	assert.NotPanics(t, func() {
		m.WriteFailures.Add(context.Background(), 1)
		m.SyncFailures.Add(context.Background(), 1)
	})
}
