package vitals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
	"github.com/pranaysuyash/caption-art-sub009/internal/source"
)

type fakeSink struct {
	reported []metrics.WebVitalsMetric
	alerts   []string
}

func (f *fakeSink) ReportWebVital(m metrics.WebVitalsMetric) { f.reported = append(f.reported, m) }
func (f *fakeSink) TriggerWebVitalAlert(m metrics.WebVitalsMetric, message string) {
	f.alerts = append(f.alerts, message)
}

func fixedClock() func() time.Time {
	at := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name  metrics.VitalName
		value float64
		want  metrics.Rating
	}{
		{metrics.VitalLCP, 2500, metrics.RatingGood},
		{metrics.VitalLCP, 2501, metrics.RatingNeedsImprovement},
		{metrics.VitalLCP, 4000, metrics.RatingNeedsImprovement},
		{metrics.VitalLCP, 4001, metrics.RatingPoor},
		{metrics.VitalFID, 50, metrics.RatingGood},
		{metrics.VitalFID, 200, metrics.RatingNeedsImprovement},
		{metrics.VitalFID, 400, metrics.RatingPoor},
		{metrics.VitalCLS, 0.05, metrics.RatingGood},
		{metrics.VitalCLS, 0.2, metrics.RatingNeedsImprovement},
		{metrics.VitalCLS, 0.3, metrics.RatingPoor},
	}
	tracker := NewTracker(nil, fixedClock())
	for _, tc := range tests {
		m := tracker.Record(tc.name, tc.value)
		assert.Equal(t, tc.want, m.Rating, "%s=%v", tc.name, tc.value)
	}
}

func TestLatestOverwritesButAllReported(t *testing.T) {
	sink := &fakeSink{}
	tracker := NewTracker(sink, fixedClock())

	tracker.Record(metrics.VitalLCP, 1000)
	tracker.Record(metrics.VitalLCP, 3000)

	m, ok := tracker.Metric(metrics.VitalLCP)
	require.True(t, ok)
	assert.Equal(t, 3000.0, m.Value)
	assert.Len(t, tracker.Metrics(), 1)
	// audit trail lives in the sink, not the tracker
	assert.Len(t, sink.reported, 2)
}

func TestPoorRatingTriggersAlert(t *testing.T) {
	sink := &fakeSink{}
	tracker := NewTracker(sink, fixedClock())

	tracker.Record(metrics.VitalLCP, 3000)
	assert.Empty(t, sink.alerts)

	tracker.Record(metrics.VitalLCP, 5000)
	require.Len(t, sink.alerts, 1)
	assert.Contains(t, sink.alerts[0], "LCP")
}

func TestHandleEventIgnoresUnknownVitals(t *testing.T) {
	sink := &fakeSink{}
	tracker := NewTracker(sink, fixedClock())

	tracker.HandleEvent(source.VitalEvent{Name: "TTFB", Value: 100})
	assert.Empty(t, sink.reported)

	tracker.HandleEvent(source.VitalEvent{Name: "CLS", Value: 0.3})
	require.Len(t, sink.reported, 1)
	assert.Equal(t, metrics.RatingPoor, sink.reported[0].Rating)
}
