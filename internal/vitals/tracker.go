// Package vitals tracks Core Web Vitals observations and classifies them
// against configurable good/poor thresholds.
package vitals

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
	"github.com/pranaysuyash/caption-art-sub009/internal/source"
)

// Sink receives every observation plus an alert for poor ratings.
type Sink interface {
	ReportWebVital(m metrics.WebVitalsMetric)
	TriggerWebVitalAlert(m metrics.WebVitalsMetric, message string)
}

// Thresholds holds the good/poor boundary per vital.
// value <= Good is "good", value <= Poor is "needs-improvement", else "poor".
type Thresholds struct {
	Good float64
	Poor float64
}

// DefaultThresholds are the standard Core Web Vitals boundaries.
func DefaultThresholds() map[metrics.VitalName]Thresholds {
	return map[metrics.VitalName]Thresholds{
		metrics.VitalLCP: {Good: 2500, Poor: 4000},
		metrics.VitalFID: {Good: 100, Poor: 300},
		metrics.VitalCLS: {Good: 0.1, Poor: 0.25},
	}
}

// Tracker retains the latest classified value per vital. Every observation is
// still forwarded to the sink, so the delivery queue keeps the full audit trail.
type Tracker struct {
	mu         sync.RWMutex
	thresholds map[metrics.VitalName]Thresholds
	latest     map[metrics.VitalName]metrics.WebVitalsMetric
	sink       Sink
	now        func() time.Time
}

// NewTracker creates a tracker with default thresholds. A nil sink disables
// forwarding; a nil clock uses time.Now.
func NewTracker(sink Sink, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		thresholds: DefaultThresholds(),
		latest:     make(map[metrics.VitalName]metrics.WebVitalsMetric),
		sink:       sink,
		now:        now,
	}
}

// SetThresholds replaces the boundaries for one vital.
func (t *Tracker) SetThresholds(name metrics.VitalName, th Thresholds) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.thresholds[name] = th
}

// Record classifies and stores an observation, overwriting any earlier value
// for the same vital, and forwards it to the sink.
func (t *Tracker) Record(name metrics.VitalName, value float64) metrics.WebVitalsMetric {
	t.mu.Lock()
	th, ok := t.thresholds[name]
	m := metrics.WebVitalsMetric{
		Name:      name,
		Value:     value,
		Rating:    classify(value, th),
		Timestamp: t.now().UnixMilli(),
	}
	t.latest[name] = m
	sink := t.sink
	t.mu.Unlock()

	if !ok {
		log.Warnf("no thresholds configured for vital %s, rated by zero boundaries", name)
	}

	if sink != nil {
		sink.ReportWebVital(m)
		if m.Rating == metrics.RatingPoor {
			sink.TriggerWebVitalAlert(m, fmt.Sprintf("poor %s: %.2f", name, value))
		}
	}
	return m
}

// HandleEvent adapts a raw source observation into a recorded vital.
// Unknown names are dropped with a warning.
func (t *Tracker) HandleEvent(ev source.VitalEvent) {
	switch metrics.VitalName(ev.Name) {
	case metrics.VitalLCP, metrics.VitalFID, metrics.VitalCLS:
		t.Record(metrics.VitalName(ev.Name), ev.Value)
	default:
		log.Warnf("ignoring unknown vital %q", ev.Name)
	}
}

// Metric returns the latest observation for one vital.
func (t *Tracker) Metric(name metrics.VitalName) (metrics.WebVitalsMetric, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.latest[name]
	return m, ok
}

// Metrics returns the latest observation per vital.
func (t *Tracker) Metrics() map[metrics.VitalName]metrics.WebVitalsMetric {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[metrics.VitalName]metrics.WebVitalsMetric, len(t.latest))
	for k, v := range t.latest {
		out[k] = v
	}
	return out
}

func classify(value float64, th Thresholds) metrics.Rating {
	switch {
	case value <= th.Good:
		return metrics.RatingGood
	case value <= th.Poor:
		return metrics.RatingNeedsImprovement
	default:
		return metrics.RatingPoor
	}
}
