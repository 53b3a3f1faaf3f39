// Package errrate counts requests and errors by category and raises spike alerts.
package errrate

import (
	"fmt"
	"sync"
	"time"

	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
)

// DefaultSpikeThreshold is the error-rate percentage above which a spike
// alert fires.
const DefaultSpikeThreshold = 10.0

// Sink receives every recorded error plus spike alerts.
type Sink interface {
	ReportError(m metrics.ErrorMetric)
	TriggerErrorSpikeAlert(stats metrics.ErrorRateStats, message string)
}

// Tracker accumulates request and error counters. API and network errors count
// as completed requests; client errors do not, they are not server round-trips.
type Tracker struct {
	mu             sync.Mutex
	totalRequests  int64
	errors         []metrics.ErrorMetric
	byType         map[metrics.ErrorType]int64
	spikeThreshold float64
	sink           Sink
	now            func() time.Time
}

// NewTracker creates a tracker with the default spike threshold.
func NewTracker(sink Sink, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		byType:         make(map[metrics.ErrorType]int64),
		spikeThreshold: DefaultSpikeThreshold,
		sink:           sink,
		now:            now,
	}
}

// SetSpikeThreshold overrides the alerting threshold, in percent.
func (t *Tracker) SetSpikeThreshold(pct float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spikeThreshold = pct
}

// RecordRequest counts one successful request.
func (t *Tracker) RecordRequest() {
	t.mu.Lock()
	t.totalRequests++
	t.mu.Unlock()
}

// RecordAPIError records a failed API round-trip. The failed attempt still
// counts toward the request total.
func (t *Tracker) RecordAPIError(endpoint string, statusCode int, message string) {
	t.record(metrics.ErrorMetric{
		Type:       metrics.ErrorTypeAPI,
		Message:    message,
		Endpoint:   endpoint,
		StatusCode: statusCode,
	}, true)
}

// RecordNetworkError records a request that never reached the server.
func (t *Tracker) RecordNetworkError(endpoint string, message string) {
	t.record(metrics.ErrorMetric{
		Type:     metrics.ErrorTypeNetwork,
		Message:  message,
		Endpoint: endpoint,
	}, true)
}

// RecordClientError records a browser-side failure. It does not touch the
// request counter.
func (t *Tracker) RecordClientError(message string) {
	t.record(metrics.ErrorMetric{
		Type:    metrics.ErrorTypeClient,
		Message: message,
	}, false)
}

func (t *Tracker) record(m metrics.ErrorMetric, countsAsRequest bool) {
	t.mu.Lock()
	m.Timestamp = t.now().UnixMilli()
	t.errors = append(t.errors, m)
	t.byType[m.Type]++
	if countsAsRequest {
		t.totalRequests++
	}
	t.mu.Unlock()

	if t.sink != nil {
		t.sink.ReportError(m)
	}
	t.checkForSpike()
}

// checkForSpike recomputes the rate after every error and alerts when it
// exceeds the configured threshold.
func (t *Tracker) checkForSpike() {
	stats := t.CalculateErrorRate()
	t.mu.Lock()
	threshold := t.spikeThreshold
	sink := t.sink
	t.mu.Unlock()

	if sink != nil && stats.ErrorRate > threshold {
		sink.TriggerErrorSpikeAlert(stats,
			fmt.Sprintf("error rate %.2f%% exceeds spike threshold %.2f%%", stats.ErrorRate, threshold))
	}
}

// CalculateErrorRate derives the current counters. With no completed requests
// the rate is zero.
func (t *Tracker) CalculateErrorRate() metrics.ErrorRateStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	byType := make(map[metrics.ErrorType]int64, len(t.byType))
	var totalErrors int64
	for k, v := range t.byType {
		byType[k] = v
		totalErrors += v
	}

	var rate float64
	if t.totalRequests > 0 {
		rate = float64(totalErrors) / float64(t.totalRequests) * 100
	}
	return metrics.ErrorRateStats{
		TotalRequests: t.totalRequests,
		TotalErrors:   totalErrors,
		ErrorRate:     rate,
		ErrorsByType:  byType,
	}
}

// RecentErrors returns errors observed within the trailing window.
func (t *Tracker) RecentErrors(window time.Duration) []metrics.ErrorMetric {
	cutoff := t.now().Add(-window).UnixMilli()
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []metrics.ErrorMetric
	for _, e := range t.errors {
		if e.Timestamp >= cutoff {
			out = append(out, e)
		}
	}
	return out
}
