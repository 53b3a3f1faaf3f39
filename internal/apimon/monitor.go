// Package apimon times API request lifecycles and derives latency percentiles.
package apimon

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
)

const slowRequestMS = 3000

// Sink receives completed timings and recomputed percentiles.
type Sink interface {
	ReportAPITiming(m metrics.APITimingMetric)
	ReportLatencyPercentiles(p metrics.LatencyPercentiles)
}

type pendingRequest struct {
	endpoint string
	method   string
	start    time.Time
}

// Monitor pairs start/end calls through opaque tokens and keeps every
// completed timing for percentile calculation.
type Monitor struct {
	mu      sync.Mutex
	pending map[string]pendingRequest
	timings []metrics.APITimingMetric
	sink    Sink
	now     func() time.Time
}

// NewMonitor creates a monitor. A nil clock uses time.Now; the monotonic
// reading embedded in time.Time makes elapsed durations immune to wall resets.
func NewMonitor(sink Sink, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		pending: make(map[string]pendingRequest),
		sink:    sink,
		now:     now,
	}
}

// StartRequest begins timing one request and returns its token.
func (m *Monitor) StartRequest(endpoint, method string) string {
	token := uuid.NewString()
	m.mu.Lock()
	m.pending[token] = pendingRequest{endpoint: endpoint, method: method, start: m.now()}
	m.mu.Unlock()
	return token
}

// EndRequest completes the timing for a token. An unmatched token is non-fatal:
// it logs a warning and returns nil.
func (m *Monitor) EndRequest(token, endpoint, method string, statusCode int) *metrics.APITimingMetric {
	m.mu.Lock()
	req, ok := m.pending[token]
	if ok {
		delete(m.pending, token)
	}
	now := m.now()
	m.mu.Unlock()

	if !ok {
		log.Warnf("no pending request for token %s (%s %s)", token, method, endpoint)
		return nil
	}

	durationMS := float64(now.Sub(req.start)) / float64(time.Millisecond)
	metric := metrics.APITimingMetric{
		Endpoint:   endpoint,
		Method:     method,
		StatusCode: statusCode,
		Duration:   durationMS,
		IsSlow:     durationMS > slowRequestMS,
		Timestamp:  now.UnixMilli(),
	}

	m.mu.Lock()
	m.timings = append(m.timings, metric)
	m.mu.Unlock()

	if m.sink != nil {
		m.sink.ReportAPITiming(metric)
	}
	return &metric
}

// Timings returns a copy of all completed timings.
func (m *Monitor) Timings() []metrics.APITimingMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]metrics.APITimingMetric, len(m.timings))
	copy(out, m.timings)
	return out
}

// SlowRequests returns completed timings that exceeded the slow threshold.
func (m *Monitor) SlowRequests() []metrics.APITimingMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []metrics.APITimingMetric
	for _, t := range m.timings {
		if t.IsSlow {
			out = append(out, t)
		}
	}
	return out
}

// CalculatePercentiles sorts all recorded durations and interpolates
// p50/p95/p99. An empty set yields all zeros. The result is also pushed to
// the sink; repeated calls are idempotent there.
func (m *Monitor) CalculatePercentiles() metrics.LatencyPercentiles {
	m.mu.Lock()
	durations := make([]float64, 0, len(m.timings))
	for _, t := range m.timings {
		durations = append(durations, t.Duration)
	}
	m.mu.Unlock()

	var p metrics.LatencyPercentiles
	if len(durations) > 0 {
		sort.Float64s(durations)
		p = metrics.LatencyPercentiles{
			P50: percentile(durations, 50),
			P95: percentile(durations, 95),
			P99: percentile(durations, 99),
		}
	}

	if m.sink != nil {
		m.sink.ReportLatencyPercentiles(p)
	}
	return p
}

// percentile computes the p-th percentile of sorted values by linear
// interpolation: index (p/100)*(n-1), fractional part weighting the
// neighboring entries.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lower := math.Floor(idx)
	upper := math.Ceil(idx)
	if lower == upper {
		return sorted[int(idx)]
	}
	frac := idx - lower
	return sorted[int(lower)]*(1-frac) + sorted[int(upper)]*frac
}
