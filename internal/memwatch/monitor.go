// Package memwatch samples heap and DOM size, applies a sliding-window leak
// heuristic, and tracks externally reported per-component footprints.
package memwatch

import (
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
	"github.com/pranaysuyash/caption-art-sub009/internal/source"
)

const (
	// DefaultSampleInterval is how often a heap/DOM sample is taken.
	DefaultSampleInterval = 5 * time.Second

	// DefaultLeakGrowthRate is the minimum sustained growth, in bytes per
	// second, for the leak heuristic to fire.
	DefaultLeakGrowthRate = 1 << 20

	leakWindow       = 5
	leakMinIncreases = 4
)

// Thresholds configures sample evaluation.
type Thresholds struct {
	HeapWarningPercent  float64
	HeapCriticalPercent float64
	DOMNodeWarning      int64
	LeakGrowthRate      float64 // bytes per second
}

// DefaultThresholds returns the stock evaluation thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HeapWarningPercent:  75,
		HeapCriticalPercent: 90,
		DOMNodeWarning:      5000,
		LeakGrowthRate:      DefaultLeakGrowthRate,
	}
}

// Sink receives every sample plus threshold and leak alerts.
type Sink interface {
	ReportMemoryUsage(m metrics.MemoryUsageMetric)
	TriggerMemoryAlert(m metrics.MemoryUsageMetric, message string)
	ReportMemoryLeak(ind metrics.MemoryLeakIndicator)
}

// Stats is the monitor's current consolidated view.
type Stats struct {
	Latest       *metrics.MemoryUsageMetric  `json:"latest,omitempty"`
	HeapWarning  bool                        `json:"heap_warning"`
	HeapCritical bool                        `json:"heap_critical"`
	Leak         metrics.MemoryLeakIndicator `json:"leak"`
	SampleCount  int                         `json:"sample_count"`
}

// Monitor owns the periodic sampler. StartMonitoring and StopMonitoring are
// idempotent; with a source lacking memory capability the monitor stays inert.
type Monitor struct {
	mu         sync.Mutex
	src        source.Source
	sink       Sink
	thresholds Thresholds
	interval   time.Duration
	samples    []metrics.MemoryUsageMetric
	components map[string]metrics.ComponentMemoryUsage
	stop       chan struct{}
	done       chan struct{}
}

// NewMonitor creates a monitor over the given source.
func NewMonitor(src source.Source, sink Sink, thresholds Thresholds, interval time.Duration) *Monitor {
	if src == nil {
		src = source.Noop()
	}
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	if thresholds.LeakGrowthRate <= 0 {
		thresholds.LeakGrowthRate = DefaultLeakGrowthRate
	}
	return &Monitor{
		src:        src,
		sink:       sink,
		thresholds: thresholds,
		interval:   interval,
		components: make(map[string]metrics.ComponentMemoryUsage),
	}
}

// StartMonitoring begins periodic sampling. Calling it while already sampling
// is a no-op.
func (m *Monitor) StartMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return
	}
	if _, ok := m.src.MemoryStats(); !ok {
		log.Warn("memory stats unavailable, monitoring disabled")
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(m.stop, m.done)
}

// StopMonitoring cancels the sampler synchronously. Safe to call when stopped.
func (m *Monitor) StopMonitoring() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (m *Monitor) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Sample()
		}
	}
}

// Sample takes one reading immediately. It is also the ticker body, exposed so
// tests and the demo mode can drive the monitor without waiting.
func (m *Monitor) Sample() *metrics.MemoryUsageMetric {
	snap, ok := m.src.MemoryStats()
	if !ok {
		return nil
	}

	heapPct := heapPercent(snap)
	metric := metrics.MemoryUsageMetric{
		UsedJSHeapSize:  snap.UsedJSHeapSize,
		TotalJSHeapSize: snap.TotalJSHeapSize,
		JSHeapSizeLimit: snap.JSHeapSizeLimit,
		DOMNodeCount:    snap.DOMNodeCount,
		Timestamp:       m.src.Now().UnixMilli(),
	}
	metric.ExceedsThreshold = heapPct >= m.thresholds.HeapWarningPercent ||
		(m.thresholds.DOMNodeWarning > 0 && snap.DOMNodeCount >= m.thresholds.DOMNodeWarning)

	m.mu.Lock()
	m.samples = append(m.samples, metric)
	m.mu.Unlock()

	if m.sink != nil {
		m.sink.ReportMemoryUsage(metric)
		if metric.ExceedsThreshold {
			m.sink.TriggerMemoryAlert(metric,
				fmt.Sprintf("memory threshold exceeded: heap %.1f%%, %d DOM nodes", heapPct, snap.DOMNodeCount))
		}
	}

	if ind := m.DetectMemoryLeak(); ind.Detected && m.sink != nil {
		m.sink.ReportMemoryLeak(ind)
	}
	return &metric
}

// DetectMemoryLeak evaluates the last five samples. Both conditions are
// necessary: at least four consecutive increases ending at the newest sample
// AND a window growth rate at or above the configured floor. The counter
// resets on any non-increase, so only the trailing run matters; this avoids
// flagging slow monotonic growth or one transient spike.
func (m *Monitor) DetectMemoryLeak() metrics.MemoryLeakIndicator {
	m.mu.Lock()
	samples := m.samples
	if len(samples) > leakWindow {
		samples = samples[len(samples)-leakWindow:]
	}
	window := make([]metrics.MemoryUsageMetric, len(samples))
	copy(window, samples)
	m.mu.Unlock()

	ind := metrics.MemoryLeakIndicator{Timestamp: m.src.Now().UnixMilli()}
	if len(window) < leakWindow {
		return ind
	}

	consecutive := 0
	for i := 1; i < len(window); i++ {
		if window[i].UsedJSHeapSize > window[i-1].UsedJSHeapSize {
			consecutive++
		} else {
			consecutive = 0
		}
	}
	ind.ConsecutiveIncreases = consecutive

	first, last := window[0], window[len(window)-1]
	elapsed := float64(last.Timestamp-first.Timestamp) / 1000
	if elapsed > 0 {
		ind.GrowthRate = float64(last.UsedJSHeapSize-first.UsedJSHeapSize) / elapsed
	}

	ind.Detected = consecutive >= leakMinIncreases && ind.GrowthRate >= m.thresholds.LeakGrowthRate
	return ind
}

// Stats returns the consolidated memory view.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	var latest *metrics.MemoryUsageMetric
	count := len(m.samples)
	if count > 0 {
		l := m.samples[count-1]
		latest = &l
	}
	m.mu.Unlock()

	s := Stats{Latest: latest, SampleCount: count, Leak: m.DetectMemoryLeak()}
	if latest != nil {
		pct := heapPercent(source.MemorySnapshot{
			UsedJSHeapSize:  latest.UsedJSHeapSize,
			JSHeapSizeLimit: latest.JSHeapSizeLimit,
		})
		s.HeapWarning = pct >= m.thresholds.HeapWarningPercent
		s.HeapCritical = pct >= m.thresholds.HeapCriticalPercent
	}
	return s
}

// RegisterComponent records a component's self-reported footprint estimate.
func (m *Monitor) RegisterComponent(name string, estimatedSize int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = metrics.ComponentMemoryUsage{
		ComponentName: name,
		EstimatedSize: estimatedSize,
		Timestamp:     m.src.Now().UnixMilli(),
	}
}

// UnregisterComponent removes a component from the registry.
func (m *Monitor) UnregisterComponent(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.components, name)
}

// HighMemoryComponents returns registered components at or above the given
// size, sorted descending.
func (m *Monitor) HighMemoryComponents(threshold int64) []metrics.ComponentMemoryUsage {
	m.mu.Lock()
	var out []metrics.ComponentMemoryUsage
	for _, c := range m.components {
		if c.EstimatedSize >= threshold {
			out = append(out, c)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EstimatedSize > out[j].EstimatedSize })
	return out
}

func heapPercent(snap source.MemorySnapshot) float64 {
	if snap.JSHeapSizeLimit == 0 {
		return 0
	}
	return float64(snap.UsedJSHeapSize) / float64(snap.JSHeapSizeLimit) * 100
}
