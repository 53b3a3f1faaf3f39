// Package resource classifies asset-load timings and aggregates page weight
// and cache behavior.
package resource

import (
	"strings"
	"sync"
	"time"

	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
	"github.com/pranaysuyash/caption-art-sub009/internal/source"
)

const slowLoadMS = 3000

// Sink receives every classified load.
type Sink interface {
	ReportResourceLoad(m metrics.ResourceLoadMetric)
}

// Monitor consumes resource-timing entries from the host source.
type Monitor struct {
	mu    sync.Mutex
	loads []metrics.ResourceLoadMetric
	sink  Sink
	now   func() time.Time
}

// NewMonitor creates a monitor.
func NewMonitor(sink Sink, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{sink: sink, now: now}
}

// HandleEvent classifies and records one raw timing entry.
func (m *Monitor) HandleEvent(ev source.ResourceEvent) metrics.ResourceLoadMetric {
	size := ev.TransferSize
	if size == 0 {
		size = ev.DecodedSize
	}
	metric := metrics.ResourceLoadMetric{
		URL:       ev.URL,
		Type:      Classify(ev.Initiator, ev.URL),
		Duration:  ev.Duration,
		Size:      size,
		Cached:    ev.TransferSize == 0 && ev.DecodedSize > 0,
		Failed:    ev.TransferSize == 0 && ev.DecodedSize == 0 && ev.Duration > 0,
		IsSlow:    ev.Duration > slowLoadMS,
		Timestamp: m.now().UnixMilli(),
	}

	m.mu.Lock()
	m.loads = append(m.loads, metric)
	m.mu.Unlock()

	if m.sink != nil {
		m.sink.ReportResourceLoad(metric)
	}
	return metric
}

// Loads returns a copy of every recorded load.
func (m *Monitor) Loads() []metrics.ResourceLoadMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]metrics.ResourceLoadMetric, len(m.loads))
	copy(out, m.loads)
	return out
}

// SlowLoads returns loads that exceeded the slow threshold.
func (m *Monitor) SlowLoads() []metrics.ResourceLoadMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []metrics.ResourceLoadMetric
	for _, l := range m.loads {
		if l.IsSlow {
			out = append(out, l)
		}
	}
	return out
}

// TotalPageWeight sums the size of every recorded load, in bytes.
func (m *Monitor) TotalPageWeight() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, l := range m.loads {
		total += l.Size
	}
	return total
}

// CacheHitRate returns the percentage of loads served from cache.
func (m *Monitor) CacheHitRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.loads) == 0 {
		return 0
	}
	var cached int
	for _, l := range m.loads {
		if l.Cached {
			cached++
		}
	}
	return float64(cached) / float64(len(m.loads)) * 100
}

// BreakdownByType aggregates count, total size, and average duration per
// resource type.
func (m *Monitor) BreakdownByType() map[metrics.ResourceType]metrics.ResourceTypeStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	type acc struct {
		count    int64
		size     int64
		duration float64
	}
	accs := make(map[metrics.ResourceType]*acc)
	for _, l := range m.loads {
		a := accs[l.Type]
		if a == nil {
			a = &acc{}
			accs[l.Type] = a
		}
		a.count++
		a.size += l.Size
		a.duration += l.Duration
	}

	out := make(map[metrics.ResourceType]metrics.ResourceTypeStats, len(accs))
	for t, a := range accs {
		out[t] = metrics.ResourceTypeStats{
			Count:           a.count,
			TotalSize:       a.size,
			AverageDuration: a.duration / float64(a.count),
		}
	}
	return out
}

// Classify derives the resource type from the declared initiator, falling back
// to the URL extension.
func Classify(initiator, url string) metrics.ResourceType {
	switch strings.ToLower(initiator) {
	case "img", "image":
		return metrics.ResourceImage
	case "script":
		return metrics.ResourceScript
	case "css", "link":
		return metrics.ResourceStylesheet
	case "font":
		return metrics.ResourceFont
	}

	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.ToLower(path)
	switch {
	case hasAnySuffix(path, ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".avif", ".ico"):
		return metrics.ResourceImage
	case hasAnySuffix(path, ".js", ".mjs"):
		return metrics.ResourceScript
	case hasAnySuffix(path, ".css"):
		return metrics.ResourceStylesheet
	case hasAnySuffix(path, ".woff", ".woff2", ".ttf", ".otf", ".eot"):
		return metrics.ResourceFont
	default:
		return metrics.ResourceOther
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
