// Package execution times named code sections and observes unattributed
// long-running main-thread tasks.
package execution

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
	"github.com/pranaysuyash/caption-art-sub009/internal/source"
)

const (
	slowExecutionMS = 50
	longTaskName    = "long-task"
	topSlowest      = 10
)

// Sink receives every recorded execution.
type Sink interface {
	ReportExecution(m metrics.ExecutionMetric)
}

// Tracker records attributed measurements and passive long-task observations.
type Tracker struct {
	mu         sync.Mutex
	pending    map[string]time.Time
	executions []metrics.ExecutionMetric
	sink       Sink
	now        func() time.Time
}

// NewTracker creates a tracker.
func NewTracker(sink Sink, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		pending: make(map[string]time.Time),
		sink:    sink,
		now:     now,
	}
}

// StartMeasure begins timing a named section and returns its token.
func (t *Tracker) StartMeasure(name string) string {
	token := uuid.NewString()
	t.mu.Lock()
	t.pending[token] = t.now()
	t.mu.Unlock()
	return token
}

// EndMeasure completes a measurement. An unmatched token logs a warning and
// returns nil.
func (t *Tracker) EndMeasure(token, name string) *metrics.ExecutionMetric {
	t.mu.Lock()
	start, ok := t.pending[token]
	if ok {
		delete(t.pending, token)
	}
	now := t.now()
	t.mu.Unlock()

	if !ok {
		log.Warnf("no pending measurement for token %s (%s)", token, name)
		return nil
	}

	m := t.record(name, float64(now.Sub(start))/float64(time.Millisecond), false, now)
	return &m
}

// Measure times fn and records the duration even when fn returns an error or
// panics; the error is returned and the panic re-raised unchanged.
func (t *Tracker) Measure(name string, fn func() error) error {
	start := t.now()
	defer func() {
		now := t.now()
		t.record(name, float64(now.Sub(start))/float64(time.Millisecond), false, now)
	}()
	return fn()
}

// HandleLongTask records a passively observed main-thread blocking span.
// Long tasks are always slow but never appear among attributed executions.
func (t *Tracker) HandleLongTask(ev source.LongTaskEvent) {
	t.record(longTaskName, ev.Duration, true, t.now())
}

func (t *Tracker) record(name string, durationMS float64, longTask bool, now time.Time) metrics.ExecutionMetric {
	m := metrics.ExecutionMetric{
		FunctionName: name,
		Duration:     durationMS,
		IsSlow:       longTask || durationMS > slowExecutionMS,
		IsLongTask:   longTask,
		Timestamp:    now.UnixMilli(),
	}

	t.mu.Lock()
	t.executions = append(t.executions, m)
	t.mu.Unlock()

	if t.sink != nil {
		t.sink.ReportExecution(m)
	}
	return m
}

// Executions returns a copy of everything recorded, long tasks included.
func (t *Tracker) Executions() []metrics.ExecutionMetric {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]metrics.ExecutionMetric, len(t.executions))
	copy(out, t.executions)
	return out
}

// SlowExecutions returns attributed calls over the slow threshold. Passive
// long tasks are excluded; LongTasks surfaces those.
func (t *Tracker) SlowExecutions() []metrics.ExecutionMetric {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []metrics.ExecutionMetric
	for _, e := range t.executions {
		if e.IsSlow && !e.IsLongTask {
			out = append(out, e)
		}
	}
	return out
}

// LongTasks returns only the passive long-task observations.
func (t *Tracker) LongTasks() []metrics.ExecutionMetric {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []metrics.ExecutionMetric
	for _, e := range t.executions {
		if e.IsLongTask {
			out = append(out, e)
		}
	}
	return out
}

// CalculateStats summarizes recorded work. Long tasks are counted separately
// and excluded from the execution total.
func (t *Tracker) CalculateStats() metrics.ExecutionStats {
	t.mu.Lock()
	all := make([]metrics.ExecutionMetric, len(t.executions))
	copy(all, t.executions)
	t.mu.Unlock()

	var stats metrics.ExecutionStats
	for _, e := range all {
		if e.IsLongTask {
			stats.LongTasks++
			continue
		}
		stats.TotalExecutions++
		if e.IsSlow {
			stats.SlowExecutions++
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Duration > all[j].Duration })
	if len(all) > topSlowest {
		all = all[:topSlowest]
	}
	stats.SlowestByLongest = all
	return stats
}
