// Package monitor wires every collector to one delivery service and exposes a
// consolidated report.
package monitor

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pranaysuyash/caption-art-sub009/internal/apimon"
	"github.com/pranaysuyash/caption-art-sub009/internal/budget"
	"github.com/pranaysuyash/caption-art-sub009/internal/delivery"
	"github.com/pranaysuyash/caption-art-sub009/internal/errrate"
	"github.com/pranaysuyash/caption-art-sub009/internal/execution"
	"github.com/pranaysuyash/caption-art-sub009/internal/memwatch"
	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
	"github.com/pranaysuyash/caption-art-sub009/internal/resource"
	"github.com/pranaysuyash/caption-art-sub009/internal/source"
	"github.com/pranaysuyash/caption-art-sub009/internal/vitals"
)

// Options configures the orchestrator.
type Options struct {
	MemorySampleInterval time.Duration
	MemoryThresholds     *memwatch.Thresholds
	Budget               *budget.Budget
	BudgetOptions        budget.Options
	SpikeThreshold       float64
}

// PerformanceMonitor owns every collector, the budget enforcer, and the
// delivery service lifecycle.
type PerformanceMonitor struct {
	src      source.Source
	delivery *delivery.Service

	vitals    *vitals.Tracker
	api       *apimon.Monitor
	errors    *errrate.Tracker
	resources *resource.Monitor
	execution *execution.Tracker
	memory    *memwatch.Monitor
	enforcer  *budget.Enforcer

	mu           sync.Mutex
	started      bool
	unsubscribes []func()
}

// New constructs the monitor. A nil source degrades to the inert no-op source.
func New(src source.Source, svc *delivery.Service, opts Options) *PerformanceMonitor {
	if src == nil {
		src = source.Noop()
	}
	now := src.Now

	memThresholds := memwatch.DefaultThresholds()
	if opts.MemoryThresholds != nil {
		memThresholds = *opts.MemoryThresholds
	}
	b := budget.Default()
	if opts.Budget != nil {
		b = *opts.Budget
	}

	// Assign sinks only for a live service; a typed nil pointer would defeat
	// the collectors' nil checks.
	var (
		vitalsSink vitals.Sink
		apiSink    apimon.Sink
		errSink    errrate.Sink
		resSink    resource.Sink
		execSink   execution.Sink
		memSink    memwatch.Sink
	)
	if svc != nil {
		vitalsSink, apiSink, errSink = svc, svc, svc
		resSink, execSink, memSink = svc, svc, svc
	}

	pm := &PerformanceMonitor{
		src:       src,
		delivery:  svc,
		vitals:    vitals.NewTracker(vitalsSink, now),
		api:       apimon.NewMonitor(apiSink, now),
		errors:    errrate.NewTracker(errSink, now),
		resources: resource.NewMonitor(resSink, now),
		execution: execution.NewTracker(execSink, now),
		memory:    memwatch.NewMonitor(src, memSink, memThresholds, opts.MemorySampleInterval),
		enforcer:  budget.NewEnforcer(b, opts.BudgetOptions, now),
	}
	if opts.SpikeThreshold > 0 {
		pm.errors.SetSpikeThreshold(opts.SpikeThreshold)
	}
	return pm
}

// Start subscribes the passive collectors to the host source, begins memory
// sampling, and starts the auto-flush timer. Idempotent.
func (pm *PerformanceMonitor) Start() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.started {
		return
	}
	pm.started = true

	pm.unsubscribes = append(pm.unsubscribes,
		pm.src.Subscribe(source.KindVital, func(ev any) {
			if e, ok := ev.(source.VitalEvent); ok {
				pm.vitals.HandleEvent(e)
			}
		}),
		pm.src.Subscribe(source.KindLongTask, func(ev any) {
			if e, ok := ev.(source.LongTaskEvent); ok {
				pm.execution.HandleLongTask(e)
			}
		}),
		pm.src.Subscribe(source.KindResource, func(ev any) {
			if e, ok := ev.(source.ResourceEvent); ok {
				pm.resources.HandleEvent(e)
			}
		}),
	)

	pm.memory.StartMonitoring()
	if pm.delivery != nil {
		pm.delivery.StartAutoFlush()
	}
	log.Info("performance monitor started")
}

// Stop shuts down in the required order: collectors first, then one final
// flush, then the auto-flush timer, so nothing recorded during shutdown is
// lost ahead of the last flush. Idempotent.
func (pm *PerformanceMonitor) Stop() {
	pm.mu.Lock()
	if !pm.started {
		pm.mu.Unlock()
		return
	}
	pm.started = false
	unsubs := pm.unsubscribes
	pm.unsubscribes = nil
	pm.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	pm.memory.StopMonitoring()
	if pm.delivery != nil {
		pm.delivery.FlushSync()
		pm.delivery.StopAutoFlush()
	}
	log.Info("performance monitor stopped")
}

// Collector accessors for application instrumentation.

func (pm *PerformanceMonitor) Vitals() *vitals.Tracker       { return pm.vitals }
func (pm *PerformanceMonitor) API() *apimon.Monitor          { return pm.api }
func (pm *PerformanceMonitor) Errors() *errrate.Tracker      { return pm.errors }
func (pm *PerformanceMonitor) Resources() *resource.Monitor  { return pm.resources }
func (pm *PerformanceMonitor) Execution() *execution.Tracker { return pm.execution }
func (pm *PerformanceMonitor) Memory() *memwatch.Monitor     { return pm.memory }
func (pm *PerformanceMonitor) Budgets() *budget.Enforcer     { return pm.enforcer }
func (pm *PerformanceMonitor) Delivery() *delivery.Service   { return pm.delivery }

// CheckBudgets runs the enforcer across a fresh snapshot of every collector.
func (pm *PerformanceMonitor) CheckBudgets() (budget.CheckResult, error) {
	stats := pm.errors.CalculateErrorRate()
	weight := pm.resources.TotalPageWeight()
	snap := budget.Snapshot{
		Vitals:     pm.vitals.Metrics(),
		Timings:    pm.api.Timings(),
		ErrorStats: &stats,
		Resources:  pm.resources.Loads(),
		PageWeight: &weight,
		Executions: pm.execution.Executions(),
	}
	if mem := pm.memory.Stats(); mem.Latest != nil {
		snap.MemorySample = mem.Latest
	}
	return pm.enforcer.CheckAll(snap)
}

// Report assembles the consolidated snapshot of every collector plus
// outstanding budget violations and delivery stats.
func (pm *PerformanceMonitor) Report() Report {
	r := Report{
		GeneratedAt: pm.src.Now().UnixMilli(),
		Vitals:      pm.vitals.Metrics(),
		Errors:      pm.errors.CalculateErrorRate(),
		Execution:   pm.execution.CalculateStats(),
		Memory:      pm.memory.Stats(),
		Violations:  pm.enforcer.Violations(),
	}
	r.API = APIReport{
		Percentiles:   pm.api.CalculatePercentiles(),
		TotalRequests: len(pm.api.Timings()),
		SlowRequests:  len(pm.api.SlowRequests()),
	}
	r.Resources = ResourceReport{
		TotalPageWeight: pm.resources.TotalPageWeight(),
		CacheHitRate:    pm.resources.CacheHitRate(),
		ByType:          pm.resources.BreakdownByType(),
		SlowLoads:       len(pm.resources.SlowLoads()),
	}
	if pm.delivery != nil {
		r.Delivery = pm.delivery.Stats()
	}
	return r
}

// Report is the consolidated snapshot, suitable for serialization and export.
type Report struct {
	GeneratedAt int64                                         `json:"generated_at"`
	Vitals      map[metrics.VitalName]metrics.WebVitalsMetric `json:"web_vitals"`
	API         APIReport                                     `json:"api"`
	Errors      metrics.ErrorRateStats                        `json:"errors"`
	Resources   ResourceReport                                `json:"resources"`
	Execution   metrics.ExecutionStats                        `json:"execution"`
	Memory      memwatch.Stats                                `json:"memory"`
	Violations  []budget.Violation                            `json:"budget_violations"`
	Delivery    delivery.Stats                                `json:"delivery"`
}

// APIReport summarizes the API monitor.
type APIReport struct {
	Percentiles   metrics.LatencyPercentiles `json:"percentiles"`
	TotalRequests int                        `json:"total_requests"`
	SlowRequests  int                        `json:"slow_requests"`
}

// ResourceReport summarizes the resource monitor.
type ResourceReport struct {
	TotalPageWeight int64                                             `json:"total_page_weight"`
	CacheHitRate    float64                                           `json:"cache_hit_rate"`
	ByType          map[metrics.ResourceType]metrics.ResourceTypeStats `json:"by_type"`
	SlowLoads       int                                               `json:"slow_loads"`
}
