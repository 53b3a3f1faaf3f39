package budget

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
)

// ErrBudgetExceeded is returned by checks when blocking mode is enabled and
// at least one violation occurred. Alerting and the custom handler always run
// first.
var ErrBudgetExceeded = errors.New("performance budget exceeded")

const criticalRatio = 1.5

// Violation records one metric exceeding its budget. Severity is critical
// when the actual value exceeds the budget by more than half.
type Violation struct {
	Metric      string           `json:"metric"`
	BudgetValue float64          `json:"budget_value"`
	ActualValue float64          `json:"actual_value"`
	Severity    metrics.Severity `json:"severity"`
	Message     string           `json:"message"`
}

// CheckResult is the outcome of one check call.
type CheckResult struct {
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations"`
	Timestamp  int64       `json:"timestamp"`
}

// Options configures enforcement side effects.
type Options struct {
	// LogViolations emits a warn/error log line per violation.
	LogViolations bool
	// Handler, when set, receives every violation batch.
	Handler func([]Violation)
	// BlockOnViolation makes checks return ErrBudgetExceeded after the
	// alert and handler have run.
	BlockOnViolation bool
}

// Snapshot is the bundle input to CheckAll.
type Snapshot struct {
	Vitals       map[metrics.VitalName]metrics.WebVitalsMetric
	Timings      []metrics.APITimingMetric
	ErrorStats   *metrics.ErrorRateStats
	Resources    []metrics.ResourceLoadMetric
	PageWeight   *int64
	Executions   []metrics.ExecutionMetric
	MemorySample *metrics.MemoryUsageMetric
}

// Enforcer compares metrics to a live budget and accumulates every violation
// it has ever produced.
type Enforcer struct {
	mu       sync.Mutex
	budget   Budget
	opts     Options
	recorded []Violation
	now      func() time.Time
}

// NewEnforcer creates an enforcer over the given budget.
func NewEnforcer(b Budget, opts Options, now func() time.Time) *Enforcer {
	if now == nil {
		now = time.Now
	}
	return &Enforcer{budget: b, opts: opts, now: now}
}

// UpdateBudget merges a partial update into the live budget. Only subsequent
// checks see the new values.
func (e *Enforcer) UpdateBudget(p Patch) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.budget.apply(p)
}

// Budget returns the current budget.
func (e *Enforcer) Budget() Budget {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.budget
}

// Violations returns the running log of every recorded violation.
func (e *Enforcer) Violations() []Violation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Violation, len(e.recorded))
	copy(out, e.recorded)
	return out
}

// CheckWebVital checks one vital observation against its dimension budget.
func (e *Enforcer) CheckWebVital(m metrics.WebVitalsMetric) (CheckResult, error) {
	b := e.Budget()
	var v []Violation
	switch m.Name {
	case metrics.VitalLCP:
		v = appendViolation(v, "LCP", b.LCP, m.Value)
	case metrics.VitalFID:
		v = appendViolation(v, "FID", b.FID, m.Value)
	case metrics.VitalCLS:
		v = appendViolation(v, "CLS", b.CLS, m.Value)
	}
	return e.finish(v)
}

// CheckAPITiming checks one request duration.
func (e *Enforcer) CheckAPITiming(m metrics.APITimingMetric) (CheckResult, error) {
	b := e.Budget()
	v := appendViolation(nil, "apiResponseTime", b.APIResponseTime, m.Duration)
	return e.finish(v)
}

// CheckErrorRate checks the derived error-rate percentage.
func (e *Enforcer) CheckErrorRate(stats metrics.ErrorRateStats) (CheckResult, error) {
	b := e.Budget()
	v := appendViolation(nil, "apiErrorRate", b.APIErrorRate, stats.ErrorRate)
	return e.finish(v)
}

// CheckResourceLoad checks one asset load duration.
func (e *Enforcer) CheckResourceLoad(m metrics.ResourceLoadMetric) (CheckResult, error) {
	b := e.Budget()
	v := appendViolation(nil, "resourceLoadTime", b.ResourceLoadTime, m.Duration)
	return e.finish(v)
}

// CheckPageWeight checks the summed asset payload in bytes.
func (e *Enforcer) CheckPageWeight(totalBytes int64) (CheckResult, error) {
	b := e.Budget()
	v := appendViolation(nil, "totalPageWeight", b.TotalPageWeight, float64(totalBytes))
	return e.finish(v)
}

// CheckExecution checks one attributed execution duration.
func (e *Enforcer) CheckExecution(m metrics.ExecutionMetric) (CheckResult, error) {
	b := e.Budget()
	v := appendViolation(nil, "functionExecutionTime", b.FunctionExecutionTime, m.Duration)
	return e.finish(v)
}

// CheckMemory checks heap percentage and DOM node count of one sample.
func (e *Enforcer) CheckMemory(m metrics.MemoryUsageMetric) (CheckResult, error) {
	b := e.Budget()
	var v []Violation
	if m.JSHeapSizeLimit > 0 {
		pct := float64(m.UsedJSHeapSize) / float64(m.JSHeapSizeLimit) * 100
		v = appendViolation(v, "heapSizeLimit", b.HeapSizeLimit, pct)
	}
	v = appendViolation(v, "domNodeCount", b.DOMNodeCount, float64(m.DOMNodeCount))
	return e.finish(v)
}

// CheckAll fans out across every supplied metric collection.
func (e *Enforcer) CheckAll(s Snapshot) (CheckResult, error) {
	b := e.Budget()
	var v []Violation

	for _, m := range s.Vitals {
		switch m.Name {
		case metrics.VitalLCP:
			v = appendViolation(v, "LCP", b.LCP, m.Value)
		case metrics.VitalFID:
			v = appendViolation(v, "FID", b.FID, m.Value)
		case metrics.VitalCLS:
			v = appendViolation(v, "CLS", b.CLS, m.Value)
		}
	}
	for _, m := range s.Timings {
		v = appendViolation(v, "apiResponseTime", b.APIResponseTime, m.Duration)
	}
	if s.ErrorStats != nil {
		v = appendViolation(v, "apiErrorRate", b.APIErrorRate, s.ErrorStats.ErrorRate)
	}
	for _, m := range s.Resources {
		v = appendViolation(v, "resourceLoadTime", b.ResourceLoadTime, m.Duration)
	}
	if s.PageWeight != nil {
		v = appendViolation(v, "totalPageWeight", b.TotalPageWeight, float64(*s.PageWeight))
	}
	for _, m := range s.Executions {
		if m.IsLongTask {
			continue
		}
		v = appendViolation(v, "functionExecutionTime", b.FunctionExecutionTime, m.Duration)
	}
	if s.MemorySample != nil {
		if s.MemorySample.JSHeapSizeLimit > 0 {
			pct := float64(s.MemorySample.UsedJSHeapSize) / float64(s.MemorySample.JSHeapSizeLimit) * 100
			v = appendViolation(v, "heapSizeLimit", b.HeapSizeLimit, pct)
		}
		v = appendViolation(v, "domNodeCount", b.DOMNodeCount, float64(s.MemorySample.DOMNodeCount))
	}
	return e.finish(v)
}

// finish records the batch, dispatches side effects in order, and only then
// escalates to an error when blocking is enabled.
func (e *Enforcer) finish(violations []Violation) (CheckResult, error) {
	result := CheckResult{
		Passed:     len(violations) == 0,
		Violations: violations,
		Timestamp:  e.now().UnixMilli(),
	}
	if result.Passed {
		return result, nil
	}

	e.mu.Lock()
	e.recorded = append(e.recorded, violations...)
	opts := e.opts
	e.mu.Unlock()

	if opts.LogViolations {
		for _, v := range violations {
			fields := log.Fields{
				"metric": v.Metric,
				"budget": v.BudgetValue,
				"actual": v.ActualValue,
			}
			if v.Severity == metrics.SeverityCritical {
				log.WithFields(fields).Error(v.Message)
			} else {
				log.WithFields(fields).Warn(v.Message)
			}
		}
	}
	if opts.Handler != nil {
		opts.Handler(violations)
	}
	if opts.BlockOnViolation {
		return result, fmt.Errorf("%w: %d violation(s)", ErrBudgetExceeded, len(violations))
	}
	return result, nil
}

// appendViolation adds a violation when actual exceeds a positive budget.
func appendViolation(v []Violation, metric string, budgetValue, actual float64) []Violation {
	if budgetValue <= 0 || actual <= budgetValue {
		return v
	}
	severity := metrics.SeverityWarning
	if actual/budgetValue > criticalRatio {
		severity = metrics.SeverityCritical
	}
	return append(v, Violation{
		Metric:      metric,
		BudgetValue: budgetValue,
		ActualValue: actual,
		Severity:    severity,
		Message:     fmt.Sprintf("%s %.2f exceeds budget %.2f", metric, actual, budgetValue),
	})
}
