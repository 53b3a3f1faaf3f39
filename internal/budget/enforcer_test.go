package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
)

func fixedClock() func() time.Time {
	at := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestViolationOnlyWhenOverBudget(t *testing.T) {
	e := NewEnforcer(Default(), Options{}, fixedClock())

	result, err := e.CheckWebVital(metrics.WebVitalsMetric{Name: metrics.VitalLCP, Value: 2500})
	require.NoError(t, err)
	assert.True(t, result.Passed)

	result, err = e.CheckWebVital(metrics.WebVitalsMetric{Name: metrics.VitalLCP, Value: 2501})
	require.NoError(t, err)
	assert.False(t, result.Passed)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, "LCP", result.Violations[0].Metric)
}

func TestSeverityThreshold(t *testing.T) {
	e := NewEnforcer(Default(), Options{}, fixedClock())

	// ratio 3000/2500 = 1.2 stays a warning
	result, _ := e.CheckWebVital(metrics.WebVitalsMetric{Name: metrics.VitalLCP, Value: 3000})
	require.Len(t, result.Violations, 1)
	assert.Equal(t, metrics.SeverityWarning, result.Violations[0].Severity)

	// ratio 4000/2500 = 1.6 escalates to critical
	result, _ = e.CheckWebVital(metrics.WebVitalsMetric{Name: metrics.VitalLCP, Value: 4000})
	require.Len(t, result.Violations, 1)
	assert.Equal(t, metrics.SeverityCritical, result.Violations[0].Severity)
}

func TestSeverityBoundaryExactlyOneAndAHalf(t *testing.T) {
	e := NewEnforcer(Budget{APIResponseTime: 1000}, Options{}, fixedClock())
	result, _ := e.CheckAPITiming(metrics.APITimingMetric{Duration: 1500})
	require.Len(t, result.Violations, 1)
	assert.Equal(t, metrics.SeverityWarning, result.Violations[0].Severity)
}

func TestHandlerRunsBeforeBlockingError(t *testing.T) {
	var handled []Violation
	e := NewEnforcer(Default(), Options{
		Handler:          func(v []Violation) { handled = append(handled, v...) },
		BlockOnViolation: true,
	}, fixedClock())

	result, err := e.CheckAPITiming(metrics.APITimingMetric{Duration: 5000})
	require.ErrorIs(t, err, ErrBudgetExceeded)
	assert.False(t, result.Passed)
	// the handler ran despite blocking mode
	require.Len(t, handled, 1)
	assert.Equal(t, "apiResponseTime", handled[0].Metric)
}

func TestViolationsAccumulateRegardlessOfBlocking(t *testing.T) {
	e := NewEnforcer(Default(), Options{BlockOnViolation: true}, fixedClock())
	_, _ = e.CheckAPITiming(metrics.APITimingMetric{Duration: 5000})
	_, _ = e.CheckAPITiming(metrics.APITimingMetric{Duration: 6000})
	assert.Len(t, e.Violations(), 2)
}

func TestUpdateBudgetAffectsSubsequentChecksOnly(t *testing.T) {
	e := NewEnforcer(Default(), Options{}, fixedClock())

	result, _ := e.CheckAPITiming(metrics.APITimingMetric{Duration: 1500})
	assert.False(t, result.Passed)

	ceiling := 2000.0
	e.UpdateBudget(Patch{APIResponseTime: &ceiling})

	result, _ = e.CheckAPITiming(metrics.APITimingMetric{Duration: 1500})
	assert.True(t, result.Passed)
	assert.Equal(t, 2000.0, e.Budget().APIResponseTime)
	// untouched fields survive the merge
	assert.Equal(t, 2500.0, e.Budget().LCP)
}

func TestCheckMemory(t *testing.T) {
	e := NewEnforcer(Default(), Options{}, fixedClock())
	result, _ := e.CheckMemory(metrics.MemoryUsageMetric{
		UsedJSHeapSize:  95,
		JSHeapSizeLimit: 100,
		DOMNodeCount:    6000,
	})
	require.Len(t, result.Violations, 2)
	names := []string{result.Violations[0].Metric, result.Violations[1].Metric}
	assert.Contains(t, names, "heapSizeLimit")
	assert.Contains(t, names, "domNodeCount")
}

func TestCheckErrorRate(t *testing.T) {
	e := NewEnforcer(Default(), Options{}, fixedClock())
	result, _ := e.CheckErrorRate(metrics.ErrorRateStats{ErrorRate: 12})
	require.Len(t, result.Violations, 1)
	// 12/5 = 2.4 is critical
	assert.Equal(t, metrics.SeverityCritical, result.Violations[0].Severity)
}

func TestCheckAllFansOut(t *testing.T) {
	e := NewEnforcer(Default(), Options{}, fixedClock())
	weight := int64(6 << 20)
	stats := metrics.ErrorRateStats{ErrorRate: 7}
	result, err := e.CheckAll(Snapshot{
		Vitals: map[metrics.VitalName]metrics.WebVitalsMetric{
			metrics.VitalLCP: {Name: metrics.VitalLCP, Value: 4000},
			metrics.VitalCLS: {Name: metrics.VitalCLS, Value: 0.05},
		},
		Timings:    []metrics.APITimingMetric{{Duration: 1200}, {Duration: 300}},
		ErrorStats: &stats,
		PageWeight: &weight,
		Executions: []metrics.ExecutionMetric{
			{Duration: 80},
			{Duration: 700, IsLongTask: true}, // long tasks are skipped
		},
	})
	require.NoError(t, err)
	// LCP, one timing, error rate, page weight, one execution
	assert.Len(t, result.Violations, 5)
}

func TestZeroBudgetDisablesCheck(t *testing.T) {
	e := NewEnforcer(Budget{}, Options{}, fixedClock())
	result, _ := e.CheckAPITiming(metrics.APITimingMetric{Duration: 99999})
	assert.True(t, result.Passed)
}
