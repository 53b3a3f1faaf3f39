package execution

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
	"github.com/pranaysuyash/caption-art-sub009/internal/source"
)

type fakeSink struct {
	executions []metrics.ExecutionMetric
}

func (f *fakeSink) ReportExecution(m metrics.ExecutionMetric) { f.executions = append(f.executions, m) }

type fakeClock struct {
	mu sync.Mutex
	at time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{at: time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}

func TestStartEndMeasure(t *testing.T) {
	clock := newFakeClock()
	sink := &fakeSink{}
	tracker := NewTracker(sink, clock.now)

	token := tracker.StartMeasure("renderCanvas")
	clock.advance(80 * time.Millisecond)
	m := tracker.EndMeasure(token, "renderCanvas")

	require.NotNil(t, m)
	assert.Equal(t, 80.0, m.Duration)
	assert.True(t, m.IsSlow)
	assert.False(t, m.IsLongTask)
	assert.Len(t, sink.executions, 1)
}

func TestUnmatchedTokenReturnsNil(t *testing.T) {
	tracker := NewTracker(nil, nil)
	assert.Nil(t, tracker.EndMeasure("bogus", "renderCanvas"))
}

func TestMeasureRecordsOnError(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(nil, clock.now)

	wantErr := errors.New("encode failed")
	err := tracker.Measure("exportFrame", func() error {
		clock.advance(10 * time.Millisecond)
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	require.Len(t, tracker.Executions(), 1)
	assert.Equal(t, 10.0, tracker.Executions()[0].Duration)
}

func TestMeasureRecordsOnPanic(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(nil, clock.now)

	require.PanicsWithValue(t, "boom", func() {
		_ = tracker.Measure("explode", func() error {
			clock.advance(5 * time.Millisecond)
			panic("boom")
		})
	})
	require.Len(t, tracker.Executions(), 1)
	assert.Equal(t, 5.0, tracker.Executions()[0].Duration)
}

func TestLongTaskSeparation(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(nil, clock.now)

	token := tracker.StartMeasure("slowFilter")
	clock.advance(120 * time.Millisecond)
	tracker.EndMeasure(token, "slowFilter")

	tracker.HandleLongTask(source.LongTaskEvent{Duration: 30})

	slow := tracker.SlowExecutions()
	require.Len(t, slow, 1)
	assert.Equal(t, "slowFilter", slow[0].FunctionName)

	long := tracker.LongTasks()
	require.Len(t, long, 1)
	assert.Equal(t, "long-task", long[0].FunctionName)
	// long tasks are always flagged slow even under the threshold
	assert.True(t, long[0].IsSlow)
}

func TestCalculateStats(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(nil, clock.now)

	for i, d := range []time.Duration{10, 60, 200, 5, 90} {
		token := tracker.StartMeasure("fn")
		clock.advance(d * time.Millisecond)
		require.NotNil(t, tracker.EndMeasure(token, "fn"), "measurement %d", i)
	}
	tracker.HandleLongTask(source.LongTaskEvent{Duration: 500})

	stats := tracker.CalculateStats()
	assert.Equal(t, int64(5), stats.TotalExecutions) // long task excluded
	assert.Equal(t, int64(3), stats.SlowExecutions)
	assert.Equal(t, int64(1), stats.LongTasks)
	require.NotEmpty(t, stats.SlowestByLongest)
	assert.Equal(t, 500.0, stats.SlowestByLongest[0].Duration)
	for i := 1; i < len(stats.SlowestByLongest); i++ {
		assert.GreaterOrEqual(t, stats.SlowestByLongest[i-1].Duration, stats.SlowestByLongest[i].Duration)
	}
}

func TestStatsCapsSlowestAtTen(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(nil, clock.now)
	for i := 0; i < 15; i++ {
		token := tracker.StartMeasure("fn")
		clock.advance(time.Duration(i+1) * time.Millisecond)
		tracker.EndMeasure(token, "fn")
	}
	stats := tracker.CalculateStats()
	assert.Len(t, stats.SlowestByLongest, 10)
	assert.Equal(t, 15.0, stats.SlowestByLongest[0].Duration)
}
