package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
)

type fakeSender struct {
	mu      sync.Mutex
	fail    bool
	batches []metrics.BatchPayload
}

func (f *fakeSender) Send(ctx context.Context, endpoint string, payload metrics.BatchPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("collector unreachable")
	}
	f.batches = append(f.batches, payload)
	return nil
}

func (f *fakeSender) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeSender) sent() []metrics.BatchPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]metrics.BatchPayload, len(f.batches))
	copy(out, f.batches)
	return out
}

// gatedSender parks its first Send until the gate opens, so a test can race a
// second flush against an in-flight delivery.
type gatedSender struct {
	mu      sync.Mutex
	gate    chan struct{}
	entered chan struct{}
	batches []metrics.BatchPayload
}

func (g *gatedSender) Send(ctx context.Context, endpoint string, payload metrics.BatchPayload) error {
	g.mu.Lock()
	gate := g.gate
	g.gate = nil
	g.mu.Unlock()
	if gate != nil {
		close(g.entered)
		<-gate
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.batches = append(g.batches, payload)
	return nil
}

func (g *gatedSender) sent() []metrics.BatchPayload {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]metrics.BatchPayload, len(g.batches))
	copy(out, g.batches)
	return out
}

type fakeArchive struct {
	mu     sync.Mutex
	stored []metrics.Envelope
}

func (f *fakeArchive) Store(ctx context.Context, batchID string, envelopes []metrics.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, envelopes...)
	return nil
}

func newTestService(t *testing.T, sender Sender, archive Archive, maxQueue int) *Service {
	t.Helper()
	return NewService(Config{
		Endpoint:     "https://collector.example.com/v1/metrics",
		MaxQueueSize: maxQueue,
		UserAgent:    "test-agent",
		Page:         "/editor",
	}, sender, archive, prometheus.NewRegistry(), nil)
}

func TestCapacityTriggersImmediateFlush(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(t, sender, nil, 5)

	for i := 0; i < 5; i++ {
		svc.Enqueue(metrics.EnvelopeError, metrics.ErrorMetric{Message: fmt.Sprintf("e%d", i)})
	}
	svc.sendWG.Wait()

	assert.Zero(t, svc.QueueLength())
	batches := sender.sent()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Metrics, 5)
	assert.Equal(t, "test-agent", batches[0].ClientContext.UserAgent)
	assert.Equal(t, "/editor", batches[0].ClientContext.URL)
}

func TestFlushNoopWithoutEndpoint(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(Config{MaxQueueSize: 10}, sender, nil, prometheus.NewRegistry(), nil)

	svc.Enqueue(metrics.EnvelopeError, metrics.ErrorMetric{Message: "x"})
	svc.FlushSync()

	assert.Equal(t, 1, svc.QueueLength())
	assert.Empty(t, sender.sent())
}

func TestFlushEmptyQueueNoop(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(t, sender, nil, 10)
	svc.FlushSync()
	assert.Empty(t, sender.sent())
	assert.Zero(t, svc.Stats().FlushedBatches)
}

func TestFailedBatchRequeuedAheadOfNewEnvelopes(t *testing.T) {
	sender := &fakeSender{fail: true}
	svc := newTestService(t, sender, nil, 10)

	svc.Enqueue(metrics.EnvelopeError, metrics.ErrorMetric{Message: "a"})
	svc.Enqueue(metrics.EnvelopeError, metrics.ErrorMetric{Message: "b"})
	svc.FlushSync()

	// the failed batch is back in the queue
	assert.Equal(t, 2, svc.QueueLength())
	assert.Equal(t, uint64(1), svc.Stats().FailedAttempts)

	svc.Enqueue(metrics.EnvelopeError, metrics.ErrorMetric{Message: "c"})
	sender.setFail(false)
	svc.FlushSync()

	batches := sender.sent()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Metrics, 3)
	var messages []string
	for _, env := range batches[0].Metrics {
		messages = append(messages, env.Data.(metrics.ErrorMetric).Message)
	}
	// retried entries precede the one enqueued after the failure
	assert.Equal(t, []string{"a", "b", "c"}, messages)
}

func TestRetryBoundOverflowGoesToArchive(t *testing.T) {
	sender := &fakeSender{fail: true}
	archive := &fakeArchive{}
	svc := newTestService(t, sender, archive, 2)

	// capacity flush of [a b] fails and re-queues both
	svc.Enqueue(metrics.EnvelopeError, metrics.ErrorMetric{Message: "a"})
	svc.Enqueue(metrics.EnvelopeError, metrics.ErrorMetric{Message: "b"})
	svc.sendWG.Wait()
	assert.Equal(t, 2, svc.QueueLength())

	// the next enqueue flushes [a b c]; on failure only the most recent
	// two fit the bound, the oldest is archived
	svc.Enqueue(metrics.EnvelopeError, metrics.ErrorMetric{Message: "c"})
	svc.sendWG.Wait()

	assert.Equal(t, 2, svc.QueueLength())
	archive.mu.Lock()
	defer archive.mu.Unlock()
	require.Len(t, archive.stored, 1)
	assert.Equal(t, "a", archive.stored[0].Data.(metrics.ErrorMetric).Message)
	assert.Equal(t, uint64(1), svc.Stats().Archived)
}

func TestRetryBoundOverflowDroppedWithoutArchive(t *testing.T) {
	sender := &fakeSender{fail: true}
	svc := newTestService(t, sender, nil, 2)

	svc.Enqueue(metrics.EnvelopeError, metrics.ErrorMetric{Message: "a"})
	svc.Enqueue(metrics.EnvelopeError, metrics.ErrorMetric{Message: "b"})
	svc.sendWG.Wait()
	svc.Enqueue(metrics.EnvelopeError, metrics.ErrorMetric{Message: "c"})
	svc.sendWG.Wait()

	assert.Equal(t, 2, svc.QueueLength())
	assert.Equal(t, uint64(1), svc.Stats().Dropped)
}

func TestFlushDuringInFlightDeliveryNeverDoubleSends(t *testing.T) {
	gate := make(chan struct{})
	sender := &gatedSender{gate: gate, entered: make(chan struct{})}
	svc := newTestService(t, sender, nil, 100)

	svc.Enqueue(metrics.EnvelopeError, metrics.ErrorMetric{Message: "first"})
	svc.Flush()
	<-sender.entered

	// arrives while the first delivery is parked inside Send; this flush must
	// mark a rerun instead of racing it
	svc.Enqueue(metrics.EnvelopeError, metrics.ErrorMetric{Message: "second"})
	svc.Flush()
	close(gate)
	svc.sendWG.Wait()

	var messages []string
	for _, batch := range sender.sent() {
		for _, env := range batch.Metrics {
			messages = append(messages, env.Data.(metrics.ErrorMetric).Message)
		}
	}
	assert.ElementsMatch(t, []string{"first", "second"}, messages)
	require.Len(t, sender.sent(), 2)
	assert.Zero(t, svc.QueueLength())
	assert.Equal(t, uint64(2), svc.Stats().Delivered)
}

func TestReporterEnvelopeTypes(t *testing.T) {
	svc := NewService(Config{MaxQueueSize: 100}, nil, nil, prometheus.NewRegistry(), nil)

	svc.ReportWebVital(metrics.WebVitalsMetric{Name: metrics.VitalLCP})
	svc.TriggerWebVitalAlert(metrics.WebVitalsMetric{Name: metrics.VitalLCP}, "poor LCP")
	svc.ReportAPITiming(metrics.APITimingMetric{})
	svc.ReportLatencyPercentiles(metrics.LatencyPercentiles{})
	svc.ReportError(metrics.ErrorMetric{})
	svc.TriggerErrorSpikeAlert(metrics.ErrorRateStats{}, "spike")
	svc.ReportResourceLoad(metrics.ResourceLoadMetric{})
	svc.ReportExecution(metrics.ExecutionMetric{})
	svc.ReportMemoryUsage(metrics.MemoryUsageMetric{})
	svc.TriggerMemoryAlert(metrics.MemoryUsageMetric{}, "over threshold")
	svc.ReportMemoryLeak(metrics.MemoryLeakIndicator{})

	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.queue, 11)
	assert.Equal(t, metrics.EnvelopeWebVitals, svc.queue[0].Type)
	assert.Equal(t, metrics.EnvelopeAlert, svc.queue[1].Type)
	alert, ok := svc.queue[1].Data.(metrics.Alert)
	require.True(t, ok)
	assert.Equal(t, metrics.SeverityCritical, alert.Severity)
	assert.Equal(t, "poor LCP", alert.Message)

	memAlert := svc.queue[9].Data.(metrics.Alert)
	assert.Equal(t, metrics.SeverityWarning, memAlert.Severity)
}

func TestAutoFlushStartStopIdempotent(t *testing.T) {
	svc := NewService(Config{
		Endpoint:      "https://collector.example.com",
		FlushInterval: time.Hour,
	}, &fakeSender{}, nil, prometheus.NewRegistry(), nil)

	svc.StartAutoFlush()
	svc.StartAutoFlush()
	svc.StopAutoFlush()
	svc.StopAutoFlush()
}

func TestStopAutoFlushDoesNotFlush(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(t, sender, nil, 100)
	svc.Enqueue(metrics.EnvelopeError, metrics.ErrorMetric{Message: "pending"})
	svc.StartAutoFlush()
	svc.StopAutoFlush()

	assert.Equal(t, 1, svc.QueueLength())
	assert.Empty(t, sender.sent())
}
