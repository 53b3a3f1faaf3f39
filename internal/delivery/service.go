// Package delivery queues metric envelopes and ships them to the collector
// endpoint in batches, with bounded retry on failure.
package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
)

const (
	// DefaultMaxQueueSize is the queue capacity; reaching it triggers an
	// immediate flush.
	DefaultMaxQueueSize = 100

	// DefaultFlushInterval is the auto-flush period.
	DefaultFlushInterval = 10 * time.Second

	defaultSendTimeout = 10 * time.Second
)

// Sender delivers one batch to the collector endpoint.
type Sender interface {
	Send(ctx context.Context, endpoint string, payload metrics.BatchPayload) error
}

// Archive receives envelopes that fall off the bounded retry window. Delivery
// to the archive is best-effort.
type Archive interface {
	Store(ctx context.Context, batchID string, envelopes []metrics.Envelope) error
}

// Config configures a Service.
type Config struct {
	Endpoint      string
	MaxQueueSize  int
	FlushInterval time.Duration
	SendTimeout   time.Duration
	UserAgent     string
	Page          string
}

// Stats is a point-in-time view of the delivery pipeline.
type Stats struct {
	Queued         int    `json:"queued"`
	Enqueued       uint64 `json:"enqueued"`
	FlushedBatches uint64 `json:"flushed_batches"`
	Delivered      uint64 `json:"delivered"`
	FailedAttempts uint64 `json:"failed_attempts"`
	Retried        uint64 `json:"retried"`
	Dropped        uint64 `json:"dropped"`
	Archived       uint64 `json:"archived"`
	ClientID       string `json:"client_id"`
}

// Service is the unified sink behind every collector. Envelopes accumulate in
// a bounded in-memory queue; a capacity trigger or the auto-flush timer
// snapshots the queue and sends it asynchronously. A failed batch is
// re-queued ahead of newer envelopes, bounded by the queue capacity; the
// cut-off remainder goes to the archive when one is configured.
type Service struct {
	mu       sync.Mutex
	queue    []metrics.Envelope
	inFlight bool
	rerun    bool

	endpoint      string
	maxQueueSize  int
	flushInterval time.Duration
	sendTimeout   time.Duration
	clientCtx     metrics.ClientContext

	sender  Sender
	archive Archive
	now     func() time.Time

	stopFlush chan struct{}
	flushWG   sync.WaitGroup
	sendWG    sync.WaitGroup

	enqueued       uint64
	flushedBatches uint64
	delivered      uint64
	failedAttempts uint64
	retried        uint64
	dropped        uint64
	archived       uint64

	promQueueDepth prometheus.Gauge
	promEnqueued   *prometheus.CounterVec
	promFlushes    prometheus.Counter
	promFailures   prometheus.Counter
	promDropped    prometheus.Counter
}

// NewService creates a delivery service. A nil sender together with an empty
// endpoint makes every flush a no-op, which keeps the agent constructible
// without a collector. A nil registerer uses the default Prometheus registry.
func NewService(cfg Config, sender Sender, archive Archive, reg prometheus.Registerer, now func() time.Time) *Service {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultMaxQueueSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if now == nil {
		now = time.Now
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	s := &Service{
		endpoint:      cfg.Endpoint,
		maxQueueSize:  cfg.MaxQueueSize,
		flushInterval: cfg.FlushInterval,
		sendTimeout:   cfg.SendTimeout,
		clientCtx: metrics.ClientContext{
			ClientID:  uuid.NewString(),
			UserAgent: cfg.UserAgent,
			URL:       cfg.Page,
		},
		sender:  sender,
		archive: archive,
		now:     now,
	}

	s.promQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "telemetry_queue_depth",
		Help: "Envelopes currently queued for delivery",
	})
	s.promEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_envelopes_enqueued_total",
		Help: "Envelopes accepted into the delivery queue",
	}, []string{"type"})
	s.promFlushes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_flushes_total",
		Help: "Flush attempts that snapshotted a non-empty queue",
	})
	s.promFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_delivery_failures_total",
		Help: "Batch deliveries that failed",
	})
	s.promDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_envelopes_dropped_total",
		Help: "Envelopes dropped past the bounded retry window",
	})
	reg.MustRegister(s.promQueueDepth, s.promEnqueued, s.promFlushes, s.promFailures, s.promDropped)

	return s
}

// SetPage updates the current-page URL shipped with subsequent batches.
func (s *Service) SetPage(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientCtx.URL = url
}

// Enqueue wraps a metric in an envelope and queues it. Reaching capacity
// triggers an immediate flush, so the queue never stays above its bound for
// more than one synchronous step.
func (s *Service) Enqueue(t metrics.EnvelopeType, data any) {
	s.mu.Lock()
	s.queue = append(s.queue, metrics.Envelope{
		Type:      t,
		Data:      data,
		Timestamp: s.now().UnixMilli(),
	})
	s.enqueued++
	full := len(s.queue) >= s.maxQueueSize
	s.promQueueDepth.Set(float64(len(s.queue)))
	s.mu.Unlock()

	s.promEnqueued.WithLabelValues(string(t)).Inc()
	if full {
		s.Flush()
	}
}

// Flush snapshots and clears the queue, then delivers the snapshot
// asynchronously. With an empty queue or no endpoint it is a no-op. Flushes
// are serialized by an in-flight flag; a trigger that races an outstanding
// delivery marks a rerun instead of double-sending.
func (s *Service) Flush() {
	batch, ok := s.takeBatch()
	if !ok {
		return
	}
	s.sendWG.Add(1)
	go func() {
		defer s.sendWG.Done()
		s.deliver(batch)
	}()
}

// FlushSync delivers the current queue inline, waiting first for any
// outstanding delivery. Used for the final flush on shutdown.
func (s *Service) FlushSync() {
	s.sendWG.Wait()
	if batch, ok := s.takeBatch(); ok {
		s.deliver(batch)
	}
}

func (s *Service) takeBatch() ([]metrics.Envelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		s.rerun = true
		return nil, false
	}
	if len(s.queue) == 0 || s.endpoint == "" || s.sender == nil {
		return nil, false
	}
	batch := s.queue
	s.queue = nil
	s.inFlight = true
	s.flushedBatches++
	s.promQueueDepth.Set(0)
	s.promFlushes.Inc()
	return batch, true
}

func (s *Service) deliver(batch []metrics.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()

	payload := metrics.BatchPayload{
		BatchID:       uuid.NewString(),
		Metrics:       batch,
		ClientContext: s.clientContext(),
	}
	err := s.sender.Send(ctx, s.endpoint, payload)

	var overflow []metrics.Envelope
	s.mu.Lock()
	s.inFlight = false
	if err != nil {
		s.failedAttempts++
		retained := batch
		if len(retained) > s.maxQueueSize {
			overflow = retained[:len(retained)-s.maxQueueSize]
			retained = retained[len(retained)-s.maxQueueSize:]
		}
		// Retried entries go ahead of whatever arrived during the failed
		// attempt, preserving rough chronological order.
		s.queue = append(retained, s.queue...)
		s.retried += uint64(len(retained))
		s.promQueueDepth.Set(float64(len(s.queue)))
	} else {
		s.delivered += uint64(len(batch))
	}
	rerun := s.rerun && err == nil
	s.rerun = false
	s.mu.Unlock()

	if err != nil {
		s.promFailures.Inc()
		log.Warnf("batch delivery failed, re-queued %d envelope(s): %v", min(len(batch), s.maxQueueSize), err)
		s.handleOverflow(overflow)
	} else {
		log.Debugf("delivered batch of %d envelope(s)", len(batch))
	}
	if rerun {
		s.Flush()
	}
}

// handleOverflow archives envelopes cut off by the retry bound, or counts
// them as dropped when no archive is configured.
func (s *Service) handleOverflow(overflow []metrics.Envelope) {
	if len(overflow) == 0 {
		return
	}
	s.promDropped.Add(float64(len(overflow)))
	if s.archive == nil {
		s.mu.Lock()
		s.dropped += uint64(len(overflow))
		s.mu.Unlock()
		log.Warnf("dropped %d envelope(s) past retry bound", len(overflow))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()
	if err := s.archive.Store(ctx, uuid.NewString(), overflow); err != nil {
		s.mu.Lock()
		s.dropped += uint64(len(overflow))
		s.mu.Unlock()
		log.Warnf("failed to archive %d overflow envelope(s): %v", len(overflow), err)
		return
	}
	s.mu.Lock()
	s.archived += uint64(len(overflow))
	s.mu.Unlock()
}

// StartAutoFlush launches the periodic flush timer. Idempotent.
func (s *Service) StartAutoFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopFlush != nil {
		return
	}
	s.stopFlush = make(chan struct{})
	s.flushWG.Add(1)
	go s.autoFlush(s.stopFlush)
}

// StopAutoFlush cancels the timer without flushing. Safe to call when stopped.
func (s *Service) StopAutoFlush() {
	s.mu.Lock()
	stop := s.stopFlush
	s.stopFlush = nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	s.flushWG.Wait()
}

func (s *Service) autoFlush(stop <-chan struct{}) {
	defer s.flushWG.Done()
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// QueueLength returns the number of envelopes currently queued.
func (s *Service) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stats returns delivery pipeline counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Queued:         len(s.queue),
		Enqueued:       s.enqueued,
		FlushedBatches: s.flushedBatches,
		Delivered:      s.delivered,
		FailedAttempts: s.failedAttempts,
		Retried:        s.retried,
		Dropped:        s.dropped,
		Archived:       s.archived,
		ClientID:       s.clientCtx.ClientID,
	}
}

func (s *Service) clientContext() metrics.ClientContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientCtx
}
