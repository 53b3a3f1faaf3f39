package delivery

import (
	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
)

// The Service satisfies every collector's sink interface. Each report becomes
// one tagged envelope; alert variants wrap the metric with severity and a
// human-readable message before enqueuing.

// ReportWebVital enqueues a classified vital observation.
func (s *Service) ReportWebVital(m metrics.WebVitalsMetric) {
	s.Enqueue(metrics.EnvelopeWebVitals, m)
}

// TriggerWebVitalAlert enqueues an alert for a poor vital rating.
func (s *Service) TriggerWebVitalAlert(m metrics.WebVitalsMetric, message string) {
	s.Enqueue(metrics.EnvelopeAlert, metrics.Alert{
		Severity: metrics.SeverityCritical,
		Message:  message,
		Metric:   m,
	})
}

// ReportAPITiming enqueues one completed request timing.
func (s *Service) ReportAPITiming(m metrics.APITimingMetric) {
	s.Enqueue(metrics.EnvelopeAPITiming, m)
}

// ReportLatencyPercentiles enqueues a recomputed percentile summary.
func (s *Service) ReportLatencyPercentiles(p metrics.LatencyPercentiles) {
	s.Enqueue(metrics.EnvelopePercentiles, p)
}

// ReportError enqueues one recorded error.
func (s *Service) ReportError(m metrics.ErrorMetric) {
	s.Enqueue(metrics.EnvelopeError, m)
}

// TriggerErrorSpikeAlert enqueues an alert for an error-rate excursion.
func (s *Service) TriggerErrorSpikeAlert(stats metrics.ErrorRateStats, message string) {
	s.Enqueue(metrics.EnvelopeAlert, metrics.Alert{
		Severity: metrics.SeverityCritical,
		Message:  message,
		Metric:   stats,
	})
}

// ReportResourceLoad enqueues one classified asset load.
func (s *Service) ReportResourceLoad(m metrics.ResourceLoadMetric) {
	s.Enqueue(metrics.EnvelopeResource, m)
}

// ReportExecution enqueues one timed execution or long task.
func (s *Service) ReportExecution(m metrics.ExecutionMetric) {
	s.Enqueue(metrics.EnvelopeExecution, m)
}

// ReportMemoryUsage enqueues one heap/DOM sample.
func (s *Service) ReportMemoryUsage(m metrics.MemoryUsageMetric) {
	s.Enqueue(metrics.EnvelopeMemory, m)
}

// TriggerMemoryAlert enqueues a warning for a sample over threshold.
func (s *Service) TriggerMemoryAlert(m metrics.MemoryUsageMetric, message string) {
	s.Enqueue(metrics.EnvelopeAlert, metrics.Alert{
		Severity: metrics.SeverityWarning,
		Message:  message,
		Metric:   m,
	})
}

// ReportMemoryLeak enqueues a fired leak indicator.
func (s *Service) ReportMemoryLeak(ind metrics.MemoryLeakIndicator) {
	s.Enqueue(metrics.EnvelopeMemoryLeak, ind)
}
