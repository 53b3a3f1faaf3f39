package metrics

// EnvelopeType tags a queued metric for the collector endpoint.
type EnvelopeType string

const (
	EnvelopeWebVitals   EnvelopeType = "web_vitals"
	EnvelopeAPITiming   EnvelopeType = "api_timing"
	EnvelopePercentiles EnvelopeType = "api_percentiles"
	EnvelopeError       EnvelopeType = "error"
	EnvelopeResource    EnvelopeType = "resource_load"
	EnvelopeExecution   EnvelopeType = "execution"
	EnvelopeMemory      EnvelopeType = "memory_usage"
	EnvelopeMemoryLeak  EnvelopeType = "memory_leak"
	EnvelopeAlert       EnvelopeType = "alert"
)

// Envelope is transport-agnostic framing for one queued metric awaiting delivery.
type Envelope struct {
	Type      EnvelopeType `json:"type"`
	Data      any          `json:"data"`
	Timestamp int64        `json:"timestamp"`
}

// Alert wraps a metric with severity and a human-readable message before enqueuing.
type Alert struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Metric   any      `json:"metric,omitempty"`
}

// ClientContext is the ambient context shipped with every delivered batch.
type ClientContext struct {
	ClientID  string `json:"client_id"`
	UserAgent string `json:"user_agent"`
	URL       string `json:"url"`
}

// BatchPayload is the wire shape posted to the collector endpoint.
type BatchPayload struct {
	BatchID       string        `json:"batch_id"`
	Metrics       []Envelope    `json:"metrics"`
	ClientContext ClientContext `json:"client_context"`
}
