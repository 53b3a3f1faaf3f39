// Package metrics defines the metric records produced by the telemetry collectors.
package metrics

// VitalName identifies one of the tracked Core Web Vitals.
type VitalName string

const (
	VitalLCP VitalName = "LCP" // Largest Contentful Paint, milliseconds
	VitalFID VitalName = "FID" // First Input Delay, milliseconds
	VitalCLS VitalName = "CLS" // Cumulative Layout Shift, unitless score
)

// Rating classifies a web-vital observation against its thresholds.
type Rating string

const (
	RatingGood             Rating = "good"
	RatingNeedsImprovement Rating = "needs-improvement"
	RatingPoor             Rating = "poor"
)

// ErrorType categorizes a recorded error.
type ErrorType string

const (
	ErrorTypeNetwork ErrorType = "network"
	ErrorTypeAPI     ErrorType = "api"
	ErrorTypeClient  ErrorType = "client"
)

// ResourceType classifies a loaded asset.
type ResourceType string

const (
	ResourceImage      ResourceType = "image"
	ResourceScript     ResourceType = "script"
	ResourceStylesheet ResourceType = "stylesheet"
	ResourceFont       ResourceType = "font"
	ResourceOther      ResourceType = "other"
)

// WebVitalsMetric is a single classified web-vital observation.
type WebVitalsMetric struct {
	Name      VitalName `json:"name"`
	Value     float64   `json:"value"`
	Rating    Rating    `json:"rating"`
	Timestamp int64     `json:"timestamp"`
}

// APITimingMetric records one completed request lifecycle.
type APITimingMetric struct {
	Endpoint   string  `json:"endpoint"`
	Method     string  `json:"method"`
	StatusCode int     `json:"status_code"`
	Duration   float64 `json:"duration"` // milliseconds
	IsSlow     bool    `json:"is_slow"`
	Timestamp  int64   `json:"timestamp"`
}

// LatencyPercentiles holds interpolated request-duration percentiles.
type LatencyPercentiles struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// ErrorMetric records one observed error.
type ErrorMetric struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Endpoint   string    `json:"endpoint,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Timestamp  int64     `json:"timestamp"`
}

// ErrorRateStats is the derived error-rate view, recomputed on demand.
type ErrorRateStats struct {
	TotalRequests int64               `json:"total_requests"`
	TotalErrors   int64               `json:"total_errors"`
	ErrorRate     float64             `json:"error_rate"` // percentage, 0-100
	ErrorsByType  map[ErrorType]int64 `json:"errors_by_type"`
}

// ResourceLoadMetric records one classified asset load.
type ResourceLoadMetric struct {
	URL       string       `json:"url"`
	Type      ResourceType `json:"type"`
	Duration  float64      `json:"duration"` // milliseconds
	Size      int64        `json:"size"`     // bytes
	Cached    bool         `json:"cached"`
	Failed    bool         `json:"failed"`
	IsSlow    bool         `json:"is_slow"`
	Timestamp int64        `json:"timestamp"`
}

// ResourceTypeStats aggregates loads of one resource type.
type ResourceTypeStats struct {
	Count           int64   `json:"count"`
	TotalSize       int64   `json:"total_size"`
	AverageDuration float64 `json:"average_duration"`
}

// ExecutionMetric records one timed code section or long task.
type ExecutionMetric struct {
	FunctionName string  `json:"function_name"`
	Duration     float64 `json:"duration"` // milliseconds
	IsSlow       bool    `json:"is_slow"`
	IsLongTask   bool    `json:"is_long_task"`
	Timestamp    int64   `json:"timestamp"`
}

// ExecutionStats summarizes attributed executions and passive long tasks.
type ExecutionStats struct {
	TotalExecutions  int64             `json:"total_executions"` // excludes long tasks
	SlowExecutions   int64             `json:"slow_executions"`
	LongTasks        int64             `json:"long_tasks"`
	SlowestByLongest []ExecutionMetric `json:"slowest"` // up to ten, descending by duration
}

// MemoryUsageMetric is one periodic heap/DOM sample.
type MemoryUsageMetric struct {
	UsedJSHeapSize   int64 `json:"used_js_heap_size"`
	TotalJSHeapSize  int64 `json:"total_js_heap_size"`
	JSHeapSizeLimit  int64 `json:"js_heap_size_limit"`
	DOMNodeCount     int64 `json:"dom_node_count"`
	ExceedsThreshold bool  `json:"exceeds_threshold"`
	Timestamp        int64 `json:"timestamp"`
}

// MemoryLeakIndicator is the derived leak heuristic over the last five samples.
type MemoryLeakIndicator struct {
	Detected             bool    `json:"detected"`
	GrowthRate           float64 `json:"growth_rate"` // bytes per second
	ConsecutiveIncreases int     `json:"consecutive_increases"`
	Timestamp            int64   `json:"timestamp"`
}

// ComponentMemoryUsage is an externally registered per-component size estimate.
type ComponentMemoryUsage struct {
	ComponentName string `json:"component_name"`
	EstimatedSize int64  `json:"estimated_size"`
	Timestamp     int64  `json:"timestamp"`
}

// Severity classifies a budget violation or alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)
