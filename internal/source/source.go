// Package source abstracts the host's performance instrumentation so collectors
// can be driven by a real browser bridge in production and a fake in tests.
package source

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// EventKind selects a subscription channel on the telemetry source.
type EventKind string

const (
	KindVital    EventKind = "vital"     // load / interactivity / layout-shift observations
	KindLongTask EventKind = "long-task" // unattributed main-thread blocking spans
	KindResource EventKind = "resource"  // resource-timing entries
)

// VitalEvent is a raw web-vital observation before classification.
type VitalEvent struct {
	Name  string
	Value float64
}

// LongTaskEvent is an unattributed main-thread blocking span.
type LongTaskEvent struct {
	Duration float64 // milliseconds
}

// ResourceEvent is a raw resource-timing entry.
type ResourceEvent struct {
	URL          string
	Initiator    string
	Duration     float64 // milliseconds
	TransferSize int64
	DecodedSize  int64
}

// MemorySnapshot is a point-in-time heap and DOM reading.
type MemorySnapshot struct {
	UsedJSHeapSize  int64
	TotalJSHeapSize int64
	JSHeapSizeLimit int64
	DOMNodeCount    int64
}

// Handler receives one event; the concrete payload depends on the subscribed kind.
type Handler func(event any)

// Source is the injected host capability. Subscribe returns an unsubscribe
// function that must be safe to call more than once.
type Source interface {
	Subscribe(kind EventKind, h Handler) (unsubscribe func())
	MemoryStats() (MemorySnapshot, bool)
	Now() time.Time
}

// noop is the degraded source used when no host capability is available.
type noop struct{}

// Noop returns an inert source. Collectors built on it produce no passive
// samples but remain fully constructible.
func Noop() Source {
	log.Warn("telemetry source unavailable, passive observation disabled")
	return noop{}
}

func (noop) Subscribe(EventKind, Handler) func() { return func() {} }
func (noop) MemoryStats() (MemorySnapshot, bool) { return MemorySnapshot{}, false }
func (noop) Now() time.Time                      { return time.Now() }
