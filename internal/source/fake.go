package source

import (
	"sync"
	"time"
)

// Fake is an in-process source that emits events synchronously. It backs unit
// tests and the agent's demo mode.
type Fake struct {
	mu       sync.Mutex
	handlers map[EventKind]map[int]Handler
	nextID   int
	memory   MemorySnapshot
	hasMem   bool
	clock    func() time.Time
}

// NewFake returns a Fake with the real clock and no memory capability.
func NewFake() *Fake {
	return &Fake{
		handlers: make(map[EventKind]map[int]Handler),
		clock:    time.Now,
	}
}

// SetClock overrides the monotonic clock, for deterministic tests.
func (f *Fake) SetClock(clock func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = clock
}

// SetMemory installs the snapshot returned by MemoryStats.
func (f *Fake) SetMemory(snap MemorySnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memory = snap
	f.hasMem = true
}

// Subscribe registers a handler for one event kind.
func (f *Fake) Subscribe(kind EventKind, h Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.handlers[kind] == nil {
		f.handlers[kind] = make(map[int]Handler)
	}
	id := f.nextID
	f.nextID++
	f.handlers[kind][id] = h

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[kind], id)
	}
}

// Emit delivers an event synchronously to every subscriber of the kind.
func (f *Fake) Emit(kind EventKind, event any) {
	f.mu.Lock()
	hs := make([]Handler, 0, len(f.handlers[kind]))
	for _, h := range f.handlers[kind] {
		hs = append(hs, h)
	}
	f.mu.Unlock()

	for _, h := range hs {
		h(event)
	}
}

// MemoryStats returns the installed snapshot, if any.
func (f *Fake) MemoryStats() (MemorySnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memory, f.hasMem
}

// Now reads the configured clock.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	clock := f.clock
	f.mu.Unlock()
	return clock()
}
