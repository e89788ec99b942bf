package tracker

import (
	"sync"

	"github.com/marcuspuchalla/co2-monitor/internal/model"
)

// Latest is the process-wide cell holding the newest sensor reading. The
// ingestion loop is its only writer; the API layer and the realtime stream
// read it. Update hooks must be registered before the ingestion loop starts.
type Latest struct {
	mu      sync.RWMutex
	reading model.Reading
	valid   bool
	hooks   []func(model.Reading)
}

// NewLatest returns an empty cell.
func NewLatest() *Latest {
	return &Latest{}
}

// Get returns the current reading. ok is false until the first publish.
func (l *Latest) Get() (r model.Reading, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reading, l.valid
}

// OnUpdate registers a hook invoked after every publish. Not safe to call
// once the ingestion loop is running.
func (l *Latest) OnUpdate(fn func(model.Reading)) {
	l.hooks = append(l.hooks, fn)
}

// Set publishes a new reading and fires the update hooks. Hooks run outside
// the lock so a slow consumer cannot block readers.
func (l *Latest) Set(r model.Reading) {
	l.mu.Lock()
	l.reading = r
	l.valid = true
	l.mu.Unlock()

	for _, fn := range l.hooks {
		fn(r)
	}
}
