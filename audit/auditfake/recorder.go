package auditfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/audit"
)

var _ audit.Sink = (*Recorder)(nil)

// Recorder keeps every event it is given. Err, when set, is returned from
// Record after the event is kept.
type Recorder struct {
	mu     sync.Mutex
	events []audit.Event
	Err    error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Record(_ context.Context, event audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Err
}

func (r *Recorder) Events() []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Event(nil), r.events...)
}

func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
