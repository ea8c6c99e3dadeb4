package notifyfake

import (
	"sync"

	"github.com/jrsteele09/go-auth-client/notify"
)

var _ notify.Notifier = (*Recorder)(nil)

// Recorder keeps every notification it receives.
type Recorder struct {
	mu            sync.Mutex
	notifications []notify.Notification
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *Recorder) All() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.notifications...)
}

func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifications)
}

func (r *Recorder) Last() (notify.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return notify.Notification{}, false
	}
	return r.notifications[len(r.notifications)-1], true
}
