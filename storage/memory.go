package storage

import (
	"sync"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

const subscriberQueueSize = 16

var (
	_ Storage      = (*Memory)(nil)
	_ ChangeSource = (*Memory)(nil)
)

// Memory is an in-process Storage. Several session stores sharing one Memory
// behave like browser tabs sharing localStorage: each write is announced to
// every subscriber asynchronously.
type Memory struct {
	mu          sync.RWMutex
	values      map[string]string
	subscribers map[int]*subscriber
	nextID      int
}

type subscriber struct {
	queue chan Change
	done  chan struct{}
}

func NewMemory() *Memory {
	return &Memory{
		values:      make(map[string]string),
		subscribers: make(map[int]*subscriber),
	}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return "", apperrors.Wrapf(apperrors.ErrKeyNotFound, "key %q", key)
	}
	return value, nil
}

func (m *Memory) Set(key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	m.announce(Change{Key: key})
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	_, existed := m.values[key]
	delete(m.values, key)
	m.mu.Unlock()
	if existed {
		m.announce(Change{Key: key})
	}
	return nil
}

// Subscribe registers fn. fn runs on a goroutine owned by the subscription,
// one change at a time.
func (m *Memory) Subscribe(fn func(Change)) (func(), error) {
	sub := &subscriber{
		queue: make(chan Change, subscriberQueueSize),
		done:  make(chan struct{}),
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = sub
	m.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case change := <-sub.queue:
				fn(change)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
			close(sub.done)
		})
	}, nil
}

// announce never blocks a writer. A full queue already holds a pending change
// whose receiver will re-read the latest value, so dropping is safe.
func (m *Memory) announce(change Change) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sub := range m.subscribers {
		select {
		case sub.queue <- change:
		default:
		}
	}
}
