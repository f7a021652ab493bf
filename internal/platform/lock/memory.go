package lock

import (
	"context"
	"sync"
)

// InMemory serializes holders of the same key inside one process. Waiters are
// woken in no particular order.
type InMemory struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewInMemory() *InMemory {
	return &InMemory{slots: make(map[string]*slot)}
}

func (l *InMemory) Acquire(ctx context.Context, key string) (Lease, error) {
	l.mu.Lock()
	sl, ok := l.slots[key]
	if !ok {
		sl = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = sl
	}
	sl.refs++
	l.mu.Unlock()

	select {
	case sl.ch <- struct{}{}:
		return &memoryLease{locker: l, key: key, slot: sl}, nil
	case <-ctx.Done():
		l.unref(key, sl)
		return nil, timeoutError(key, ctx.Err())
	}
}

func (l *InMemory) unref(key string, sl *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports the number of keys with a holder or waiter.
func (l *InMemory) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

type memoryLease struct {
	once   sync.Once
	locker *InMemory
	key    string
	slot   *slot
}

func (m *memoryLease) Release(context.Context) error {
	m.once.Do(func() {
		<-m.slot.ch
		m.locker.unref(m.key, m.slot)
	})
	return nil
}
