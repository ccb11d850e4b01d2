package chat

import (
	"context"
	"sync"
)

// sessionLocks serializes turns per session. Entries are dropped once no turn
// holds or waits for them.
type sessionLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	token chan struct{}
	refs  int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{entries: map[string]*lockEntry{}}
}

// Lock waits for the session lock or for ctx to end.
func (l *sessionLocks) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{token: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.token <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.token
			l.release(key, e)
		})
	}, nil
}

func (l *sessionLocks) release(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
