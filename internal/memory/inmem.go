package memory

import (
	"context"
	"sync"
	"time"
)

// InMemory is a process-local Store.
type InMemory struct {
	max int

	mu       sync.Mutex
	sessions map[string][]Message
}

func NewInMemory(maxMessages int) *InMemory {
	return &InMemory{max: normalizeMax(maxMessages), sessions: map[string][]Message{}}
}

func (s *InMemory) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	msgs = stamp(msgs, time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	cur := append(s.sessions[sessionID], msgs...)
	if over := len(cur) - s.max; over > 0 {
		// copy so the evicted prefix can be collected
		cur = append([]Message(nil), cur[over:]...)
	}
	s.sessions[sessionID] = cur
	return nil
}

func (s *InMemory) History(ctx context.Context, sessionID string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.sessions[sessionID]
	out := make([]Message, len(cur))
	copy(out, cur)
	return out, nil
}
