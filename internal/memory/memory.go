// Package memory keeps a bounded window of conversation messages per chat
// session. Appending past the window evicts the oldest messages.
package memory

import (
	"context"
	"time"
)

const DefaultMaxMessages = 100

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	// Append adds msgs to the end of the session window in one step.
	Append(ctx context.Context, sessionID string, msgs ...Message) error
	// History returns the window oldest first. Unknown sessions are empty.
	History(ctx context.Context, sessionID string) ([]Message, error)
}

func normalizeMax(n int) int {
	if n <= 0 {
		return DefaultMaxMessages
	}
	return n
}

func stamp(msgs []Message, now time.Time) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		out[i] = m
	}
	return out
}
