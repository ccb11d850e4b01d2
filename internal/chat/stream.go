package chat

import (
	"context"
	"strings"
	"sync"
)

// Stream delivers one assistant reply as it is produced.
//
// Chunks is closed once the reply content is complete. The consumer then
// calls Err (Collect does so) to confirm it read the whole reply; only after
// that confirmation is the turn remembered. A consumer that leaves early
// calls Close instead.
type Stream struct {
	chunks   chan string
	endOnce  sync.Once
	consumed chan struct{}
	ackOnce  sync.Once
	done     chan struct{}
	err      error
	cancel   context.CancelFunc
}

func newStream(cancel context.CancelFunc) *Stream {
	return &Stream{
		chunks:   make(chan string, 16),
		consumed: make(chan struct{}),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
}

func (s *Stream) Chunks() <-chan string { return s.chunks }

// Err confirms the reply was consumed, waits for the turn to end and reports
// why it ended. Call it after Chunks is closed.
func (s *Stream) Err() error {
	s.ackOnce.Do(func() { close(s.consumed) })
	<-s.done
	return s.err
}

// Close stops the turn. The reply is then not remembered.
func (s *Stream) Close() { s.cancel() }

// Collect drains the stream into one string.
func (s *Stream) Collect() (string, error) {
	var b strings.Builder
	for c := range s.chunks {
		b.WriteString(c)
	}
	return b.String(), s.Err()
}

func (s *Stream) emit(ctx context.Context, chunk string) error {
	if chunk == "" {
		return nil
	}
	select {
	case s.chunks <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// endContent closes Chunks and waits until the consumer has drained it and
// confirmed through Err, or ctx ends.
func (s *Stream) endContent(ctx context.Context) error {
	s.endOnce.Do(func() { close(s.chunks) })
	select {
	case <-s.consumed:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Stream) finish(err error) {
	s.err = err
	s.endOnce.Do(func() { close(s.chunks) })
	close(s.done)
}
