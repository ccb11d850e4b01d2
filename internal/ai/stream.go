package ai

import "context"

// Delta is one streamed fragment. Content deltas arrive as the model produces
// them; ToolCalls are only emitted once a call is complete.
type Delta struct {
	Content   string
	ToolCalls []ToolCall
}

// StreamProvider is an optional interface. Providers may implement streaming chat.
// Both channels are closed when streaming ends; at most one error is sent.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message, tools []Tool) (<-chan Delta, <-chan error)
}

// send delivers d unless ctx is done first.
func send(ctx context.Context, out chan<- Delta, d Delta) bool {
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}
