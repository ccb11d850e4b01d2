// Package chat runs assistant turns: it assembles the model context from
// memory and the knowledge index, drives the tool loop and streams the reply.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/suPer8Hu/hotel-concierge/internal/ai"
	"github.com/suPer8Hu/hotel-concierge/internal/apperr"
	"github.com/suPer8Hu/hotel-concierge/internal/common"
	"github.com/suPer8Hu/hotel-concierge/internal/knowledge"
	"github.com/suPer8Hu/hotel-concierge/internal/memory"
	"github.com/suPer8Hu/hotel-concierge/internal/tools"
	"go.uber.org/zap"
)

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]knowledge.Match, error)
}

type ToolRunner interface {
	Schema() []ai.Tool
	Dispatch(ctx context.Context, call ai.ToolCall) (tools.Result, error)
}

type Options struct {
	// ContextWindow is how many remembered messages are sent to the model.
	ContextWindow int
	TopK          int
	MaxToolRounds int
	Now           func() time.Time
}

type turnState string

const (
	stateReceived         turnState = "received"
	stateContextAssembled turnState = "context_assembled"
	stateToolInvoked      turnState = "tool_invoked"
	stateStreaming        turnState = "streaming"
	stateCompleted        turnState = "completed"
	stateFailed           turnState = "failed"
	stateCancelled        turnState = "cancelled"
)

type Manager struct {
	provider ai.Provider
	tools    ToolRunner
	index    Retriever
	memory   memory.Store
	log      *zap.Logger
	opts     Options
	locks    *sessionLocks
}

func NewManager(provider ai.Provider, toolRunner ToolRunner, index Retriever, mem memory.Store, log *zap.Logger, opts Options) *Manager {
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = memory.DefaultMaxMessages
	}
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		provider: provider,
		tools:    toolRunner,
		index:    index,
		memory:   mem,
		log:      log,
		opts:     opts,
		locks:    newSessionLocks(),
	}
}

// NewSessionID returns a fresh ULID for a conversation.
func (m *Manager) NewSessionID() (string, error) {
	id, err := common.NewULID()
	if err != nil {
		return "", apperr.Internal(err, "generate session id")
	}
	return id, nil
}

func (m *Manager) History(ctx context.Context, sessionID string) ([]memory.Message, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperr.InvalidArgument("session_id is required")
	}
	msgs, err := m.memory.History(ctx, sessionID)
	if err != nil {
		return nil, apperr.Internal(err, "load history")
	}
	return msgs, nil
}

// Chat starts a turn and returns its reply stream. Turns of the same session
// run one after another; the returned stream is live immediately. The caller
// must finish the stream with Err, Collect or Close.
func (m *Manager) Chat(ctx context.Context, sessionID, message string) (*Stream, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperr.InvalidArgument("session_id is required")
	}
	if strings.TrimSpace(message) == "" {
		return nil, apperr.InvalidArgument("message is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	s := newStream(cancel)
	go func() {
		defer cancel()
		s.finish(m.turn(ctx, s, sessionID, message))
	}()
	return s, nil
}

func (m *Manager) turn(ctx context.Context, s *Stream, sessionID, message string) (err error) {
	log := m.log.With(zap.String("session_id", sessionID))
	start := m.opts.Now()
	log.Info("chat turn", zap.String("state", string(stateReceived)), zap.Int("message_len", len(message)))

	defer func() {
		switch {
		case err == nil:
			log.Info("chat turn", zap.String("state", string(stateCompleted)), zap.Duration("took", time.Since(start)))
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			log.Info("chat turn", zap.String("state", string(stateCancelled)))
		default:
			log.Error("chat turn", zap.String("state", string(stateFailed)), zap.Error(err))
		}
	}()

	unlock, err := m.locks.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	msgs, err := m.assemble(ctx, sessionID, message)
	if err != nil {
		return err
	}
	log.Debug("chat turn", zap.String("state", string(stateContextAssembled)), zap.Int("messages", len(msgs)))

	schema := m.tools.Schema()
	var answer strings.Builder
	for round := 0; ; round++ {
		reply, err := m.complete(ctx, s, msgs, schema, &answer)
		if err != nil {
			return err
		}
		if len(reply.ToolCalls) == 0 {
			break
		}
		if round >= m.opts.MaxToolRounds {
			return apperr.Internal(nil, "model exceeded %d tool rounds", m.opts.MaxToolRounds)
		}

		msgs = append(msgs, reply)
		for _, call := range reply.ToolCalls {
			log.Info("chat turn",
				zap.String("state", string(stateToolInvoked)),
				zap.String("tool", call.Name),
				zap.Int("round", round+1))
			res, err := m.tools.Dispatch(ctx, call)
			if err != nil {
				return err
			}
			msgs = append(msgs, res.Message())
		}
	}

	// a consumer that went away before reading the whole reply must not
	// leave the turn behind
	if err := s.endContent(ctx); err != nil {
		return err
	}
	now := m.opts.Now()
	if err := m.memory.Append(ctx, sessionID,
		memory.Message{Role: ai.RoleUser, Content: message, CreatedAt: now},
		memory.Message{Role: ai.RoleAssistant, Content: answer.String(), CreatedAt: now},
	); err != nil {
		return apperr.Internal(err, "save conversation")
	}
	return nil
}

// assemble builds the system prompt, remembered history and the new user
// message, oldest first.
func (m *Manager) assemble(ctx context.Context, sessionID, message string) ([]ai.Message, error) {
	history, err := m.memory.History(ctx, sessionID)
	if err != nil {
		return nil, apperr.Internal(err, "load history")
	}
	if len(history) > m.opts.ContextWindow {
		history = history[len(history)-m.opts.ContextWindow:]
	}

	matches, err := m.index.Retrieve(ctx, message, m.opts.TopK)
	if err != nil {
		return nil, err
	}
	excerpts := make([]string, len(matches))
	for i, mt := range matches {
		excerpts[i] = mt.Chunk.Content
	}

	system, err := renderSystemPrompt(m.opts.Now(), excerpts)
	if err != nil {
		return nil, apperr.Internal(err, "render system prompt")
	}

	msgs := make([]ai.Message, 0, len(history)+2)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: system})
	for _, h := range history {
		msgs = append(msgs, ai.Message{Role: h.Role, Content: h.Content})
	}
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: message})
	return msgs, nil
}

// complete runs one model round, forwarding content as it arrives. The
// returned message carries the round's content and any tool calls.
func (m *Manager) complete(ctx context.Context, s *Stream, msgs []ai.Message, schema []ai.Tool, answer *strings.Builder) (ai.Message, error) {
	out := ai.Message{Role: ai.RoleAssistant}

	sp, ok := m.provider.(ai.StreamProvider)
	if !ok {
		reply, err := m.provider.Chat(ctx, msgs, schema)
		if err != nil {
			return out, modelError(ctx, err)
		}
		if err := s.emit(ctx, reply.Content); err != nil {
			return out, err
		}
		answer.WriteString(reply.Content)
		reply.Role = ai.RoleAssistant
		return reply, nil
	}

	deltas, errs := sp.StreamChat(ctx, msgs, schema)
	var content strings.Builder
	streaming := false
	for d := range deltas {
		if d.Content != "" {
			if !streaming {
				streaming = true
				m.log.Debug("chat turn", zap.String("state", string(stateStreaming)))
			}
			if err := s.emit(ctx, d.Content); err != nil {
				// let the provider goroutine see the cancellation and exit
				for range deltas {
				}
				return out, err
			}
			content.WriteString(d.Content)
			answer.WriteString(d.Content)
		}
		out.ToolCalls = append(out.ToolCalls, d.ToolCalls...)
	}
	if err := <-errs; err != nil {
		return out, modelError(ctx, err)
	}
	out.Content = content.String()
	return out, nil
}

func modelError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return apperr.Internal(err, "model call failed")
}
