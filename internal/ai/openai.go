package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to any OpenAI compatible chat completions API,
// OpenRouter included.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

type OpenAIOptions struct {
	BaseURL string
	APIKey  string
	Model   string

	// extra headers sent with every request (OpenRouter attribution)
	Headers map[string]string
}

func NewOpenAIProvider(opts OpenAIOptions) (*OpenAIProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, errors.New("openai: model is required")
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{
		Transport: headerTransport{headers: opts.Headers, next: http.DefaultTransport},
	}

	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// NewOpenRouterProvider is an OpenAIProvider pointed at OpenRouter.
func NewOpenRouterProvider(baseURL, apiKey, model, siteURL, appName string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	headers := map[string]string{}
	if siteURL != "" {
		headers["HTTP-Referer"] = siteURL
	}
	if appName != "" {
		headers["X-Title"] = appName
	}
	return NewOpenAIProvider(OpenAIOptions{BaseURL: baseURL, APIKey: apiKey, Model: model, Headers: headers})
}

type headerTransport struct {
	headers map[string]string
	next    http.RoundTripper
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range t.headers {
			req.Header.Set(k, v)
		}
	}
	return t.next.RoundTrip(req)
}

func (p *OpenAIProvider) request(messages []Message, tools []Tool, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{Model: p.model, Stream: stream}
	for _, m := range messages {
		om := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.Role == RoleTool {
			om.Name = m.Name
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		req.Messages = append(req.Messages, om)
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return req
}

func rawArgs(s string) json.RawMessage {
	if strings.TrimSpace(s) == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(s)
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, tools []Tool) (Message, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(messages, tools, false))
	if err != nil {
		return Message{}, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Message{}, errors.New("openai: empty response")
	}

	msg := resp.Choices[0].Message
	out := Message{Role: RoleAssistant, Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: rawArgs(tc.Function.Arguments),
		})
	}
	return out, nil
}

// pendingCall accumulates streamed tool call fragments keyed by index.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// StreamChat streams content deltas; tool calls are emitted once, complete,
// when the stream ends.
func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []Message, tools []Tool) (<-chan Delta, <-chan error) {
	deltas := make(chan Delta, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(deltas)
		defer close(errs)

		stream, err := p.client.CreateChatCompletionStream(ctx, p.request(messages, tools, true))
		if err != nil {
			errs <- fmt.Errorf("openai: %w", err)
			return
		}
		defer stream.Close()

		pending := map[int]*pendingCall{}
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errs <- fmt.Errorf("openai: %w", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}

			delta := resp.Choices[0].Delta
			for _, tc := range delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				pc, ok := pending[idx]
				if !ok {
					pc = &pendingCall{}
					pending[idx] = pc
				}
				if tc.ID != "" {
					pc.id = tc.ID
				}
				if tc.Function.Name != "" {
					pc.name = tc.Function.Name
				}
				pc.args.WriteString(tc.Function.Arguments)
			}
			if delta.Content != "" {
				if !send(ctx, deltas, Delta{Content: delta.Content}) {
					errs <- ctx.Err()
					return
				}
			}
		}

		if len(pending) == 0 {
			return
		}
		idxs := make([]int, 0, len(pending))
		for i := range pending {
			idxs = append(idxs, i)
		}
		sort.Ints(idxs)

		calls := make([]ToolCall, 0, len(idxs))
		for _, i := range idxs {
			pc := pending[i]
			id := pc.id
			if id == "" {
				id = fmt.Sprintf("call_%d_%d", time.Now().UnixNano(), i)
			}
			calls = append(calls, ToolCall{ID: id, Name: pc.name, Arguments: rawArgs(pc.args.String())})
		}
		if !send(ctx, deltas, Delta{ToolCalls: calls}) {
			errs <- ctx.Err()
		}
	}()

	return deltas, errs
}
