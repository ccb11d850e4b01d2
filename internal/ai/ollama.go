package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1:latest"
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type ollamaChatReq struct {
	Model    string       `json:"model"`
	Messages []ollamaMsg  `json:"messages"`
	Tools    []ollamaTool `json:"tools,omitempty"`
	Stream   bool         `json:"stream"`
}

type ollamaMsg struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaTool struct {
	Type     string         `json:"type"`
	Function ollamaFunction `json:"function"`
}

type ollamaFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Done    bool      `json:"done"`
	Error   string    `json:"error,omitempty"`
}

func (p *OllamaProvider) request(messages []Message, tools []Tool, stream bool) ollamaChatReq {
	req := ollamaChatReq{Model: p.Model, Stream: stream}
	req.Messages = make([]ollamaMsg, 0, len(messages))
	for _, m := range messages {
		om := ollamaMsg{Role: m.Role, Content: m.Content}
		if m.Role == RoleTool {
			om.ToolName = m.Name
		}
		for _, tc := range m.ToolCalls {
			var c ollamaToolCall
			c.Function.Name = tc.Name
			c.Function.Arguments = tc.Arguments
			om.ToolCalls = append(om.ToolCalls, c)
		}
		req.Messages = append(req.Messages, om)
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, ollamaTool{
			Type:     "function",
			Function: ollamaFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}
	return req
}

func (p *OllamaProvider) post(ctx context.Context, body ollamaChatReq) (*http.Response, error) {
	if p.Client == nil {
		return nil, errors.New("ollama: http client is nil")
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/chat", p.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("ollama: status %d", resp.StatusCode)
	}
	return resp, nil
}

// ollama does not number tool calls; ids are positional within one reply
func toolCallsFromOllama(calls []ollamaToolCall, offset int) []ToolCall {
	out := make([]ToolCall, 0, len(calls))
	for i, c := range calls {
		args := c.Function.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		out = append(out, ToolCall{
			ID:        fmt.Sprintf("call_%d", offset+i),
			Name:      c.Function.Name,
			Arguments: args,
		})
	}
	return out
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message, tools []Tool) (Message, error) {
	resp, err := p.post(ctx, p.request(messages, tools, false))
	if err != nil {
		return Message{}, err
	}
	defer resp.Body.Close()

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Message{}, err
	}
	if decoded.Error != "" {
		return Message{}, errors.New(decoded.Error)
	}
	return Message{
		Role:      RoleAssistant,
		Content:   decoded.Message.Content,
		ToolCalls: toolCallsFromOllama(decoded.Message.ToolCalls, 0),
	}, nil
}

// StreamChat streams assistant content chunks.
// It returns immediately with two channels; both will be closed when streaming ends.
func (p *OllamaProvider) StreamChat(ctx context.Context, messages []Message, tools []Tool) (<-chan Delta, <-chan error) {
	deltas := make(chan Delta, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(deltas)
		defer close(errs)

		if p.Client == nil {
			errs <- errors.New("ollama: http client is nil")
			return
		}
		// streaming can outlive the client timeout; ctx controls it
		client := *p.Client
		client.Timeout = 0
		sp := *p
		sp.Client = &client

		resp, err := sp.post(ctx, p.request(messages, tools, true))
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		sc := bufio.NewScanner(resp.Body)
		// Increase scanner buffer for long JSON lines.
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		calls := 0
		for sc.Scan() {
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}

			var decoded ollamaChatResp
			if err := json.Unmarshal(line, &decoded); err != nil {
				errs <- err
				return
			}
			if decoded.Error != "" {
				errs <- errors.New(decoded.Error)
				return
			}

			d := Delta{Content: decoded.Message.Content}
			if len(decoded.Message.ToolCalls) > 0 {
				d.ToolCalls = toolCallsFromOllama(decoded.Message.ToolCalls, calls)
				calls += len(d.ToolCalls)
			}
			if d.Content != "" || len(d.ToolCalls) > 0 {
				if !send(ctx, deltas, d) {
					errs <- ctx.Err()
					return
				}
			}

			if decoded.Done {
				return
			}
		}

		if err := sc.Err(); err != nil {
			errs <- err
			return
		}
	}()

	return deltas, errs
}
