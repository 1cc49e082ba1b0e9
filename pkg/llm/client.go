// Package llm implements agent.CompletionClient against an
// OpenAI-compatible chat completions endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yuy4o/ChatBI/pkg/agent"
)

// Config configures the completion service connection.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float32
	Timeout     time.Duration // HTTP client timeout; 0 = none
}

// Client talks to the completion service. Safe for concurrent use; each
// Stream call owns its own HTTP stream and goroutine.
type Client struct {
	api         *openai.Client
	model       string
	temperature *float32
}

var _ agent.CompletionClient = (*Client)(nil)

// NewClient creates a client for cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("llm: model is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	slog.Info("LLM client configured", "base_url", oc.BaseURL, "model", cfg.Model)
	return &Client{
		api:         openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Stream starts a streamed completion. Chunks are delivered in arrival
// order; the channel is closed after the last one. Usage is requested so
// the final chunk carries token counts.
func (c *Client) Stream(ctx context.Context, req *agent.CompletionRequest) (<-chan agent.Chunk, error) {
	chatReq := c.buildRequest(req)
	chatReq.Stream = true
	chatReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := c.api.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, wrapError(err)
	}

	ch := make(chan agent.Chunk, 32)
	go c.pump(ctx, stream, ch)
	return ch, nil
}

func (c *Client) pump(ctx context.Context, stream *openai.ChatCompletionStream, ch chan<- agent.Chunk) {
	defer close(ch)
	defer stream.Close()

	send := func(chunk agent.Chunk) bool {
		select {
		case ch <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				// Best effort: the consumer may already have stopped reading.
				select {
				case ch <- &agent.ErrorChunk{Message: "completion stream cancelled", Err: ctxErr}:
				default:
				}
				return
			}
			send(&agent.ErrorChunk{Message: "completion stream failed", Err: wrapError(err)})
			return
		}

		if resp.Usage != nil {
			if !send(&agent.UsageChunk{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}) {
				return
			}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if f := fragmentFromDelta(resp.Choices[0].Delta); f != nil && !send(f) {
			return
		}
	}
}

// fragmentFromDelta converts one streamed delta. Empty deltas yield nil.
func fragmentFromDelta(d openai.ChatCompletionStreamChoiceDelta) *agent.DeltaFragment {
	f := &agent.DeltaFragment{Role: agent.Role(d.Role)}
	if d.Content != "" {
		content := d.Content
		f.Content = &content
	}
	for i, tc := range d.ToolCalls {
		index := i
		if tc.Index != nil {
			index = *tc.Index
		}
		f.ToolCalls = append(f.ToolCalls, agent.ToolCallDelta{
			Index:     index,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if f.Role == "" && f.Content == nil && len(f.ToolCalls) == 0 {
		return nil
	}
	return f
}

// Complete performs a whole-message completion.
func (c *Client) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.Completion, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.buildRequest(req))
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("completion response has no choices")
	}

	msg := resp.Choices[0].Message
	out := agent.Message{Role: agent.Role(msg.Role), Content: msg.Content}
	if out.Role == "" {
		out.Role = agent.RoleAssistant
	}
	for i, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, agent.ToolCall{
			ID:        tc.ID,
			Index:     i,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return &agent.Completion{
		Message: out,
		Usage: &agent.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (c *Client) buildRequest(req *agent.CompletionRequest) openai.ChatCompletionRequest {
	chatReq := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(req.Messages),
		Tools:    toOpenAITools(req.Tools),
	}
	if c.temperature != nil {
		// The request field is omitempty, so an explicit zero would be
		// dropped and the service default used instead.
		chatReq.Temperature = *c.temperature
		if chatReq.Temperature == 0 {
			chatReq.Temperature = math.SmallestNonzeroFloat32
		}
	}
	return chatReq
}

func toOpenAIMessages(msgs []agent.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		om := openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		switch m.Role {
		case agent.RoleAssistant:
			for _, tc := range m.ToolCalls {
				om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
		case agent.RoleTool:
			om.ToolCallID = m.ToolCallID
		}
		out = append(out, om)
	}
	return out
}

func toOpenAITools(schemas []agent.ToolSchema) []openai.Tool {
	if len(schemas) == 0 {
		return nil
	}
	out := make([]openai.Tool, len(schemas))
	for i, s := range schemas {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		}
	}
	return out
}

// wrapError adds the HTTP status of API errors to the message.
func wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("completion service returned status %d: %w", apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("completion service returned status %d: %w", reqErr.HTTPStatusCode, err)
	}
	return err
}
