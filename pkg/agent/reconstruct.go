package agent

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
)

// Reconstructor folds the fragments of one response turn into a single
// assistant message. It is a pure accumulator: the result depends only on
// the order of the fragment payloads, not on how they were chunked.
// Not safe for concurrent use.
type Reconstructor struct {
	role    Role
	content strings.Builder
	calls   map[int]*ToolCall
}

// NewReconstructor creates an empty reconstructor.
func NewReconstructor() *Reconstructor {
	return &Reconstructor{calls: make(map[int]*ToolCall)}
}

// Add folds one fragment into the message under construction.
func (r *Reconstructor) Add(f *DeltaFragment) {
	if f == nil {
		return
	}
	if r.role == "" && f.Role != "" {
		r.role = f.Role
	}
	// An empty content piece is just an empty append; it never ends the turn.
	if f.Content != nil {
		r.content.WriteString(*f.Content)
	}
	for _, d := range f.ToolCalls {
		tc, ok := r.calls[d.Index]
		if !ok {
			r.calls[d.Index] = &ToolCall{
				ID:        d.ID,
				Index:     d.Index,
				Name:      d.Name,
				Arguments: d.Arguments,
			}
			continue
		}
		tc.Arguments += d.Arguments
		// Names may arrive on a later fragment; bind them once.
		if tc.Name == "" {
			tc.Name = d.Name
		}
		if tc.ID == "" {
			tc.ID = d.ID
		}
	}
}

// Message finalizes the reconstruction. Tool calls are attached ordered by
// index; content and tool calls may coexist.
func (r *Reconstructor) Message() Message {
	msg := Message{Role: r.role, Content: r.content.String()}
	if msg.Role == "" {
		msg.Role = RoleAssistant
	}
	for _, idx := range slices.Sorted(maps.Keys(r.calls)) {
		msg.ToolCalls = append(msg.ToolCalls, *r.calls[idx])
	}
	return msg
}

// ReconstructedResponse is the outcome of draining one completion stream.
type ReconstructedResponse struct {
	Message Message
	Usage   *TokenUsage
}

// ContentCallback receives each non-empty content delta as it arrives.
type ContentCallback func(delta string)

// Reconstruct drains a completion stream into one message. It returns an
// *UpstreamError if the stream reports an error or ctx is cancelled before
// the stream closes.
func Reconstruct(ctx context.Context, stream <-chan Chunk, onContent ContentCallback) (*ReconstructedResponse, error) {
	r := NewReconstructor()
	resp := &ReconstructedResponse{}

	for {
		select {
		case <-ctx.Done():
			return nil, &UpstreamError{Err: ctx.Err()}
		case chunk, ok := <-stream:
			if !ok {
				resp.Message = r.Message()
				return resp, nil
			}
			switch c := chunk.(type) {
			case *DeltaFragment:
				r.Add(c)
				if onContent != nil && c.Content != nil && *c.Content != "" {
					onContent(*c.Content)
				}
			case *UsageChunk:
				resp.Usage = &TokenUsage{
					PromptTokens:     c.PromptTokens,
					CompletionTokens: c.CompletionTokens,
					TotalTokens:      c.TotalTokens,
				}
			case *ErrorChunk:
				err := c.Err
				if err == nil {
					err = errors.New(c.Message)
				}
				return nil, &UpstreamError{Err: err}
			}
		}
	}
}
