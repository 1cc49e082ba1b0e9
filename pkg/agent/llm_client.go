package agent

import "context"

// CompletionClient is the engine's view of the language-completion service.
// Both modes feed the same reconstruction path: Stream yields fragments,
// Complete yields a whole message which the controller folds as a single
// fragment.
type CompletionClient interface {
	// Stream sends the conversation and returns a channel of chunks.
	// The channel is closed when the response is complete. Transport
	// failures after the call started are delivered as *ErrorChunk.
	Stream(ctx context.Context, req *CompletionRequest) (<-chan Chunk, error)

	// Complete sends the conversation and waits for the whole response.
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
}

// CompletionRequest is the input of one completion call.
type CompletionRequest struct {
	SessionID string
	Messages  []Message
	Tools     []ToolSchema // nil = no tools
}

// Completion is a whole-message completion response.
type Completion struct {
	Message Message
	Usage   *TokenUsage
}

// Chunk is the interface for all streaming chunk types.
type Chunk interface {
	chunkType() ChunkType
}

// ChunkType identifies the kind of streaming chunk.
type ChunkType string

const (
	ChunkTypeDelta ChunkType = "delta"
	ChunkTypeUsage ChunkType = "usage"
	ChunkTypeError ChunkType = "error"
)

// DeltaFragment is one unit of a streamed response. Every field is
// optional: a fragment may carry only a role marker, only a piece of
// content, only partial tool calls, or any mix of them.
type DeltaFragment struct {
	Role      Role
	Content   *string
	ToolCalls []ToolCallDelta
}

// ToolCallDelta is a partial tool call, correlated across fragments by Index.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// UsageChunk reports token consumption for the completion call.
type UsageChunk struct {
	PromptTokens, CompletionTokens, TotalTokens int
}

// ErrorChunk signals a failure of the completion service mid-stream.
type ErrorChunk struct {
	Message string
	Err     error
}

func (c *DeltaFragment) chunkType() ChunkType { return ChunkTypeDelta }
func (c *UsageChunk) chunkType() ChunkType    { return ChunkTypeUsage }
func (c *ErrorChunk) chunkType() ChunkType    { return ChunkTypeError }

// ContentFragment is a convenience constructor for a content-only fragment.
func ContentFragment(s string) *DeltaFragment {
	return &DeltaFragment{Content: &s}
}

// FragmentFromMessage converts a whole message into a single fragment so
// non-streamed completions go through the same reconstruction as streamed
// ones. Tool calls are re-indexed by their position in the message.
func FragmentFromMessage(msg Message) *DeltaFragment {
	content := msg.Content
	f := &DeltaFragment{Role: msg.Role, Content: &content}
	for i, tc := range msg.ToolCalls {
		f.ToolCalls = append(f.ToolCalls, ToolCallDelta{
			Index:     i,
			ID:        tc.ID,
			Name:      tc.Name,
			Arguments: tc.Arguments,
		})
	}
	return f
}
