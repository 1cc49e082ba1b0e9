package controller

import (
	"context"
	"errors"
	"time"

	"github.com/yuy4o/ChatBI/pkg/agent"
	"github.com/yuy4o/ChatBI/pkg/events"
	"github.com/yuy4o/ChatBI/pkg/tools"
)

const (
	modeStream   = "stream"
	modeComplete = "complete"
)

// callCompletion performs one completion call for the current turn and
// reconstructs the assistant message. Streamed content is published as
// stream_log events while it arrives; the complete content is published
// once as a log event. Any failure is returned as *agent.UpstreamError.
func callCompletion(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	conv *agent.Conversation,
	toolset *tools.Toolset,
) (*agent.ReconstructedResponse, error) {
	cfg := agentConfig(execCtx)
	summary := turnSummary(conv.AgentName, conv.Turn)

	turnCtx := ctx
	if cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, cfg.TurnTimeout)
		defer cancel()
	}
	// Cancelling on return also stops the client's producer goroutine.
	turnCtx, cancel := context.WithCancel(turnCtx)
	defer cancel()

	req := &agent.CompletionRequest{
		SessionID: conv.SessionID,
		Messages:  conv.Messages(),
		Tools:     toolset.Schemas(),
	}

	mode := modeComplete
	if cfg.Stream {
		mode = modeStream
	}

	start := time.Now()
	var (
		resp *agent.ReconstructedResponse
		err  error
	)
	if cfg.Stream {
		resp, err = streamCompletion(turnCtx, execCtx, req, conv.SessionID, summary)
	} else {
		resp, err = wholeCompletion(turnCtx, execCtx, req)
	}
	execCtx.Metrics.RecordCompletion(conv.AgentName, mode, time.Since(start), err)

	if err != nil {
		var ue *agent.UpstreamError
		if !errors.As(err, &ue) {
			ue = &agent.UpstreamError{Err: err}
		}
		ue.Turn = conv.Turn
		return nil, ue
	}

	if resp.Usage != nil {
		execCtx.Metrics.RecordTokens(conv.AgentName, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	if resp.Message.Content != "" {
		events.Log(execCtx.Publisher, conv.SessionID, events.SourceAI, resp.Message.Content, summary)
	}
	return resp, nil
}

func streamCompletion(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	req *agent.CompletionRequest,
	sessionID, summary string,
) (*agent.ReconstructedResponse, error) {
	stream, err := execCtx.Client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	first := true
	return agent.Reconstruct(ctx, stream, func(delta string) {
		events.StreamLog(execCtx.Publisher, sessionID, events.SourceAI, delta, summary+": streaming", first)
		first = false
	})
}

// wholeCompletion folds a non-streamed response through the same
// reconstruction path as a stream of one fragment.
func wholeCompletion(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	req *agent.CompletionRequest,
) (*agent.ReconstructedResponse, error) {
	completion, err := execCtx.Client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if completion == nil {
		return nil, errors.New("empty completion response")
	}

	r := agent.NewReconstructor()
	r.Add(agent.FragmentFromMessage(completion.Message))
	return &agent.ReconstructedResponse{Message: r.Message(), Usage: completion.Usage}, nil
}
