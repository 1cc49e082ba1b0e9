package agent

// TurnState is the state of the turn loop for one conversation.
type TurnState string

const (
	StateInit             TurnState = "init"
	StateAwaitingResponse TurnState = "awaiting_response"
	StateDispatching      TurnState = "dispatching"
	StateFinished         TurnState = "finished"
	StateBudgetExhausted  TurnState = "budget_exhausted"
	StateUpstreamFailed   TurnState = "upstream_failed"
)

// Terminal reports whether no further transitions are possible.
func (s TurnState) Terminal() bool {
	switch s {
	case StateFinished, StateBudgetExhausted, StateUpstreamFailed:
		return true
	}
	return false
}

// RunResult is returned by the turn loop controller.
// Err is nil when the loop finished normally, wraps ErrTurnBudgetExceeded
// when the budget ran out and is an *UpstreamError when the completion
// service failed.
type RunResult struct {
	State      TurnState
	Content    string
	Turns      int // completion calls issued
	Err        error
	TokensUsed TokenUsage
}
