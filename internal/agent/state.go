package agent

// State is a step of the conversation loop.
type State string

const (
	// AwaitingAgent: the conversation has been handed to the model for its next turn.
	AwaitingAgent State = "AWAITING_AGENT"
	// ToolRequested: the model asked for one or more tool calls.
	ToolRequested State = "TOOL_REQUESTED"
	// ToolExecuted: tool results were appended; control returns to the model.
	ToolExecuted State = "TOOL_EXECUTED"
	// Done: the model answered without requesting tools.
	Done State = "DONE"
	// Aborted: the turn budget ran out or the model could not be reached.
	Aborted State = "ABORTED"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Done || s == Aborted
}

func (s State) String() string {
	return string(s)
}

var transitions = map[State][]State{
	AwaitingAgent: {ToolRequested, Done, Aborted},
	ToolRequested: {ToolExecuted, Aborted},
	ToolExecuted:  {AwaitingAgent},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
