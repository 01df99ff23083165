package batch

// State is a step of the per item lifecycle.
type State int

// Item states. Failed is absorbing.
const (
	StateIdle State = iota
	StateResolving
	StateInstalling
	StateResolvingRetry
	StateLaunching
	StateContextReady
	StateNavigated
	StateDispatched
	StateClosed
	StateDone
	StateFailed
)

var stateNames = [...]string{ //nolint:gochecknoglobals
	StateIdle:           "idle",
	StateResolving:      "resolving",
	StateInstalling:     "installing",
	StateResolvingRetry: "resolvingRetry",
	StateLaunching:      "launching",
	StateContextReady:   "contextReady",
	StateNavigated:      "navigated",
	StateDispatched:     "dispatched",
	StateClosed:         "closed",
	StateDone:           "done",
	StateFailed:         "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

var transitions = map[State][]State{ //nolint:gochecknoglobals
	StateIdle:           {StateResolving, StateFailed},
	StateResolving:      {StateLaunching, StateInstalling, StateFailed},
	StateInstalling:     {StateResolvingRetry},
	StateResolvingRetry: {StateLaunching, StateFailed},
	StateLaunching:      {StateContextReady, StateFailed},
	StateContextReady:   {StateNavigated, StateFailed},
	StateNavigated:      {StateDispatched, StateFailed},
	StateDispatched:     {StateClosed, StateFailed},
	StateClosed:         {StateDone},
}

// CanTransitionTo reports whether an item may move from s to next.
func (s State) CanTransitionTo(next State) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends the lifecycle.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
