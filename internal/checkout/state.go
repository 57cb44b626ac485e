package checkout

import "fmt"

type State string

const (
	StateEmpty                State = "EMPTY"
	StateDrafting             State = "DRAFTING"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateCreating             State = "CREATING"
	StateCreationFallback     State = "CREATION_FALLBACK"
	StateConfirming           State = "CONFIRMING"
	StateConfirmationFallback State = "CONFIRMATION_FALLBACK"
	StateSucceeded            State = "SUCCEEDED"
	StateFailed               State = "FAILED"
)

var transitions = map[State][]State{
	StateEmpty:                {StateDrafting},
	StateDrafting:             {StateAwaitingConfirmation, StateEmpty},
	StateAwaitingConfirmation: {StateCreating, StateDrafting, StateFailed},
	StateCreating:             {StateConfirming, StateCreationFallback, StateFailed},
	StateCreationFallback:     {StateConfirming, StateFailed},
	StateConfirming:           {StateSucceeded, StateConfirmationFallback, StateFailed},
	StateConfirmationFallback: {StateSucceeded, StateFailed},
	StateFailed:               {StateAwaitingConfirmation},
}

// IsTerminal reports whether the flow has ended, successfully or not.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// InFlight reports whether remote calls of the confirm flow are running.
func (s State) InFlight() bool {
	switch s {
	case StateCreating, StateCreationFallback, StateConfirming, StateConfirmationFallback:
		return true
	}
	return false
}

func (s State) String() string {
	return string(s)
}

func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type IllegalTransitionError struct {
	From, To State
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal checkout transition %s -> %s", e.From, e.To)
}
