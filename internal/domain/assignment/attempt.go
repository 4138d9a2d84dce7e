package assignment

import "github.com/deskline/queue-api/internal/domain/conversation"

// State is a step of the attend-next state machine.
type State string

const (
	StateIdle        State = "idle"
	StateAttempting  State = "attempting"
	StateClaimed     State = "claimed"
	StateUnavailable State = "unavailable"
	StateError       State = "error"
)

// IsTerminal reports whether the machine stops in s.
func (s State) IsTerminal() bool {
	return s == StateClaimed || s == StateUnavailable || s == StateError
}

// Reason explains an Unavailable outcome.
type Reason string

const (
	// ReasonNothingWaiting means the queue was empty on the first read.
	ReasonNothingWaiting Reason = "nothing_waiting"
	// ReasonTaken means conversations were waiting but every claim lost.
	ReasonTaken Reason = "taken"
)

// Attempt records the progress and outcome of one attend-next call.
type Attempt struct {
	State        State
	Reason       Reason
	Conversation *conversation.Conversation
	Tries        int
	Err          error
}

func newAttempt() *Attempt {
	return &Attempt{State: StateIdle}
}

func (a *Attempt) begin() {
	a.State = StateAttempting
	a.Tries++
}

func (a *Attempt) claimed(c *conversation.Conversation) *Attempt {
	a.State = StateClaimed
	a.Conversation = c
	return a
}

func (a *Attempt) unavailable(reason Reason) *Attempt {
	a.State = StateUnavailable
	a.Reason = reason
	return a
}

func (a *Attempt) failed(err error) *Attempt {
	a.State = StateError
	a.Err = err
	return a
}
