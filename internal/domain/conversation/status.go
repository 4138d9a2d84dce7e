package conversation

// Status represents the lifecycle status of a conversation.
type Status string

const (
	StatusWaiting  Status = "waiting"  // In the shared queue, no assignee
	StatusActive   Status = "active"   // Held by exactly one agent
	StatusPaused   Status = "paused"   // Held, temporarily parked by its agent
	StatusFinished Status = "finished" // Terminal
)

// ValidTransitions defines allowed status transitions. Nothing transitions
// into waiting; a conversation only starts there. Store guards are derived
// from it through SourcesOf.
var ValidTransitions = map[Status][]Status{
	StatusWaiting:  {StatusActive},
	StatusActive:   {StatusPaused, StatusFinished, StatusActive},
	StatusPaused:   {StatusActive, StatusFinished},
	StatusFinished: {},
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := ValidTransitions[s]
	return ok
}

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusFinished
}

// IsHeld returns true while an agent owns the conversation.
func (s Status) IsHeld() bool {
	return s == StatusActive || s == StatusPaused
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if a transition from current status to target status is valid.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range ValidTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

var lifecycle = []Status{StatusWaiting, StatusActive, StatusPaused, StatusFinished}

// SourcesOf lists, in lifecycle order, the statuses that may move to target.
func SourcesOf(target Status) []Status {
	var sources []Status
	for _, s := range lifecycle {
		if s.CanTransitionTo(target) {
			sources = append(sources, s)
		}
	}
	return sources
}

// HeldStatuses lists the statuses a held conversation may be in: exactly
// the ones that may finish.
func HeldStatuses() []Status {
	return SourcesOf(StatusFinished)
}
