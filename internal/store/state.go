package store

// TradeState tracks an option through its lifecycle. Queue rows only
// ever reach Opened or Cancelled; option rows start at Opened and end
// at Exercised or Expired. Terminal states accept no transition.
type TradeState int32

const (
	StateQueued TradeState = iota
	StateOpened
	StateCancelled
	StateExercised
	StateExpired
)

func (s TradeState) String() string {
	switch s {
	case StateQueued:
		return "Queued"
	case StateOpened:
		return "Opened"
	case StateCancelled:
		return "Cancelled"
	case StateExercised:
		return "Exercised"
	case StateExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates state transitions
func (s TradeState) CanTransitionTo(next TradeState) bool {
	validTransitions := map[TradeState][]TradeState{
		StateQueued: {
			StateOpened,
			StateCancelled,
		},
		StateOpened: {
			StateExercised,
			StateExpired,
		},
	}

	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}

	for _, allowedState := range allowed {
		if next == allowedState {
			return true
		}
	}

	return false
}

// IsTerminal reports whether no further transition is possible.
func (s TradeState) IsTerminal() bool {
	switch s {
	case StateCancelled, StateExercised, StateExpired:
		return true
	}
	return false
}
