package fixture

// State is the lifecycle state of a [Builder].
//
//	pending  → building, cleaning
//	building → ready, failed
//	ready    → building, cleaning
//	failed   → cleaning
//	cleaning → cleaned
//	cleaned  → building, cleaning
//
// A failed build must be cleaned before building again, so partially
// created fixtures are never treated as ready. Cleaning again from cleaned
// retries the deletions that failed the first time.
type State string

const (
	StatePending  State = "pending"
	StateBuilding State = "building"
	StateReady    State = "ready"
	StateFailed   State = "failed"
	StateCleaning State = "cleaning"
	StateCleaned  State = "cleaned"
)

func (s State) String() string { return string(s) }

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

var validTransitions = map[State][]State{
	StatePending:  {StateBuilding, StateCleaning},
	StateBuilding: {StateReady, StateFailed},
	StateReady:    {StateBuilding, StateCleaning},
	StateFailed:   {StateCleaning},
	StateCleaning: {StateCleaned},
	StateCleaned:  {StateBuilding, StateCleaning},
}

// ValidTransition reports whether from → to is allowed. Same-state
// transitions are not.
func ValidTransition(from, to State) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
