package session

import "fmt"

// State is the lifecycle state of a review session.
type State int

const (
	Initial State = iota // constructed, not yet started
	Loading              // fetching due cards from the store
	Empty                // queue exhausted (or nothing was due)
	Active               // a current card is available
)

var stateNames = [...]string{Initial: "Initial", Loading: "Loading", Empty: "Empty", Active: "Active"}

// String returns the state's name, or "State(n)" for invalid values.
func (s State) String() string {
	if s >= Initial && s <= Active {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}
