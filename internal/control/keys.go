// Package control runs the interactive playlist: it loads and validates
// each tune, plays it through a session, polls keys, and prints status.
package control

// KeyEdge turns a polled key state into a single event that fires when the
// key is released after having been seen down.
type KeyEdge struct {
	down bool
}

// Update feeds the current state and reports a completed press.
func (k *KeyEdge) Update(pressed bool) bool {
	if pressed {
		k.down = true
		return false
	}
	fired := k.down
	k.down = false
	return fired
}

// Keys is the state of the watched keys at one poll.
type Keys struct {
	Escape bool
	Next   bool
}

// Frontend is what the runner needs from a user interface. Methods are called
// from the runner's goroutine.
type Frontend interface {
	// Keys returns which keys are down right now.
	Keys() Keys
	// Announce prints a line that stays on screen.
	Announce(line string)
	// Status replaces the status line; an empty string clears it.
	Status(line string)
}
