// Package runstate provides the idle -> running -> idle guard used by the
// sync engines to reject re-entrant passes.
package runstate

import "sync/atomic"

// State is a run phase.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Guard holds the current State. The zero value is Idle.
type Guard struct {
	state atomic.Int32
}

// Token is proof that the holder moved the guard to Running. Only a token
// can move it back to Idle.
type Token struct {
	g    *Guard
	done atomic.Bool
}

// TryEnter moves the guard from Idle to Running. It returns nil when a run
// is already in progress.
func (g *Guard) TryEnter() *Token {
	if !g.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return nil
	}
	return &Token{g: g}
}

// State reports the current phase.
func (g *Guard) State() State {
	return State(g.state.Load())
}

// Running reports whether a run is in progress.
func (g *Guard) Running() bool {
	return g.State() == Running
}

// Release returns the guard to Idle. Extra calls are no-ops.
func (t *Token) Release() {
	if t == nil || !t.done.CompareAndSwap(false, true) {
		return
	}
	t.g.state.CompareAndSwap(int32(Running), int32(Idle))
}
