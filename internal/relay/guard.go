package relay

import "sync/atomic"

// State is the phase a relay call is in.
type State int32

const (
	StateIdle State = iota
	StateIntaking
	StateForwarding
	StateSettling
	StateReverted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIntaking:
		return "intaking"
	case StateForwarding:
		return "forwarding"
	case StateSettling:
		return "settling"
	case StateReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// guard is the engaged/idle flag bracketing a relay call. Only the
// Idle → Intaking transition admits a caller; everything else is engaged.
type guard struct {
	state atomic.Int32
}

func (g *guard) enter() error {
	if !g.state.CompareAndSwap(int32(StateIdle), int32(StateIntaking)) {
		return ErrReentrant
	}
	return nil
}

func (g *guard) advance(to State) {
	g.state.Store(int32(to))
}

func (g *guard) release() {
	g.state.Store(int32(StateIdle))
}

func (g *guard) current() State {
	return State(g.state.Load())
}
