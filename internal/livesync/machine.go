// Package livesync keeps a rendered page in step with the upstream listing.
// A push channel drives refreshes while it works; after its first failure
// the channel falls back to fixed-interval polling for the rest of the run.
package livesync

import (
	"sync"

	"github.com/rillToMe/CrypShare/internal/metrics"
)

// State is the sync mode.
type State int

const (
	// Idle means the page has no rendering targets; nothing is started.
	Idle State = iota
	// Live means refreshes are driven by push events.
	Live
	// Polling means refreshes are driven by a fixed-interval ticker.
	Polling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Live:
		return "live"
	case Polling:
		return "polling"
	default:
		return "unknown"
	}
}

// Machine is the sync state machine. The only transition is Live to
// Polling; Idle is terminal and Polling never returns to Live.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine starts in Live when the page has targets, else Idle.
func NewMachine(hasTargets bool) *Machine {
	m := &Machine{state: Idle}
	if hasTargets {
		m.state = Live
	}
	metrics.SetSyncState(int(m.state))
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PushFailed moves Live to Polling. It reports whether this call performed
// the transition.
func (m *Machine) PushFailed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Live {
		return false
	}
	m.state = Polling
	metrics.SetSyncState(int(m.state))
	return true
}
