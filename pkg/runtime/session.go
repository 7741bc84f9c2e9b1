// Package runtime drives playbook execution: the per-session state
// machine with boundary-only pause/stop, sequential skill dispatch with
// automatic context appends, and the session manager keyed by document.
package runtime

import (
	"errors"
	"sync"

	"github.com/skaldhq/skald/pkg/contexts"
)

// State is the execution state of one session.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
	StateError   State = "error"
)

var (
	// ErrBusy is returned when a run is requested while the session is
	// already running or paused. Concurrent runs are rejected, not queued.
	ErrBusy = errors.New("session is already running")

	// ErrNeedsReset is returned when a run is requested after an error.
	// The session must be reset before restarting from the top.
	ErrNeedsReset = errors.New("session requires reset before running again")
)

// Hooks receives session lifecycle events. Used by the serve transport
// for editor notifications and by the TUI for repaints. All fields are
// optional; hooks are called synchronously with the session lock held,
// so they must not call back into the session.
type Hooks struct {
	OnState     func(sessionID string, state State)
	OnHighlight func(sessionID string, currentLine, failedLine int)
}

// Session holds everything that is per-document: execution state, the
// context store, session variables, and the highlight lines the editor
// renders. Pause and stop are requests; they take effect only at block
// boundaries.
type Session struct {
	ID string

	mu   sync.Mutex
	cond *sync.Cond

	state          State
	pauseRequested bool
	stopRequested  bool

	currentLine int // 1-indexed, 0 = none
	failedLine  int
	lastError   string

	store *contexts.Store
	vars  map[string]string

	hooks Hooks
}

// NewSession creates an idle session with an empty default context.
func NewSession(id string, hooks Hooks) *Session {
	s := &Session{
		ID:    id,
		state: StateIdle,
		store: contexts.NewStore(),
		vars:  make(map[string]string),
		hooks: hooks,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// State returns the current execution state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Contexts returns the session's context store.
func (s *Session) Contexts() *contexts.Store {
	return s.store
}

// Var reads a session variable.
func (s *Session) Var(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vars[name]
	return v, ok
}

// SetVar writes a session variable.
func (s *Session) SetVar(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
}

// VarsSnapshot returns a copy of the session variables.
func (s *Session) VarsSnapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// Highlights returns the current and failed line numbers (0 = none).
func (s *Session) Highlights() (currentLine, failedLine int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLine, s.failedLine
}

// LastError returns the message of the failure that put the session into
// the error state, or "".
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// RequestPause asks the executor to pause at the next block boundary. A
// step already in flight always runs to completion first.
func (s *Session) RequestPause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		s.pauseRequested = true
	}
}

// Resume continues a paused session, or cancels a pause request that has
// not taken effect yet.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseRequested = false
	if s.state == StatePaused {
		s.setStateLocked(StateRunning)
		s.cond.Broadcast()
	}
}

// RequestStop asks the executor to stop at the next block boundary. It
// also wakes a paused session so the stop can take effect.
func (s *Session) RequestStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning || s.state == StatePaused {
		s.stopRequested = true
		s.cond.Broadcast()
	}
}

// Reset returns an errored session to idle so it can run again from the
// top. Resetting a running or paused session is rejected.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateRunning, StatePaused:
		return ErrBusy
	}
	s.lastError = ""
	s.stopRequested = false
	s.pauseRequested = false
	s.setHighlightsLocked(0, 0)
	s.setStateLocked(StateIdle)
	return nil
}

// begin performs the idle→running transition, rejecting concurrent runs
// and runs attempted from the error state without a reset.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle:
	case StateRunning, StatePaused:
		return ErrBusy
	default:
		return ErrNeedsReset
	}
	s.stopRequested = false
	s.pauseRequested = false
	s.lastError = ""
	s.setHighlightsLocked(0, 0)
	s.setStateLocked(StateRunning)
	return nil
}

// boundary is called by the executor between blocks. It blocks while the
// session is paused and reports whether a stop request is pending. Stop
// wins over pause.
func (s *Session) boundary() (stopped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.stopRequested {
			return true
		}
		if !s.pauseRequested {
			return false
		}
		s.pauseRequested = false
		s.setStateLocked(StatePaused)
		for s.state == StatePaused && !s.stopRequested {
			s.cond.Wait()
		}
	}
}

// finishStopped records the stop and resets to idle, clearing highlights.
func (s *Session) finishStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopRequested = false
	s.setStateLocked(StateStopped)
	s.setHighlightsLocked(0, 0)
	s.setStateLocked(StateIdle)
}

// finishCompleted clears highlights and returns to idle after a full run.
func (s *Session) finishCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setHighlightsLocked(0, 0)
	s.setStateLocked(StateIdle)
}

// fail records a step failure and enters the error state.
func (s *Session) fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = message
	s.setStateLocked(StateError)
}

func (s *Session) setCurrentLine(line int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setHighlightsLocked(line, s.failedLine)
}

func (s *Session) setFailedLine(line int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setHighlightsLocked(s.currentLine, line)
}

func (s *Session) setStateLocked(st State) {
	s.state = st
	if s.hooks.OnState != nil {
		s.hooks.OnState(s.ID, st)
	}
}

func (s *Session) setHighlightsLocked(current, failed int) {
	if s.currentLine == current && s.failedLine == failed {
		return
	}
	s.currentLine = current
	s.failedLine = failed
	if s.hooks.OnHighlight != nil {
		s.hooks.OnHighlight(s.ID, current, failed)
	}
}
