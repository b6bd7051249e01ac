package monitor

import (
	"sync"
	"time"

	"xhsmonitor/pkg/models"
)

// State is the orchestrator's position in the run lifecycle
type State string

const (
	StateIdle                State = "IDLE"
	StateInitializing        State = "INITIALIZING"
	StateSelectingAccount    State = "SELECTING_ACCOUNT"
	StateAuthenticating      State = "AUTHENTICATING"
	StateWaitingLogin        State = "WAITING_LOGIN"
	StateSearching           State = "SEARCHING"
	StateExtracting          State = "EXTRACTING"
	StateExtractingSecondary State = "EXTRACTING_SECONDARY"
	StateRecordingOutcome    State = "RECORDING_OUTCOME"
	StateSaving              State = "SAVING"
	StateCompleted           State = "COMPLETED"
	StateError               State = "ERROR"
	StateStopped             State = "STOPPED"
)

// Terminal reports whether the state ends the run
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError || s == StateStopped
}

// EventKind tags entries on the run's event stream
type EventKind string

const (
	EventStateChanged      EventKind = "state_changed"
	EventKeywordStarted    EventKind = "keyword_started"
	EventKeywordFinished   EventKind = "keyword_finished"
	EventKeywordSkipped    EventKind = "keyword_skipped"
	EventAccountSelected   EventKind = "account_selected"
	EventChallengeDetected EventKind = "challenge_detected"
	EventWarning           EventKind = "warning"
)

// Event is one entry on a run's typed event stream. Fields beyond Kind
// and Time are populated per kind.
type Event struct {
	Kind      EventKind
	State     State
	Keyword   string
	AccountID string
	Posts     int
	Message   string
	Time      time.Time
}

// RunHandle is the caller's view of a running monitor. Events delivers
// the typed stream and is closed when the run ends; Cancel requests a
// cooperative stop; Wait blocks until the terminal result.
type RunHandle struct {
	runID  string
	events chan Event
	cancel func()
	done   chan struct{}

	mu     sync.Mutex
	result *models.RunResult
	err    error
}

func newRunHandle(cancel func()) *RunHandle {
	return &RunHandle{
		events: make(chan Event, 256),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Events returns the run's event stream. The channel is closed once the
// run reaches a terminal state.
func (h *RunHandle) Events() <-chan Event {
	return h.events
}

// Cancel requests a cooperative stop. The run still flushes partial
// results before finishing. Safe to call multiple times.
func (h *RunHandle) Cancel() {
	h.cancel()
}

// Wait blocks until the run ends and returns its result. The result is
// non-nil whenever partial progress was persisted, even on error.
func (h *RunHandle) Wait() (*models.RunResult, error) {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err
}

// emit publishes without blocking; a slow consumer drops events rather
// than stalling the run
func (h *RunHandle) emit(ev Event) {
	select {
	case h.events <- ev:
	default:
	}
}

func (h *RunHandle) finish(result *models.RunResult, err error) {
	h.mu.Lock()
	h.result = result
	h.err = err
	h.mu.Unlock()
	close(h.events)
	close(h.done)
}
