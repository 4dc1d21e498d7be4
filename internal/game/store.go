package game

import (
	"sync"

	"github.com/sparkd-app/dategame/internal/channel"
)

// Session is a point-in-time view of the store.
type Session struct {
	Match     *Match
	Started   bool
	SessionID string
	Results   *Results
	Stage     int
}

// Store is the single source of truth for the currently active game. It is
// shared by the invite negotiator, the engine, and the results screen, and
// is mutated only through the methods below so every transition is
// auditable. Inject it where it is needed; there is no package-level
// instance.
type Store struct {
	mu        sync.Mutex
	match     *Match
	started   bool
	sessionID string
	results   *Results
	stage     int
}

func NewStore() *Store {
	return &Store{stage: 1}
}

// SetActiveMatch records who the opponent is.
func (st *Store) SetActiveMatch(m Match) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.match = &m
}

func (st *Store) ClearActiveMatch() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.match = nil
}

// BeginSession marks round-play active under the server-issued session id.
func (st *Store) BeginSession(sessionID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessionID = sessionID
	st.started = true
	st.results = nil
}

// RecordResults stores the final tally of the current stage. The round ends
// but the session identity and stage are kept so a next-stage invite can
// reuse them without renegotiating.
func (st *Store) RecordResults(r Results) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.results = &r
	st.started = false
}

// AdvanceStage increments the stage, clamped at MaxStage.
func (st *Store) AdvanceStage() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.stage < MaxStage {
		st.stage++
	}
}

// Snapshot returns a copy of the current state.
func (st *Store) Snapshot() Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return Session{
		Match:     st.match,
		Started:   st.started,
		SessionID: st.sessionID,
		Results:   st.results,
		Stage:     st.stage,
	}
}

// Reset restores the store to its initial state (stage 1). When a channel
// and user are supplied and a session is live, termination notices go out
// first: manualGameEnd on non-final stages so the opponent's engine aborts
// cleanly, and leaveGameSession in all cases so the server releases the
// session. sessionID overrides the stored id when the caller received it
// from an event that may outrun the store.
func (st *Store) Reset(ch channel.Channel, userID, sessionID string) {
	st.mu.Lock()
	live := sessionID
	if live == "" {
		live = st.sessionID
	}
	stage := st.stage
	st.match = nil
	st.started = false
	st.sessionID = ""
	st.results = nil
	st.stage = 1
	st.mu.Unlock()

	if ch == nil || userID == "" || live == "" {
		return
	}
	notice := channel.SessionNoticePayload{UserID: userID, GameSessionID: live}
	if stage < MaxStage {
		_ = ch.Emit(channel.EventManualEnd, notice)
	}
	_ = ch.Emit(channel.EventLeaveSession, notice)
}
