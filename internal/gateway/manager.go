package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sparkd-app/dategame/internal/game"
)

var (
	ErrInviteNotFound   = errors.New("invitation not found")
	ErrInviteNotPending = errors.New("invitation already resolved")
	ErrSessionNotFound  = errors.New("session not found")
	ErrNotParticipant   = errors.New("user is not part of this session")
)

type inviteStatus string

const (
	invitePending  inviteStatus = "pending"
	inviteAccepted inviteStatus = "accepted"
	inviteDeclined inviteStatus = "declined"
	inviteExpired  inviteStatus = "expired"
	inviteCanceled inviteStatus = "canceled"
)

type invitation struct {
	ID          string
	SenderID    string
	RecipientID string
	Level       int
	Status      inviteStatus
	CreatedAt   time.Time
}

// answerPair is the per-question barrier: one slot per participant, the
// round resolves when both are filled.
type answerPair struct {
	byUser map[string]string
}

type session struct {
	ID      string
	Players [2]string
	Level   int
	// questionIndex -> answers submitted so far
	pairs map[int]*answerPair
	left  map[string]bool
}

type PlayerResult struct {
	UserID  string
	Answers []string
	Total   int
	Score   int
}

type SessionResults struct {
	SessionID string
	Level     int
	ByUser    map[string]*PlayerResult
	Shared    int
	Compat    int
}

// Manager holds all gateway-side invite, session and result state. Pure
// state transitions under one mutex; delivery is the hub's job.
type Manager struct {
	mu       sync.Mutex
	invites  map[string]*invitation
	sessions map[string]*session
	results  map[string]*SessionResults
}

func NewManager() *Manager {
	return &Manager{
		invites:  make(map[string]*invitation),
		sessions: make(map[string]*session),
		results:  make(map[string]*SessionResults),
	}
}

// CreateInvite registers a pending invitation and returns its id.
func (m *Manager) CreateInvite(senderID, recipientID string, level int) *invitation {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := &invitation{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Level:       level,
		Status:      invitePending,
		CreatedAt:   time.Now().UTC(),
	}
	m.invites[inv.ID] = inv
	return inv
}

// ResolveInvite moves a pending invitation to a terminal status. Terminal
// states are final; a second resolution fails.
func (m *Manager) ResolveInvite(invitationID string, status inviteStatus) (*invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := m.invites[invitationID]
	if inv == nil {
		return nil, ErrInviteNotFound
	}
	if inv.Status != invitePending {
		return nil, ErrInviteNotPending
	}
	inv.Status = status
	return inv, nil
}

// HasPendingInviteBetween reports whether an unresolved invitation already
// exists between the two users, in either direction.
func (m *Manager) HasPendingInviteBetween(a, b string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invites {
		if inv.Status != invitePending {
			continue
		}
		if (inv.SenderID == a && inv.RecipientID == b) || (inv.SenderID == b && inv.RecipientID == a) {
			return true
		}
	}
	return false
}

// StartSession pairs the two participants of an accepted invitation.
func (m *Manager) StartSession(inv *invitation) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &session{
		ID:      uuid.NewString(),
		Players: [2]string{inv.SenderID, inv.RecipientID},
		Level:   inv.Level,
		pairs:   make(map[int]*answerPair),
		left:    make(map[string]bool),
	}
	m.sessions[s.ID] = s
	return s
}

// RecordAnswer stores one player's answer for a question. When it completes
// the pair, both answers are returned with resolved=true.
func (m *Manager) RecordAnswer(sessionID, userID string, questionIndex int, answer string) (self, opponent string, opponentID string, resolved bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[sessionID]
	if s == nil {
		return "", "", "", false, ErrSessionNotFound
	}
	other, ok := s.opponentOf(userID)
	if !ok {
		return "", "", "", false, ErrNotParticipant
	}
	pair := s.pairs[questionIndex]
	if pair == nil {
		pair = &answerPair{byUser: make(map[string]string)}
		s.pairs[questionIndex] = pair
	}
	pair.byUser[userID] = answer
	theirs, both := pair.byUser[other]
	return answer, theirs, other, both, nil
}

// Opponent returns the other participant of a session.
func (m *Manager) Opponent(sessionID, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[sessionID]
	if s == nil {
		return "", ErrSessionNotFound
	}
	other, ok := s.opponentOf(userID)
	if !ok {
		return "", ErrNotParticipant
	}
	return other, nil
}

// Leave marks a participant gone; the session is released once both left.
// Results already recorded survive the session.
func (m *Manager) Leave(sessionID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[sessionID]
	if s == nil {
		return
	}
	s.left[userID] = true
	if s.left[s.Players[0]] && s.left[s.Players[1]] {
		delete(m.sessions, sessionID)
	}
}

// SessionsWith returns the ids of live sessions the user participates in
// and has not left.
func (m *Manager) SessionsWith(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.sessions {
		if _, ok := s.opponentOf(userID); ok && !s.left[userID] {
			ids = append(ids, id)
		}
	}
	return ids
}

// SubmitResult stores one player's final answer sequence. Once both rows
// are in, the shared count and compatibility percentage are computed from
// the submitted sequences.
func (m *Manager) SubmitResult(sub game.ResultSubmission, userID string) (*SessionResults, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := m.results[sub.QuizSessionID]
	if res == nil {
		level := 1
		if s := m.sessions[sub.QuizSessionID]; s != nil {
			level = s.Level
		}
		res = &SessionResults{
			SessionID: sub.QuizSessionID,
			Level:     level,
			ByUser:    make(map[string]*PlayerResult),
		}
		m.results[sub.QuizSessionID] = res
	}
	res.ByUser[userID] = &PlayerResult{
		UserID:  userID,
		Answers: append([]string(nil), sub.Answers...),
		Total:   sub.TotalQuestions,
	}
	if len(res.ByUser) < 2 {
		return res, false
	}

	rows := make([]*PlayerResult, 0, 2)
	for _, r := range res.ByUser {
		rows = append(rows, r)
	}
	shared := game.SharedAnswers(rows[0].Answers, rows[1].Answers)
	total := rows[0].Total
	if rows[1].Total > total {
		total = rows[1].Total
	}
	res.Shared = shared
	if total > 0 {
		res.Compat = shared * 100 / total
	}
	for _, r := range rows {
		r.Score = shared * 10
	}
	return res, true
}

// Result returns the stored result for a session, if any.
func (m *Manager) Result(sessionID string) (*SessionResults, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.results[sessionID]
	return res, ok
}

func (s *session) opponentOf(userID string) (string, bool) {
	switch userID {
	case s.Players[0]:
		return s.Players[1], true
	case s.Players[1]:
		return s.Players[0], true
	}
	return "", false
}
