package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sparkd-app/dategame/internal/channel"
)

// State of the engine's per-stage machine.
type State string

const (
	StateIdle       State = "Idle"
	StateLoading    State = "Loading"
	StatePlaying    State = "Playing"
	StateWaiting    State = "WaitingForBoth"
	StateFeedback   State = "Feedback"
	StateSubmitting State = "Submitting"
	StateCompleted  State = "Completed"
	StateAborted    State = "Aborted"
	StateFailed     State = "Failed"
)

var (
	ErrNoActiveSession = errors.New("no active game session")
	ErrNotPlaying      = errors.New("no question is open")
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrNoQuestions     = errors.New("no questions available for stage")
	ErrEngineClosed    = errors.New("engine closed")
)

// QuizAPI is the slice of the REST surface the engine needs.
type QuizAPI interface {
	Questions(ctx context.Context, stage int) ([]Question, error)
	SubmitResult(ctx context.Context, sub ResultSubmission) error
}

// EngineConfig wires an Engine. Channel, API, Store and SelfID are required.
type EngineConfig struct {
	Channel channel.Channel
	API     QuizAPI
	Store   *Store
	SelfID  string

	Logger   zerolog.Logger
	Cues     CuePlayer
	Prompter Prompter

	// QuestionTime is the per-question budget (default 30s),
	// FeedbackDwell the hold after a resolved round (default 1s).
	QuestionTime  time.Duration
	FeedbackDwell time.Duration

	// OnComplete fires exactly once when the stage finishes, whether the
	// result submission succeeded or not.
	OnComplete func(Results)
	// OnAborted fires when the opponent disconnected mid-stage.
	// noticeShown is false on the final stage, where the disconnect is
	// treated as a natural end.
	OnAborted func(opponentID string, noticeShown bool)
}

// Engine drives one stage of paired question-answering: per-question
// countdown, answer submission, the two-party barrier, feedback, and
// advancement. The countdown and the barrier event race; both funnel into
// the same advance transition guarded by a monotonically increasing round
// token, so whichever fires first wins and the loser is a no-op.
type Engine struct {
	cfg    EngineConfig
	binder channel.Binder

	mu         sync.Mutex
	state      State
	session    Session
	questions  []Question
	qIdx       int
	answers    []string
	oppAnswers []string
	roundToken int
	timer      *time.Timer
	subscribed bool
	finished   bool
	closed     bool
	lastErr    error
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Channel == nil || cfg.API == nil || cfg.Store == nil || cfg.SelfID == "" {
		return nil, errors.New("engine: channel, api, store and self id are required")
	}
	if cfg.Cues == nil {
		cfg.Cues = NopCues{}
	}
	if cfg.QuestionTime <= 0 {
		cfg.QuestionTime = 30 * time.Second
	}
	if cfg.FeedbackDwell <= 0 {
		cfg.FeedbackDwell = time.Second
	}
	return &Engine{cfg: cfg, state: StateIdle}, nil
}

// Start loads the question sequence for the store's current stage and opens
// the first round. A failed or empty fetch leaves the engine in StateFailed;
// Start may be called again to retry.
func (e *Engine) Start(ctx context.Context) error {
	sess := e.cfg.Store.Snapshot()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if !sess.Started || sess.SessionID == "" || sess.Match == nil {
		e.state = StateFailed
		e.lastErr = ErrNoActiveSession
		e.mu.Unlock()
		return ErrNoActiveSession
	}
	e.session = sess
	e.state = StateLoading
	e.mu.Unlock()

	questions, err := e.cfg.API.Questions(ctx, sess.Stage)
	if err == nil && len(questions) == 0 {
		err = ErrNoQuestions
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if err != nil {
		e.state = StateFailed
		e.lastErr = fmt.Errorf("loading stage %d questions: %w", sess.Stage, err)
		e.mu.Unlock()
		return e.lastErr
	}
	e.questions = questions
	e.answers = make([]string, len(questions))
	e.oppAnswers = make([]string, len(questions))
	e.qIdx = 0
	e.lastErr = nil
	if !e.subscribed {
		e.subscribed = true
		e.binder.Bind(e.cfg.Channel, channel.EventBothAnswers, e.onBothAnswers)
		e.binder.Bind(e.cfg.Channel, channel.EventOpponentDisconnected, e.onOpponentDisconnected)
	}
	e.beginRoundLocked()
	e.mu.Unlock()

	e.cfg.Logger.Info().
		Str("gameSessionId", sess.SessionID).
		Int("stage", sess.Stage).
		Int("questions", len(questions)).
		Msg("stage started")
	return nil
}

// Answer records the player's pick for the open question and submits it over
// the channel. The pick renders optimistically; scoring only ever uses the
// pair delivered by the barrier event. One answer per question.
func (e *Engine) Answer(option string) error {
	e.mu.Lock()
	if e.state != StatePlaying {
		e.mu.Unlock()
		if e.stateIs(StateWaiting) {
			return ErrAlreadyAnswered
		}
		return ErrNotPlaying
	}
	e.answers[e.qIdx] = option
	e.state = StateWaiting
	payload := channel.SubmitAnswerPayload{
		AnswerText:    option,
		UserID:        e.cfg.SelfID,
		ReceiverID:    e.session.Match.ID,
		GameSessionID: e.session.SessionID,
		QuestionIndex: e.qIdx,
	}
	e.mu.Unlock()

	return e.cfg.Channel.Emit(channel.EventSubmitAnswer, payload)
}

// Close is the explicit user exit (or natural teardown). It stops all cues
// and timers, releases every channel subscription, and resets the store,
// which emits the manual-end notice on non-final stages and the leave notice
// always.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.stopTimerLocked()
	sessionID := e.session.SessionID
	e.mu.Unlock()

	e.cfg.Cues.StopAll()
	e.binder.Close()
	e.cfg.Store.Reset(e.cfg.Channel, e.cfg.SelfID, sessionID)
}

// State returns the current machine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the error that put the engine into StateFailed, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// CurrentQuestion returns the displayed question and its index while a round
// is open.
func (e *Engine) CurrentQuestion() (Question, int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.qIdx >= len(e.questions) || (e.state != StatePlaying && e.state != StateWaiting && e.state != StateFeedback) {
		return Question{}, 0, false
	}
	return e.questions[e.qIdx], e.qIdx, true
}

func (e *Engine) stateIs(s State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == s
}

// beginRoundLocked opens round e.qIdx: playing state, fresh token, countdown
// armed against that token.
func (e *Engine) beginRoundLocked() {
	e.state = StatePlaying
	e.roundToken++
	token := e.roundToken
	e.stopTimerLocked()
	e.timer = time.AfterFunc(e.cfg.QuestionTime, func() { e.timeout(token) })
	e.cfg.Cues.PlayBackground()
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// timeout fires when the question budget elapses before the barrier
// resolved. A stale token means the barrier (or a previous timeout) already
// advanced this round.
func (e *Engine) timeout(token int) {
	e.mu.Lock()
	if e.closed || token != e.roundToken || (e.state != StatePlaying && e.state != StateWaiting) {
		e.mu.Unlock()
		return
	}
	e.roundToken++
	e.cfg.Logger.Debug().Int("questionIndex", e.qIdx).Msg("question timed out")
	e.advanceLocked()
}

// onBothAnswers is the synchronization barrier. Events are filtered on
// session, recipient and question index; anything stale or mistargeted is
// dropped without comment, which is normal under network jitter.
func (e *Engine) onBothAnswers(data json.RawMessage) {
	var p channel.BothAnswersPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	e.mu.Lock()
	if e.closed ||
		p.GameSessionID != e.session.SessionID ||
		p.UserID != e.cfg.SelfID ||
		p.QuestionIndex != e.qIdx ||
		(e.state != StatePlaying && e.state != StateWaiting) {
		e.mu.Unlock()
		return
	}
	// Barrier wins the race against the countdown.
	e.roundToken++
	token := e.roundToken
	e.stopTimerLocked()

	// The event carries the authoritative pair; it overwrites the
	// optimistic local pick.
	e.answers[p.QuestionIndex] = p.YourAnswer
	e.oppAnswers[p.QuestionIndex] = p.OpponentAnswer
	e.state = StateFeedback
	matched := p.YourAnswer == p.OpponentAnswer
	e.timer = time.AfterFunc(e.cfg.FeedbackDwell, func() { e.endFeedback(token) })
	e.mu.Unlock()

	if matched {
		e.cfg.Cues.PlayMatch()
	} else {
		e.cfg.Cues.PlayMismatch()
	}
}

func (e *Engine) endFeedback(token int) {
	e.mu.Lock()
	if e.closed || token != e.roundToken || e.state != StateFeedback {
		e.mu.Unlock()
		return
	}
	e.roundToken++
	e.advanceLocked()
}

// advanceLocked moves past the current question. Called with the mutex held;
// releases it.
func (e *Engine) advanceLocked() {
	if e.qIdx < len(e.questions)-1 {
		e.qIdx++
		e.beginRoundLocked()
		e.mu.Unlock()
		return
	}
	if e.finished {
		e.mu.Unlock()
		return
	}
	e.finished = true
	e.state = StateSubmitting
	answers := append([]string(nil), e.answers...)
	oppAnswers := append([]string(nil), e.oppAnswers...)
	sessionID := e.session.SessionID
	receiverID := e.session.Match.ID
	total := len(e.questions)
	e.mu.Unlock()

	go e.submit(answers, oppAnswers, sessionID, receiverID, total)
}

// submit posts the answer sequence and finishes the stage. The POST is
// best-effort: a failure degrades to an empty result instead of blocking
// completion.
func (e *Engine) submit(answers, oppAnswers []string, sessionID, receiverID string, total int) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := e.cfg.API.SubmitResult(ctx, ResultSubmission{
		QuizSessionID:  sessionID,
		ReceiverID:     receiverID,
		Answers:        answers,
		TotalQuestions: total,
	})

	results := Results{Answers: answers, Shared: SharedAnswers(answers, oppAnswers)}
	if err != nil {
		e.cfg.Logger.Warn().Err(err).Str("gameSessionId", sessionID).Msg("result submission failed")
		results = Results{Answers: []string{}, Shared: 0}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.state = StateCompleted
	e.mu.Unlock()

	e.cfg.Cues.StopAll()
	e.cfg.Store.RecordResults(results)
	e.cfg.Logger.Info().Str("gameSessionId", sessionID).Int("shared", results.Shared).Msg("stage completed")
	if e.cfg.OnComplete != nil {
		e.cfg.OnComplete(results)
	}
}

// onOpponentDisconnected aborts the stage. On stages 1-2 the player gets a
// dismissible notice; on the final stage the session just ends.
func (e *Engine) onOpponentDisconnected(data json.RawMessage) {
	var p channel.OpponentDisconnectedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	e.mu.Lock()
	if e.closed || p.GameSessionID != e.session.SessionID ||
		e.state == StateCompleted || e.state == StateAborted || e.state == StateSubmitting {
		e.mu.Unlock()
		return
	}
	e.roundToken++
	e.stopTimerLocked()
	e.state = StateAborted
	stage := e.session.Stage
	sessionID := e.session.SessionID
	e.mu.Unlock()

	e.cfg.Cues.StopAll()
	e.binder.Close()
	notice := stage < MaxStage
	if notice && e.cfg.Prompter != nil {
		e.cfg.Prompter.Notify("Opponent Left", "Your opponent has ended the game.")
	}
	e.cfg.Store.Reset(nil, "", sessionID)
	e.cfg.Logger.Info().Str("gameSessionId", sessionID).Str("opponentId", p.OpponentID).Bool("notice", notice).Msg("opponent disconnected")
	if e.cfg.OnAborted != nil {
		e.cfg.OnAborted(p.OpponentID, notice)
	}
}
