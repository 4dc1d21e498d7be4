package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sparkd-app/dategame/internal/channel"
)

type emittedEvent struct {
	event string
	data  json.RawMessage
}

// fakeChannel is an in-memory Channel for driving components from tests.
// Fired events run handlers synchronously on the caller's goroutine.
type fakeChannel struct {
	mu       sync.Mutex
	emitted  []emittedEvent
	handlers map[string]map[int]channel.Handler
	nextID   int
	ackFor   map[string]any
	ackErr   error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		handlers: make(map[string]map[int]channel.Handler),
		ackFor:   make(map[string]any),
	}
}

func (f *fakeChannel) Emit(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.emitted = append(f.emitted, emittedEvent{event: event, data: data})
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Request(ctx context.Context, event string, v any) (json.RawMessage, error) {
	if err := f.Emit(event, v); err != nil {
		return nil, err
	}
	f.mu.Lock()
	ack, ok := f.ackFor[event]
	err := f.ackErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, channel.ErrAckTimeout
	}
	return json.Marshal(ack)
}

func (f *fakeChannel) Subscribe(event string, h channel.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers[event] == nil {
		f.handlers[event] = make(map[int]channel.Handler)
	}
	id := f.nextID
	f.nextID++
	f.handlers[event][id] = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[event], id)
	}
}

// fire delivers an event to every subscribed handler.
func (f *fakeChannel) fire(t *testing.T, event string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("encoding %s payload: %v", event, err)
	}
	f.mu.Lock()
	hs := make([]channel.Handler, 0, len(f.handlers[event]))
	for _, h := range f.handlers[event] {
		hs = append(hs, h)
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(data)
	}
}

func (f *fakeChannel) setAck(event string, v any) {
	f.mu.Lock()
	f.ackFor[event] = v
	f.mu.Unlock()
}

func (f *fakeChannel) setAckErr(err error) {
	f.mu.Lock()
	f.ackErr = err
	f.mu.Unlock()
}

func (f *fakeChannel) eventsNamed(event string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []json.RawMessage
	for _, e := range f.emitted {
		if e.event == event {
			out = append(out, e.data)
		}
	}
	return out
}

func (f *fakeChannel) handlerCount(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers[event])
}

// recordingPrompter captures every UI interaction for assertions.
type recordingPrompter struct {
	mu         sync.Mutex
	invites    []channel.ReceiveInvitePayload
	responds   []func(accept bool)
	dismissed  []string
	notices    []string
	autoAccept bool
}

func (p *recordingPrompter) ShowInvite(inv channel.ReceiveInvitePayload, respond func(accept bool)) {
	p.mu.Lock()
	p.invites = append(p.invites, inv)
	p.responds = append(p.responds, respond)
	auto := p.autoAccept
	p.mu.Unlock()
	if auto {
		respond(true)
	}
}

func (p *recordingPrompter) DismissInvite(invitationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dismissed = append(p.dismissed, invitationID)
}

func (p *recordingPrompter) Notify(title, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, title+": "+message)
}

func (p *recordingPrompter) noticeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.notices)
}

func (p *recordingPrompter) lastNotice() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.notices) == 0 {
		return ""
	}
	return p.notices[len(p.notices)-1]
}

// fakeAPI is a canned QuizAPI and ResultFetcher.
type fakeAPI struct {
	mu          sync.Mutex
	questions   []Question
	fetchErr    error
	submitErr   error
	submissions []ResultSubmission
	report      ResultReport
	reportErrs  []error
}

func (a *fakeAPI) Questions(ctx context.Context, stage int) ([]Question, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fetchErr != nil {
		return nil, a.fetchErr
	}
	return a.questions, nil
}

func (a *fakeAPI) SubmitResult(ctx context.Context, sub ResultSubmission) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submissions = append(a.submissions, sub)
	return a.submitErr
}

func (a *fakeAPI) Result(ctx context.Context, sessionID string) (ResultReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.reportErrs) > 0 {
		err := a.reportErrs[0]
		a.reportErrs = a.reportErrs[1:]
		if err != nil {
			return ResultReport{}, err
		}
	}
	return a.report, nil
}

var errEventually = errors.New("condition not met in time")

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(errEventually)
}

func threeQuestions() []Question {
	return []Question{
		{ID: "q1", Text: "one", Points: 10, Options: []Option{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}}},
		{ID: "q2", Text: "two", Points: 10, Options: []Option{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}}},
		{ID: "q3", Text: "three", Points: 10, Options: []Option{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}}},
	}
}
