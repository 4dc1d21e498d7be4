package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sparkd-app/dategame/internal/channel"
	"github.com/sparkd-app/dategame/internal/game"
	"github.com/sparkd-app/dategame/internal/quizapi"
)

func gameSubmission(sessionID string, answers []string) game.ResultSubmission {
	return game.ResultSubmission{
		QuizSessionID:  sessionID,
		Answers:        answers,
		TotalQuestions: len(answers),
	}
}

// testGateway runs the full gin router on an httptest listener so the
// contract is exercised over real websockets and HTTP.
type testGateway struct {
	srv  *Server
	http *httptest.Server
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	srv := NewServer(NewManager(), zerolog.Nop())
	srv.Routes(r)
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return &testGateway{srv: srv, http: ts}
}

func (g *testGateway) wsURL() string {
	return "ws" + strings.TrimPrefix(g.http.URL, "http") + "/ws"
}

func (g *testGateway) dial(t *testing.T, userID string) *channel.Socket {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sock, err := channel.Dial(ctx, g.wsURL(), userID, zerolog.Nop())
	if err != nil {
		t.Fatalf("dialing as %s: %v", userID, err)
	}
	t.Cleanup(sock.Close)
	// joining is async; wait for the server to register the user
	waitForCond(t, func() bool { return g.srv.online(userID) })
	return sock
}

func waitForCond(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// collect buffers every payload of one event for later assertions.
func collect[T any](sock *channel.Socket, event string) func() []T {
	var mu sync.Mutex
	var got []T
	sock.Subscribe(event, func(data json.RawMessage) {
		var v T
		if json.Unmarshal(data, &v) == nil {
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		}
	})
	return func() []T {
		mu.Lock()
		defer mu.Unlock()
		return append([]T(nil), got...)
	}
}

func TestInviteHandshakeOverWire(t *testing.T) {
	g := newTestGateway(t)
	alice := g.dial(t, "alice")
	bob := g.dial(t, "bob")

	bobInvites := collect[channel.ReceiveInvitePayload](bob, channel.EventReceiveInvite)
	aliceAccepts := collect[channel.InviteAcceptedPayload](alice, channel.EventInviteAccepted)
	bobAccepts := collect[channel.InviteAcceptedPayload](bob, channel.EventInviteAccepted)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw, err := alice.Request(ctx, channel.EventSendInvite, channel.SendInvitePayload{
		SenderID:    "alice",
		RecipientID: "bob",
		Level:       1,
	})
	if err != nil {
		t.Fatal(err)
	}
	var ack channel.InviteAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		t.Fatal(err)
	}
	if ack.Error != "" || ack.InvitationID == "" {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	waitForCond(t, func() bool { return len(bobInvites()) == 1 })
	inv := bobInvites()[0]
	if inv.InvitationID != ack.InvitationID || inv.SenderID != "alice" || inv.Level != 1 {
		t.Fatalf("unexpected invite: %+v", inv)
	}

	if err := bob.Emit(channel.EventRespondInvite, channel.RespondInvitePayload{
		InvitationID: inv.InvitationID,
		RecipientID:  "bob",
		Accepted:     true,
	}); err != nil {
		t.Fatal(err)
	}

	waitForCond(t, func() bool { return len(aliceAccepts()) == 1 && len(bobAccepts()) == 1 })
	a, b := aliceAccepts()[0], bobAccepts()[0]
	if a.GameSessionID == "" || a.GameSessionID != b.GameSessionID {
		t.Fatalf("both players must land in the same session: %+v vs %+v", a, b)
	}
	if a.OpponentID != "bob" || b.OpponentID != "alice" {
		t.Fatalf("opponent ids are per-recipient: %+v vs %+v", a, b)
	}
}

func TestInviteToOfflineRecipient(t *testing.T) {
	g := newTestGateway(t)
	alice := g.dial(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw, err := alice.Request(ctx, channel.EventSendInvite, channel.SendInvitePayload{
		SenderID:    "alice",
		RecipientID: "ghost",
		Level:       1,
	})
	if err != nil {
		t.Fatal(err)
	}
	var ack channel.InviteAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		t.Fatal(err)
	}
	if ack.Error == "" {
		t.Fatal("inviting an offline user must fail in the ack")
	}
}

func TestInviteDeclineOverWire(t *testing.T) {
	g := newTestGateway(t)
	alice := g.dial(t, "alice")
	bob := g.dial(t, "bob")

	bobInvites := collect[channel.ReceiveInvitePayload](bob, channel.EventReceiveInvite)
	rejections := collect[channel.InviteRejectedPayload](alice, channel.EventInviteRejected)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := alice.Request(ctx, channel.EventSendInvite, channel.SendInvitePayload{
		SenderID: "alice", RecipientID: "bob", Level: 1,
	}); err != nil {
		t.Fatal(err)
	}
	waitForCond(t, func() bool { return len(bobInvites()) == 1 })

	if err := bob.Emit(channel.EventRespondInvite, channel.RespondInvitePayload{
		InvitationID: bobInvites()[0].InvitationID,
		RecipientID:  "bob",
		Accepted:     false,
	}); err != nil {
		t.Fatal(err)
	}

	waitForCond(t, func() bool { return len(rejections()) == 1 })
	if rejections()[0].RecipientName == "" {
		t.Fatalf("rejection should name the decliner: %+v", rejections()[0])
	}
}

func TestInviteExpiryOverWire(t *testing.T) {
	g := newTestGateway(t)
	g.srv.SetInviteTTL(30 * time.Millisecond)
	alice := g.dial(t, "alice")
	bob := g.dial(t, "bob")

	expiries := collect[channel.InviteAutoDismissPayload](alice, channel.EventInviteExpired)
	dismissals := collect[channel.InviteAutoDismissPayload](bob, channel.EventInviteAutoDismiss)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := alice.Request(ctx, channel.EventSendInvite, channel.SendInvitePayload{
		SenderID: "alice", RecipientID: "bob", Level: 1,
	}); err != nil {
		t.Fatal(err)
	}

	waitForCond(t, func() bool { return len(expiries()) == 1 && len(dismissals()) == 1 })
}

func TestCancelInviteDismissesRecipient(t *testing.T) {
	g := newTestGateway(t)
	alice := g.dial(t, "alice")
	bob := g.dial(t, "bob")

	bobInvites := collect[channel.ReceiveInvitePayload](bob, channel.EventReceiveInvite)
	dismissals := collect[channel.InviteAutoDismissPayload](bob, channel.EventInviteAutoDismiss)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := alice.Request(ctx, channel.EventSendInvite, channel.SendInvitePayload{
		SenderID: "alice", RecipientID: "bob", Level: 1,
	}); err != nil {
		t.Fatal(err)
	}
	waitForCond(t, func() bool { return len(bobInvites()) == 1 })

	if err := alice.Emit(channel.EventCancelInvite, channel.CancelInvitePayload{
		InvitationID: bobInvites()[0].InvitationID,
	}); err != nil {
		t.Fatal(err)
	}

	waitForCond(t, func() bool { return len(dismissals()) == 1 })
}

// startSession runs the invite handshake and returns the session id.
func startSession(t *testing.T, g *testGateway, alice, bob *channel.Socket) string {
	t.Helper()
	bobInvites := collect[channel.ReceiveInvitePayload](bob, channel.EventReceiveInvite)
	accepts := collect[channel.InviteAcceptedPayload](alice, channel.EventInviteAccepted)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := alice.Request(ctx, channel.EventSendInvite, channel.SendInvitePayload{
		SenderID: "alice", RecipientID: "bob", Level: 1,
	}); err != nil {
		t.Fatal(err)
	}
	waitForCond(t, func() bool { return len(bobInvites()) == 1 })
	if err := bob.Emit(channel.EventRespondInvite, channel.RespondInvitePayload{
		InvitationID: bobInvites()[0].InvitationID,
		RecipientID:  "bob",
		Accepted:     true,
	}); err != nil {
		t.Fatal(err)
	}
	waitForCond(t, func() bool { return len(accepts()) == 1 })
	return accepts()[0].GameSessionID
}

func TestAnswerBarrierOverWire(t *testing.T) {
	g := newTestGateway(t)
	alice := g.dial(t, "alice")
	bob := g.dial(t, "bob")
	sessionID := startSession(t, g, alice, bob)

	alicePairs := collect[channel.BothAnswersPayload](alice, channel.EventBothAnswers)
	bobPairs := collect[channel.BothAnswersPayload](bob, channel.EventBothAnswers)

	if err := alice.Emit(channel.EventSubmitAnswer, channel.SubmitAnswerPayload{
		AnswerText: "A", UserID: "alice", ReceiverID: "bob", GameSessionID: sessionID, QuestionIndex: 0,
	}); err != nil {
		t.Fatal(err)
	}
	// one answer is not enough
	time.Sleep(50 * time.Millisecond)
	if len(alicePairs()) != 0 {
		t.Fatal("the barrier resolved on a single answer")
	}

	if err := bob.Emit(channel.EventSubmitAnswer, channel.SubmitAnswerPayload{
		AnswerText: "B", UserID: "bob", ReceiverID: "alice", GameSessionID: sessionID, QuestionIndex: 0,
	}); err != nil {
		t.Fatal(err)
	}

	waitForCond(t, func() bool { return len(alicePairs()) == 1 && len(bobPairs()) == 1 })
	ap, bp := alicePairs()[0], bobPairs()[0]
	if ap.UserID != "alice" || ap.YourAnswer != "A" || ap.OpponentAnswer != "B" {
		t.Fatalf("alice's view is wrong: %+v", ap)
	}
	if bp.UserID != "bob" || bp.YourAnswer != "B" || bp.OpponentAnswer != "A" {
		t.Fatalf("bob's view is wrong: %+v", bp)
	}
	if ap.GameSessionID != sessionID || ap.QuestionIndex != 0 {
		t.Fatalf("pair must identify its session and question: %+v", ap)
	}
}

func TestDisconnectNotifiesOpponent(t *testing.T) {
	g := newTestGateway(t)
	alice := g.dial(t, "alice")
	bob := g.dial(t, "bob")
	sessionID := startSession(t, g, alice, bob)

	drops := collect[channel.OpponentDisconnectedPayload](alice, channel.EventOpponentDisconnected)

	bob.Close()

	waitForCond(t, func() bool { return len(drops()) == 1 })
	if drops()[0].GameSessionID != sessionID || drops()[0].OpponentID != "bob" {
		t.Fatalf("unexpected disconnect notice: %+v", drops()[0])
	}
}

func TestManualEndNotifiesOpponent(t *testing.T) {
	g := newTestGateway(t)
	alice := g.dial(t, "alice")
	bob := g.dial(t, "bob")
	sessionID := startSession(t, g, alice, bob)

	drops := collect[channel.OpponentDisconnectedPayload](alice, channel.EventOpponentDisconnected)

	if err := bob.Emit(channel.EventManualEnd, channel.SessionNoticePayload{
		UserID: "bob", GameSessionID: sessionID,
	}); err != nil {
		t.Fatal(err)
	}

	waitForCond(t, func() bool { return len(drops()) == 1 })
	if drops()[0].OpponentID != "bob" {
		t.Fatalf("unexpected notice: %+v", drops()[0])
	}
}

func TestRESTRoundTrip(t *testing.T) {
	g := newTestGateway(t)
	alice := g.dial(t, "alice")
	bob := g.dial(t, "bob")
	sessionID := startSession(t, g, alice, bob)

	api := quizapi.New(g.http.URL, "alice")
	qs, err := api.Questions(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) == 0 {
		t.Fatal("stage 1 should have questions")
	}

	answers := make([]string, len(qs))
	for i, q := range qs {
		answers[i] = q.Options[0].Text
	}
	sub := func(token string) {
		c := quizapi.New(g.http.URL, token)
		if err := c.SubmitResult(context.Background(), gameSubmission(sessionID, answers)); err != nil {
			t.Fatal(err)
		}
	}
	sub("alice")

	// pending until both players submitted
	if _, err := api.Result(context.Background(), sessionID); err == nil {
		t.Fatal("a half-submitted result must read as pending")
	}

	sub("bob")
	report, err := api.Result(context.Background(), sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if report.Compatibility != 100 || report.Shared != len(qs) {
		t.Fatalf("identical answers should score 100%%: %+v", report)
	}
	if len(report.Results) != 2 {
		t.Fatalf("expected two rows, got %d", len(report.Results))
	}
}
