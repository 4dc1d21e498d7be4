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

var (
	ErrInviteInFlight = errors.New("an invite is already being sent")
	ErrNegotiatorDone = errors.New("negotiator closed")
)

// Prompter is the UI seam for invite negotiation. Implementations render
// modals and notices; respond must be called at most once.
type Prompter interface {
	ShowInvite(inv channel.ReceiveInvitePayload, respond func(accept bool))
	DismissInvite(invitationID string)
	Notify(title, message string)
}

// NegotiatorConfig wires a Negotiator. Channel, Store, SelfID and Prompter
// are required.
type NegotiatorConfig struct {
	Channel channel.Channel
	Store   *Store
	SelfID  string

	Prompter Prompter
	Logger   zerolog.Logger

	// OnSessionStarted fires once an invite handshake produced an active
	// session, on both the inviting and the accepting side. The callback
	// navigates to the play surface.
	OnSessionStarted func(Session)

	// AckTimeout bounds how long a sendGameInvite waits for its server
	// acknowledgement. Defaults to 10s.
	AckTimeout time.Duration
}

// Negotiator turns "A wants to play B" into an active session on both ends.
// Every terminal invite outcome clears the sending state so a fresh invite
// can follow immediately.
type Negotiator struct {
	cfg    NegotiatorConfig
	binder channel.Binder

	mu           sync.Mutex
	sending      bool
	pendingID    string
	pendingMatch *Match
	pendingLvl   int             // stage the outbound invite was sent for
	acceptedLvl  int             // stage carried by an incoming invite we accepted
	seen         map[string]bool // incoming invitation ids already prompted
	closed       bool
}

func NewNegotiator(cfg NegotiatorConfig) (*Negotiator, error) {
	if cfg.Channel == nil || cfg.Store == nil || cfg.SelfID == "" || cfg.Prompter == nil {
		return nil, errors.New("negotiator: channel, store, self id and prompter are required")
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 10 * time.Second
	}
	n := &Negotiator{cfg: cfg, seen: make(map[string]bool)}
	n.binder.Bind(cfg.Channel, channel.EventReceiveInvite, n.onReceiveInvite)
	n.binder.Bind(cfg.Channel, channel.EventInviteAccepted, n.onInviteAccepted)
	n.binder.Bind(cfg.Channel, channel.EventInviteRejected, n.onInviteRejected)
	n.binder.Bind(cfg.Channel, channel.EventInviteExpired, n.onInviteExpired)
	n.binder.Bind(cfg.Channel, channel.EventInviteError, n.onInviteError)
	n.binder.Bind(cfg.Channel, channel.EventInviteAutoDismiss, n.onAutoDismiss)
	return n, nil
}

// SendInvite starts an invite to the given match. nextStage marks a
// re-invite from the results screen; the invite then carries the stage after
// the current one, and both sides move to it only once the invite is
// accepted. The server acknowledgement is awaited asynchronously; failures
// surface through the Prompter.
func (n *Negotiator) SendInvite(match Match, nextStage bool) error {
	level := n.cfg.Store.Snapshot().Stage
	if nextStage && level < MaxStage {
		level++
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrNegotiatorDone
	}
	if n.sending {
		n.mu.Unlock()
		return ErrInviteInFlight
	}
	n.sending = true
	n.pendingID = ""
	m := match
	n.pendingMatch = &m
	n.pendingLvl = level
	n.mu.Unlock()

	payload := channel.SendInvitePayload{
		SenderID:    n.cfg.SelfID,
		RecipientID: match.ID,
		Level:       level,
	}
	go n.awaitAck(payload)
	return nil
}

// Sending reports whether an invite is currently in flight or awaiting a
// response.
func (n *Negotiator) Sending() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sending
}

// Close releases all event subscriptions and cancels a still-outbound
// invite so the recipient is not left with a stale prompt.
func (n *Negotiator) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	pending := n.pendingID
	n.pendingID = ""
	n.sending = false
	n.mu.Unlock()

	n.binder.Close()
	if pending != "" {
		_ = n.cfg.Channel.Emit(channel.EventCancelInvite, channel.CancelInvitePayload{InvitationID: pending})
	}
}

func (n *Negotiator) awaitAck(payload channel.SendInvitePayload) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.AckTimeout)
	defer cancel()
	raw, err := n.cfg.Channel.Request(ctx, channel.EventSendInvite, payload)
	if err != nil {
		n.failSend(fmt.Sprintf("Failed to send invite: %v", err))
		return
	}
	var ack channel.InviteAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		n.failSend("Failed to send invite")
		return
	}
	if ack.Error != "" {
		n.failSend(ack.Error)
		return
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		// Closed while the ack was in flight; withdraw immediately.
		_ = n.cfg.Channel.Emit(channel.EventCancelInvite, channel.CancelInvitePayload{InvitationID: ack.InvitationID})
		return
	}
	n.pendingID = ack.InvitationID
	n.mu.Unlock()
	n.cfg.Logger.Debug().Str("invitationId", ack.InvitationID).Msg("invite sent")
}

func (n *Negotiator) failSend(message string) {
	n.mu.Lock()
	n.sending = false
	n.pendingID = ""
	n.pendingMatch = nil
	closed := n.closed
	n.mu.Unlock()
	if !closed {
		n.cfg.Prompter.Notify("Error", message)
	}
}

func (n *Negotiator) onReceiveInvite(data json.RawMessage) {
	var inv channel.ReceiveInvitePayload
	if err := json.Unmarshal(data, &inv); err != nil {
		return
	}
	n.mu.Lock()
	if n.seen[inv.InvitationID] {
		n.mu.Unlock()
		return
	}
	n.seen[inv.InvitationID] = true
	n.mu.Unlock()

	var once sync.Once
	n.cfg.Prompter.ShowInvite(inv, func(accept bool) {
		once.Do(func() {
			if accept {
				n.mu.Lock()
				n.acceptedLvl = inv.Level
				n.mu.Unlock()
			}
			_ = n.cfg.Channel.Emit(channel.EventRespondInvite, channel.RespondInvitePayload{
				InvitationID: inv.InvitationID,
				RecipientID:  n.cfg.SelfID,
				Accepted:     accept,
			})
		})
	})
}

// onInviteAccepted fires on both ends of a successful handshake: the server
// tells each player the session id and their opponent.
func (n *Negotiator) onInviteAccepted(data json.RawMessage) {
	var p channel.InviteAcceptedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	n.mu.Lock()
	match := Match{ID: p.OpponentID}
	if n.pendingMatch != nil && n.pendingMatch.ID == p.OpponentID {
		match = *n.pendingMatch
	}
	targetLvl := n.acceptedLvl
	if n.sending && n.pendingLvl > targetLvl {
		targetLvl = n.pendingLvl
	}
	n.sending = false
	n.pendingID = ""
	n.pendingMatch = nil
	n.pendingLvl = 0
	n.acceptedLvl = 0
	n.mu.Unlock()

	// Both sides follow the stage the invite was sent for.
	for targetLvl > n.cfg.Store.Snapshot().Stage {
		n.cfg.Store.AdvanceStage()
	}
	n.cfg.Store.SetActiveMatch(match)
	n.cfg.Store.BeginSession(p.GameSessionID)
	n.cfg.Logger.Info().Str("gameSessionId", p.GameSessionID).Str("opponentId", p.OpponentID).Msg("invite accepted")
	if n.cfg.OnSessionStarted != nil {
		n.cfg.OnSessionStarted(n.cfg.Store.Snapshot())
	}
}

func (n *Negotiator) onInviteRejected(data json.RawMessage) {
	var p channel.InviteRejectedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	n.clearOutbound()
	name := p.RecipientName
	if name == "" {
		name = "Your match"
	}
	n.cfg.Prompter.Notify("Invite Declined", fmt.Sprintf("%s declined your game invite", name))
}

func (n *Negotiator) onInviteExpired(json.RawMessage) {
	n.clearOutbound()
	n.cfg.Prompter.Notify("Invite Expired", "The invite was not accepted in time")
}

func (n *Negotiator) onInviteError(data json.RawMessage) {
	var p channel.InviteErrorPayload
	_ = json.Unmarshal(data, &p)
	if p.Error == "" {
		p.Error = "Failed to send invite"
	}
	n.clearOutbound()
	n.cfg.Prompter.Notify("Error", p.Error)
}

func (n *Negotiator) onAutoDismiss(data json.RawMessage) {
	var p channel.InviteAutoDismissPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	n.cfg.Prompter.DismissInvite(p.InvitationID)
}

func (n *Negotiator) clearOutbound() {
	n.mu.Lock()
	n.sending = false
	n.pendingID = ""
	n.pendingMatch = nil
	n.pendingLvl = 0
	n.mu.Unlock()
}
