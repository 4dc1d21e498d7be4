package gateway

import (
	"encoding/json"
	"time"

	"github.com/sparkd-app/dategame/internal/channel"
)

func (s *Server) handleFrame(c *client, f channel.Frame) {
	switch f.Event {
	case channel.EventJoin:
		// already joined; re-joins are harmless
	case channel.EventSendInvite:
		s.onSendInvite(c, f)
	case channel.EventRespondInvite:
		s.onRespondInvite(c, f)
	case channel.EventCancelInvite:
		s.onCancelInvite(c, f)
	case channel.EventSubmitAnswer:
		s.onSubmitAnswer(c, f)
	case channel.EventLeaveSession:
		s.onLeaveSession(c, f)
	case channel.EventManualEnd:
		s.onManualEnd(c, f)
	default:
		s.logger.Debug().Str("event", f.Event).Str("userId", c.userID).Msg("unhandled event")
	}
}

func (s *Server) onSendInvite(c *client, f channel.Frame) {
	var p channel.SendInvitePayload
	if err := json.Unmarshal(f.Data, &p); err != nil {
		c.ack(f.AckID, channel.InviteAck{Error: "malformed invite"})
		return
	}
	if p.RecipientID == "" || p.RecipientID == c.userID {
		c.ack(f.AckID, channel.InviteAck{Error: "invalid recipient"})
		return
	}
	if !s.online(p.RecipientID) {
		c.ack(f.AckID, channel.InviteAck{Error: "recipient is not available"})
		return
	}
	if s.mgr.HasPendingInviteBetween(c.userID, p.RecipientID) {
		c.ack(f.AckID, channel.InviteAck{Error: "an invitation is already pending"})
		return
	}
	level := p.Level
	if level < 1 {
		level = 1
	}
	inv := s.mgr.CreateInvite(c.userID, p.RecipientID, level)
	s.logger.Info().
		Str("invitationId", inv.ID).
		Str("senderId", inv.SenderID).
		Str("recipientId", inv.RecipientID).
		Int("level", inv.Level).
		Msg("invite sent")

	delivered := s.sendTo(inv.RecipientID, channel.EventReceiveInvite, channel.ReceiveInvitePayload{
		InvitationID: inv.ID,
		SenderID:     inv.SenderID,
		SenderName:   inv.SenderID,
		Level:        inv.Level,
	})
	if !delivered {
		_, _ = s.mgr.ResolveInvite(inv.ID, inviteCanceled)
		c.ack(f.AckID, channel.InviteAck{Error: "recipient is not available"})
		return
	}
	c.ack(f.AckID, channel.InviteAck{InvitationID: inv.ID})

	time.AfterFunc(s.inviteTTL, func() { s.expireInvite(inv.ID) })
}

// expireInvite fires when the TTL passes. A resolved invitation is left
// alone; a still pending one times out on both ends.
func (s *Server) expireInvite(invitationID string) {
	inv, err := s.mgr.ResolveInvite(invitationID, inviteExpired)
	if err != nil {
		return
	}
	s.logger.Info().Str("invitationId", inv.ID).Msg("invite expired")
	s.sendTo(inv.SenderID, channel.EventInviteExpired, channel.InviteAutoDismissPayload{InvitationID: inv.ID})
	s.sendTo(inv.RecipientID, channel.EventInviteAutoDismiss, channel.InviteAutoDismissPayload{InvitationID: inv.ID})
}

func (s *Server) onRespondInvite(c *client, f channel.Frame) {
	var p channel.RespondInvitePayload
	if err := json.Unmarshal(f.Data, &p); err != nil {
		return
	}
	status := inviteDeclined
	if p.Accepted {
		status = inviteAccepted
	}
	inv, err := s.mgr.ResolveInvite(p.InvitationID, status)
	if err != nil {
		s.sendTo(c.userID, channel.EventInviteError, channel.InviteErrorPayload{Error: "invitation is no longer available"})
		return
	}
	if inv.RecipientID != c.userID {
		s.logger.Warn().
			Str("invitationId", inv.ID).
			Str("userId", c.userID).
			Msg("response from non-recipient ignored")
		return
	}

	if !p.Accepted {
		s.logger.Info().Str("invitationId", inv.ID).Msg("invite declined")
		s.sendTo(inv.SenderID, channel.EventInviteRejected, channel.InviteRejectedPayload{
			InvitationID:  inv.ID,
			RecipientName: inv.RecipientID,
		})
		return
	}

	sess := s.mgr.StartSession(inv)
	s.logger.Info().
		Str("invitationId", inv.ID).
		Str("gameSessionId", sess.ID).
		Int("level", sess.Level).
		Msg("invite accepted, session started")
	s.sendTo(inv.SenderID, channel.EventInviteAccepted, channel.InviteAcceptedPayload{
		GameSessionID: sess.ID,
		OpponentID:    inv.RecipientID,
	})
	s.sendTo(inv.RecipientID, channel.EventInviteAccepted, channel.InviteAcceptedPayload{
		GameSessionID: sess.ID,
		OpponentID:    inv.SenderID,
	})
}

func (s *Server) onCancelInvite(c *client, f channel.Frame) {
	var p channel.CancelInvitePayload
	if err := json.Unmarshal(f.Data, &p); err != nil {
		return
	}
	inv, err := s.mgr.ResolveInvite(p.InvitationID, inviteCanceled)
	if err != nil {
		return
	}
	if inv.SenderID != c.userID {
		return
	}
	s.logger.Info().Str("invitationId", inv.ID).Msg("invite canceled")
	s.sendTo(inv.RecipientID, channel.EventInviteAutoDismiss, channel.InviteAutoDismissPayload{InvitationID: inv.ID})
}

func (s *Server) onSubmitAnswer(c *client, f channel.Frame) {
	var p channel.SubmitAnswerPayload
	if err := json.Unmarshal(f.Data, &p); err != nil {
		return
	}
	mine, theirs, opponentID, resolved, err := s.mgr.RecordAnswer(p.GameSessionID, c.userID, p.QuestionIndex, p.AnswerText)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("gameSessionId", p.GameSessionID).
			Str("userId", c.userID).
			Msg("answer rejected")
		return
	}
	if !resolved {
		return
	}
	s.logger.Info().
		Str("gameSessionId", p.GameSessionID).
		Int("questionIndex", p.QuestionIndex).
		Msg("both answers in")
	// each player gets the pair from their own point of view
	s.sendTo(c.userID, channel.EventBothAnswers, channel.BothAnswersPayload{
		GameSessionID:  p.GameSessionID,
		QuestionIndex:  p.QuestionIndex,
		YourAnswer:     mine,
		OpponentAnswer: theirs,
		UserID:         c.userID,
	})
	s.sendTo(opponentID, channel.EventBothAnswers, channel.BothAnswersPayload{
		GameSessionID:  p.GameSessionID,
		QuestionIndex:  p.QuestionIndex,
		YourAnswer:     theirs,
		OpponentAnswer: mine,
		UserID:         opponentID,
	})
}

func (s *Server) onLeaveSession(c *client, f channel.Frame) {
	var p channel.SessionNoticePayload
	if err := json.Unmarshal(f.Data, &p); err != nil {
		return
	}
	s.mgr.Leave(p.GameSessionID, c.userID)
	s.logger.Info().Str("gameSessionId", p.GameSessionID).Str("userId", c.userID).Msg("left session")
}

// onManualEnd forwards a deliberate mid-game exit to the opponent. The
// leaving player follows up with leaveGameSession on their own.
func (s *Server) onManualEnd(c *client, f channel.Frame) {
	var p channel.SessionNoticePayload
	if err := json.Unmarshal(f.Data, &p); err != nil {
		return
	}
	opponent, err := s.mgr.Opponent(p.GameSessionID, c.userID)
	if err != nil {
		return
	}
	s.logger.Info().Str("gameSessionId", p.GameSessionID).Str("userId", c.userID).Msg("manual game end")
	s.sendTo(opponent, channel.EventOpponentDisconnected, channel.OpponentDisconnectedPayload{
		GameSessionID: p.GameSessionID,
		OpponentID:    c.userID,
	})
}
