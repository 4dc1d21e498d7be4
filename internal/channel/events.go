package channel

// Event names shared between the client core and the gateway. The names are
// part of the wire contract and must not change independently of the server.
const (
	// client -> server
	EventJoin          = "join"
	EventSendInvite    = "sendGameInvite"
	EventRespondInvite = "respondToInvite"
	EventCancelInvite  = "cancelInvite"
	EventSubmitAnswer  = "submitAnswer"
	EventLeaveSession  = "leaveGameSession"
	EventManualEnd     = "manualGameEnd"

	// server -> client
	EventReceiveInvite        = "receiveGameInvite"
	EventInviteAccepted       = "inviteAccepted"
	EventInviteRejected       = "inviteRejected"
	EventInviteExpired        = "inviteExpired"
	EventInviteError          = "inviteError"
	EventInviteAutoDismiss    = "inviteAutoDismiss"
	EventBothAnswers          = "bothAnswersReceived"
	EventOpponentDisconnected = "opponentDisconnected"
)

type JoinPayload struct {
	UserID string `json:"userId"`
}

type SendInvitePayload struct {
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Level       int    `json:"level"`
}

// InviteAck is the acknowledgement payload for EventSendInvite. Exactly one
// of InvitationID or Error is set.
type InviteAck struct {
	InvitationID string `json:"invitationId,omitempty"`
	Error        string `json:"error,omitempty"`
}

type RespondInvitePayload struct {
	InvitationID string `json:"invitationId"`
	RecipientID  string `json:"recipientId"`
	Accepted     bool   `json:"accepted"`
}

type CancelInvitePayload struct {
	InvitationID string `json:"invitationId"`
}

type SubmitAnswerPayload struct {
	AnswerText    string `json:"answerText"`
	UserID        string `json:"userId"`
	ReceiverID    string `json:"receiverId"`
	GameSessionID string `json:"gameSessionId"`
	QuestionIndex int    `json:"questionIndex"`
}

type SessionNoticePayload struct {
	UserID        string `json:"userId"`
	GameSessionID string `json:"gameSessionId"`
}

type ReceiveInvitePayload struct {
	InvitationID string `json:"invitationId"`
	SenderID     string `json:"senderId"`
	SenderName   string `json:"senderName,omitempty"`
	Level        int    `json:"level,omitempty"`
}

type InviteAcceptedPayload struct {
	GameSessionID string `json:"gameSessionId"`
	OpponentID    string `json:"opponentId"`
}

type InviteRejectedPayload struct {
	InvitationID  string `json:"invitationId"`
	RecipientName string `json:"recipientName,omitempty"`
}

type InviteErrorPayload struct {
	Error string `json:"error"`
}

type InviteAutoDismissPayload struct {
	InvitationID string `json:"invitationId"`
}

type BothAnswersPayload struct {
	GameSessionID  string `json:"gameSessionId"`
	QuestionIndex  int    `json:"questionIndex"`
	YourAnswer     string `json:"yourAnswer"`
	OpponentAnswer string `json:"opponentAnswer"`
	UserID         string `json:"userId"`
}

type OpponentDisconnectedPayload struct {
	GameSessionID string `json:"gameSessionId"`
	OpponentID    string `json:"opponentId"`
}
