package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sparkd-app/dategame/internal/channel"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	defaultInviteTTL = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Server routes quiz events between connected players. One websocket per
// user; frames use the same envelope the client speaks.
type Server struct {
	mgr       *Manager
	logger    zerolog.Logger
	inviteTTL time.Duration
	onResult  func(*SessionResults)

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan channel.Frame
	srv    *Server

	closeOnce sync.Once
}

func NewServer(mgr *Manager, logger zerolog.Logger) *Server {
	return &Server{
		mgr:       mgr,
		logger:    logger,
		inviteTTL: defaultInviteTTL,
		clients:   make(map[string]*client),
	}
}

// SetInviteTTL overrides how long an invitation stays answerable.
func (s *Server) SetInviteTTL(d time.Duration) { s.inviteTTL = d }

// SetResultHook registers a callback invoked whenever a session's results
// become complete. Used for the export writer.
func (s *Server) SetResultHook(fn func(*SessionResults)) { s.onResult = fn }

// Close disconnects every player.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	cs := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		cs = append(cs, c)
	}
	s.clients = make(map[string]*client)
	s.mu.Unlock()
	for _, c := range cs {
		c.close()
	}
}

// HandleWS upgrades the request and serves frames until the peer goes away.
// The first frame must be a join carrying the caller's user id.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(65536)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))

	var join channel.Frame
	if err := conn.ReadJSON(&join); err != nil || join.Event != channel.EventJoin {
		_ = conn.Close()
		return
	}
	var p channel.JoinPayload
	if err := json.Unmarshal(join.Data, &p); err != nil || p.UserID == "" {
		_ = conn.Close()
		return
	}

	c := &client{
		userID: p.UserID,
		conn:   conn,
		send:   make(chan channel.Frame, 64),
		srv:    s,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	if prev, ok := s.clients[p.UserID]; ok {
		// a fresh connection supersedes a stale one for the same user
		defer prev.close()
	}
	s.clients[p.UserID] = c
	s.mu.Unlock()
	s.logger.Info().Str("userId", p.UserID).Msg("player connected")

	go c.writePump()
	c.readPump()
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	current := s.clients[c.userID] == c
	if current {
		delete(s.clients, c.userID)
	}
	s.mu.Unlock()
	if current {
		s.dropPlayer(c.userID)
		s.logger.Info().Str("userId", c.userID).Msg("player disconnected")
	}
}

// sendTo queues a frame for one user. Returns false when they are offline.
func (s *Server) sendTo(userID, event string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Str("event", event).Msg("encoding frame")
		return false
	}
	s.mu.RLock()
	c, ok := s.clients[userID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case c.send <- channel.Frame{Event: event, Data: data}:
		return true
	default:
		s.logger.Warn().Str("userId", userID).Str("event", event).Msg("send buffer full, dropping frame")
		return false
	}
}

func (s *Server) online(userID string) bool {
	s.mu.RLock()
	_, ok := s.clients[userID]
	s.mu.RUnlock()
	return ok
}

// dropPlayer tells every live opponent of userID that they are gone.
func (s *Server) dropPlayer(userID string) {
	for _, sessionID := range s.mgr.SessionsWith(userID) {
		opponent, err := s.mgr.Opponent(sessionID, userID)
		if err != nil {
			continue
		}
		s.mgr.Leave(sessionID, userID)
		s.sendTo(opponent, channel.EventOpponentDisconnected, channel.OpponentDisconnectedPayload{
			GameSessionID: sessionID,
			OpponentID:    userID,
		})
	}
}

// close tears down the connection. The send channel stays open so that
// concurrent sendTo calls never hit a closed channel; both pumps exit on
// the dead conn.
func (c *client) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

func (c *client) readPump() {
	defer func() {
		c.srv.remove(c)
		c.close()
	}()
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		var f channel.Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.srv.logger.Debug().Err(err).Str("userId", c.userID).Msg("read failed")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.srv.handleFrame(c, f)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) ack(ackID string, v any) {
	if ackID == "" {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- channel.Frame{Event: channel.AckEvent, Data: data, AckID: ackID}:
	default:
	}
}
