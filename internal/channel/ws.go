package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// Frame is the JSON envelope exchanged over the websocket. Events carrying
// an acknowledgement set AckID; the reply comes back as an "ack" frame with
// the same AckID.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID string          `json:"ackId,omitempty"`
}

// AckEvent is the reserved frame event carrying acknowledgement replies.
const AckEvent = "ack"

// Socket is a Channel over a single websocket connection.
type Socket struct {
	conn   *websocket.Conn
	send   chan Frame
	logger zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]map[int]Handler
	nextID   int
	acks     map[string]chan json.RawMessage
	closed   bool

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the gateway's websocket endpoint and starts the read and
// write pumps. The caller identifies itself immediately with a join event.
func Dial(ctx context.Context, url, userID string, logger zerolog.Logger) (*Socket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	s := &Socket{
		conn:     conn,
		send:     make(chan Frame, 64),
		logger:   logger,
		handlers: make(map[string]map[int]Handler),
		acks:     make(map[string]chan json.RawMessage),
		done:     make(chan struct{}),
	}
	go s.writePump()
	go s.readPump()
	if err := s.Emit(EventJoin, JoinPayload{UserID: userID}); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Socket) Emit(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", event, err)
	}
	return s.enqueue(Frame{Event: event, Data: data})
}

func (s *Socket) Request(ctx context.Context, event string, v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	ackID := uuid.NewString()
	ch := make(chan json.RawMessage, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.acks[ackID] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.acks, ackID)
		s.mu.Unlock()
	}()

	if err := s.enqueue(Frame{Event: event, Data: data, AckID: ackID}); err != nil {
		return nil, err
	}
	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrClosed
	}
}

func (s *Socket) Subscribe(event string, h Handler) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers[event] == nil {
		s.handlers[event] = make(map[int]Handler)
	}
	id := s.nextID
	s.nextID++
	s.handlers[event][id] = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers[event], id)
	}
}

// Close tears down the connection and fails any in-flight Request calls.
func (s *Socket) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		_ = s.conn.Close()
	})
}

// Done is closed when the connection is gone, whether by Close or by a read
// failure.
func (s *Socket) Done() <-chan struct{} { return s.done }

func (s *Socket) enqueue(f Frame) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.send <- f:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func (s *Socket) readPump() {
	defer s.Close()
	s.conn.SetReadLimit(65536)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		var f Frame
		if err := s.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("socket read failed")
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.dispatch(f)
	}
}

func (s *Socket) dispatch(f Frame) {
	if f.Event == AckEvent {
		s.mu.RLock()
		ch := s.acks[f.AckID]
		s.mu.RUnlock()
		if ch != nil {
			ch <- f.Data
		}
		return
	}
	s.mu.RLock()
	hs := make([]Handler, 0, len(s.handlers[f.Event]))
	for _, h := range s.handlers[f.Event] {
		hs = append(hs, h)
	}
	s.mu.RUnlock()
	for _, h := range hs {
		h(f.Data)
	}
}

func (s *Socket) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.Close()
	}()
	for {
		select {
		case f := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
