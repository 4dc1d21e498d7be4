package channel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var (
	ErrClosed     = errors.New("channel closed")
	ErrAckTimeout = errors.New("no acknowledgement received")
)

// Handler receives the raw payload of a single event occurrence.
type Handler func(data json.RawMessage)

// Channel is the bidirectional event channel between the client and the
// game server. Implementations must be safe for concurrent use; handlers
// registered via Subscribe are invoked sequentially per connection.
type Channel interface {
	// Emit sends a fire-and-forget event.
	Emit(event string, v any) error

	// Request sends an event that carries an acknowledgement and blocks
	// until the ack payload arrives, ctx is done, or the channel closes.
	Request(ctx context.Context, event string, v any) (json.RawMessage, error)

	// Subscribe registers a handler for an event and returns a cancel
	// func that removes exactly this registration.
	Subscribe(event string, h Handler) (cancel func())
}

// Binder collects subscription handles so a component can release
// everything it registered in one call. Components bind on setup and call
// Close on teardown; leaving handlers registered after teardown is how
// duplicate-handling bugs happen.
type Binder struct {
	mu      sync.Mutex
	cancels []func()
}

// Bind subscribes h to event on ch and retains the cancel handle.
func (b *Binder) Bind(ch Channel, event string, h Handler) {
	cancel := ch.Subscribe(event, h)
	b.mu.Lock()
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()
}

// Close releases every subscription acquired through Bind.
func (b *Binder) Close() {
	b.mu.Lock()
	cancels := b.cancels
	b.cancels = nil
	b.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
