package realtime

import (
	"sync"

	"github.com/google/uuid"
)

const outboundBuffer = 64

// SSEClient is one open event stream. Outbound is closed by SSEHub.CloseClient; the
// hub owns channels and guards it with its own lock.
type SSEClient struct {
	ID       uuid.UUID
	OwnerID  uuid.UUID
	Outbound chan SSEMessage

	channels  map[string]bool
	done      chan struct{}
	lagged    chan struct{}
	lagOnce   sync.Once
	closeOnce sync.Once
}

func newSSEClient(ownerID uuid.UUID) *SSEClient {
	return &SSEClient{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		Outbound: make(chan SSEMessage, outboundBuffer),
		channels: make(map[string]bool),
		done:     make(chan struct{}),
		lagged:   make(chan struct{}),
	}
}

// Done closes when the hub disconnects the client.
func (c *SSEClient) Done() <-chan struct{} { return c.done }

// Lagged closes once the client missed a message because its buffer was full. The
// stream must end so the subscriber resumes from its last event id.
func (c *SSEClient) Lagged() <-chan struct{} { return c.lagged }

// IsLagging is the non-blocking form of Lagged.
func (c *SSEClient) IsLagging() bool {
	select {
	case <-c.lagged:
		return true
	default:
		return false
	}
}

// offer queues msg without blocking. A full buffer marks the client lagged.
func (c *SSEClient) offer(msg SSEMessage) bool {
	select {
	case c.Outbound <- msg:
		return true
	default:
		c.lagOnce.Do(func() { close(c.lagged) })
		return false
	}
}
