package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/yungbote/chartmotion-backend/internal/realtime"
)

// Bus fans messages out to every instance, including the publisher.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	// StartForwarder delivers every message to onMsg until ctx is done.
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Ping(ctx context.Context) error
	Close() error
}

var ErrClosed = errors.New("bus closed")

// Memory is an in-process Bus. Publish calls forwarders synchronously.
type Memory struct {
	mu     sync.RWMutex
	subs   map[int]func(realtime.SSEMessage)
	next   int
	closed bool
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[int]func(realtime.SSEMessage))}
}

func (m *Memory) Publish(_ context.Context, msg realtime.SSEMessage) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	for _, fn := range m.subs {
		fn(msg)
	}
	return nil
}

func (m *Memory) StartForwarder(ctx context.Context, onMsg func(realtime.SSEMessage)) error {
	if onMsg == nil {
		return errors.New("onMsg callback required")
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	id := m.next
	m.next++
	m.subs[id] = onMsg
	m.mu.Unlock()

	context.AfterFunc(ctx, func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	})
	return nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subs = map[int]func(realtime.SSEMessage){}
	return nil
}
