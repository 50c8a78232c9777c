package render

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is one renderer invocation.
type Job struct {
	RunID             uuid.UUID
	Attempt           int
	Source            string
	EntryPoint        string
	Phase             Phase
	Preset            Preset
	WorkDir           string
	HeartbeatInterval time.Duration
}

// Engine submits source to the external renderer. The returned channel delivers zero or
// more Heartbeat/Progress events, then exactly one Succeeded or Failed, then closes.
// Cancelling ctx stops the renderer and its heartbeats.
type Engine interface {
	Render(ctx context.Context, job Job) (<-chan Event, error)
}
