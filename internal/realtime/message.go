package realtime

import "github.com/google/uuid"

type SSEEvent string

const (
	SSEEventRunEvent  SSEEvent = "run_event"
	SSEEventHeartbeat SSEEvent = "heartbeat"
	// SSEEventRunCancel travels on ControlChannel only and is never sent to clients.
	SSEEventRunCancel SSEEvent = "run_cancel"
)

// ControlChannel carries instance-to-instance commands over the bus.
const ControlChannel = "control"

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	// ID is the persisted ledger sequence; zero for live-only messages.
	ID     int64 `json:"id,omitempty"`
	Closes bool  `json:"closes,omitempty"`
	Data   any   `json:"data,omitempty"`
}

func RunChannel(runID uuid.UUID) string {
	return "run:" + runID.String()
}

func CancelMessage(runID uuid.UUID) SSEMessage {
	return SSEMessage{Channel: ControlChannel, Event: SSEEventRunCancel, Data: map[string]any{"run_id": runID.String()}}
}

// CancelTarget extracts the run id from a cancel command.
func CancelTarget(msg SSEMessage) (uuid.UUID, bool) {
	if msg.Channel != ControlChannel || msg.Event != SSEEventRunCancel {
		return uuid.Nil, false
	}
	m, ok := msg.Data.(map[string]any)
	if !ok {
		return uuid.Nil, false
	}
	raw, _ := m["run_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
