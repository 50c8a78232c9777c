package services

import (
	"context"

	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/realtime"
	"github.com/yungbote/chartmotion-backend/internal/realtime/bus"
)

// SSEEmitter hands a stream message to whatever delivers it to subscribers. Emit
// never fails the caller; delivery is best effort and the event ledger is the record.
type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage)
}

// BusEmitter publishes through the bus. Every instance, this one included, forwards
// what it receives to its own hub, so a single-process deployment uses bus.Memory.
type BusEmitter struct {
	Bus bus.Bus
	Log *logger.Logger
}

func NewBusEmitter(log *logger.Logger, b bus.Bus) *BusEmitter {
	return &BusEmitter{Bus: b, Log: log.With("component", "BusEmitter")}
}

func (e *BusEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if e == nil || e.Bus == nil {
		return
	}
	// Cancellation of the caller must not drop a terminal event.
	if err := e.Bus.Publish(context.WithoutCancel(ctx), msg); err != nil && e.Log != nil {
		e.Log.Warn("bus publish failed", "channel", msg.Channel, "event", msg.Event, "error", err)
	}
}
