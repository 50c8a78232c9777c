package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/chartmotion-backend/internal/data/repos"
	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/render"
	"github.com/yungbote/chartmotion-backend/internal/platform/ctxutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/realtime"
)

// RunNotifier records run events in the ledger and fans them out to stream subscribers.
type RunNotifier interface {
	Event(ctx context.Context, run *animation.GenerationRun, kind animation.RunEventKind, message string, data any) (*animation.GenerationRunEvent, error)
	// Heartbeat is published live and never persisted.
	Heartbeat(ctx context.Context, run *animation.GenerationRun, hb render.Heartbeat)
}

type runNotifier struct {
	log    *logger.Logger
	events repos.RunEventRepo
	emit   SSEEmitter
}

func NewRunNotifier(log *logger.Logger, events repos.RunEventRepo, emit SSEEmitter) RunNotifier {
	return &runNotifier{log: log.With("service", "RunNotifier"), events: events, emit: emit}
}

func (n *runNotifier) Event(ctx context.Context, run *animation.GenerationRun, kind animation.RunEventKind, message string, data any) (*animation.GenerationRunEvent, error) {
	ev := &animation.GenerationRunEvent{
		RunID:     run.ID,
		Kind:      kind,
		State:     run.State,
		Phase:     run.Phase,
		Progress:  run.Progress,
		Message:   render.CapMessage(message),
		CreatedAt: time.Now(),
	}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		ev.Data = datatypes.JSON(b)
	}
	// Ledger writes outlive the caller's cancellation.
	if err := n.events.Append(dbctx.From(ctxutil.Detach(ctx)), ev); err != nil {
		n.log.With(ctxutil.LogFields(ctx)...).Error("append run event failed", "run_id", run.ID, "kind", kind, "error", err)
		return nil, err
	}
	if n.emit != nil {
		n.emit.Emit(ctx, EventMessage(ev))
	}
	return ev, nil
}

func (n *runNotifier) Heartbeat(ctx context.Context, run *animation.GenerationRun, hb render.Heartbeat) {
	if n.emit == nil || run == nil {
		return
	}
	n.emit.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.RunChannel(run.ID),
		Event:   realtime.SSEEventHeartbeat,
		Data: map[string]any{
			"run_id":          run.ID,
			"state":           run.State,
			"phase":           run.Phase,
			"at":              hb.At,
			"elapsed_seconds": int(hb.Elapsed / time.Second),
		},
	})
}

// EventMessage converts a persisted ledger row into its stream form.
func EventMessage(ev *animation.GenerationRunEvent) realtime.SSEMessage {
	return realtime.SSEMessage{
		Channel: realtime.RunChannel(ev.RunID),
		Event:   realtime.SSEEventRunEvent,
		ID:      ev.Seq,
		Closes:  ev.Kind.Closes(),
		Data:    ev,
	}
}

// Cancel commands travel the same path as events so every instance sees them.
func PublishCancel(ctx context.Context, emit SSEEmitter, runID uuid.UUID) {
	if emit == nil {
		return
	}
	emit.Emit(ctx, realtime.CancelMessage(runID))
}
