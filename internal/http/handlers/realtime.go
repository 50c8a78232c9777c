package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/http/response"
	"github.com/yungbote/chartmotion-backend/internal/platform/ctxutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/realtime"
	"github.com/yungbote/chartmotion-backend/internal/services"
)

const (
	replayPage       = 500
	defaultKeepAlive = 15 * time.Second
)

type RealtimeHandler struct {
	log       *logger.Logger
	hub       *realtime.SSEHub
	gen       services.GenerationService
	keepAlive time.Duration
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, gen services.GenerationService, keepAlive time.Duration) *RealtimeHandler {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &RealtimeHandler{
		log:       log.With("handler", "RealtimeHandler"),
		hub:       hub,
		gen:       gen,
		keepAlive: keepAlive,
	}
}

// runStream delivers one run's events in ledger order, each exactly once.
type runStream struct {
	c    *gin.Context
	gen  services.GenerationService
	run  uuid.UUID
	last int64
	// closed is set once a terminal event has been written.
	closed bool
}

// GET /api/runs/:id/events
//
// Replays persisted events after Last-Event-ID (or ?after=), then forwards live ones.
// The stream ends after a completed, failed or canceled event. A subscriber that falls
// behind is disconnected and resumes with its last event id.
func (h *RealtimeHandler) RunEvents(c *gin.Context) {
	runID, ok := parseID(c, "invalid_run_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	run, err := h.gen.Run(ctx, runID)
	if err != nil {
		response.RespondServiceError(c, err, "get_run_failed")
		return
	}
	after, err := resumePoint(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_last_event_id", err)
		return
	}

	owner := uuid.Nil
	if rd := ctxutil.GetRequestData(ctx); rd != nil {
		owner = rd.OwnerID
	}
	// Subscribe before replaying so nothing published in between is lost.
	client := h.hub.NewSSEClient(owner)
	h.hub.AddChannel(client, realtime.RunChannel(runID))
	defer h.hub.CloseClient(client)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	s := &runStream{c: c, gen: h.gen, run: runID, last: after}
	if err := s.replay(); err != nil {
		h.log.Warn("run event replay failed", "run_id", runID, "error", err)
		return
	}
	if s.closed {
		return
	}
	if run.State.Terminal() {
		// Nothing more will be published; pick up a closing row written after the first read.
		_ = s.replay()
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Lagged():
			h.log.Info("run event stream lagged; closing", "run_id", runID, "last_seq", s.last)
			return
		case msg, ok := <-client.Outbound:
			if !ok {
				return
			}
			if client.IsLagging() {
				return
			}
			if err := s.deliver(msg); err != nil {
				h.log.Debug("run event stream write failed", "run_id", runID, "error", err)
				return
			}
			if s.closed {
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(c.Writer, ": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func resumePoint(c *gin.Context) (int64, error) {
	raw := strings.TrimSpace(c.GetHeader("Last-Event-ID"))
	if raw == "" {
		raw = strings.TrimSpace(c.Query("after"))
	}
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("last event id must be a non-negative integer")
	}
	return n, nil
}

// replay writes every persisted event after s.last. Only the newest ledger row may
// close the stream: a completed run can be exported later, which appends more events.
func (s *runStream) replay() error {
	for {
		evs, err := s.gen.Events(s.c.Request.Context(), s.run, s.last, replayPage)
		if err != nil {
			return err
		}
		final := len(evs) < replayPage
		for i, ev := range evs {
			if err := s.writeEvent(ev, final && i == len(evs)-1); err != nil {
				return err
			}
		}
		if final {
			return nil
		}
	}
}

func (s *runStream) deliver(msg realtime.SSEMessage) error {
	if msg.ID == 0 {
		return s.write("", msg.Event, msg.Data)
	}
	if msg.ID <= s.last {
		return nil
	}
	if msg.ID > s.last+1 {
		// A live message overtook ledger rows this stream has not seen.
		return s.replay()
	}
	if ev, ok := msg.Data.(*animation.GenerationRunEvent); ok {
		return s.writeEvent(ev, true)
	}
	if err := s.write(strconv.FormatInt(msg.ID, 10), msg.Event, msg.Data); err != nil {
		return err
	}
	s.last = msg.ID
	s.closed = msg.Closes
	return nil
}

func (s *runStream) writeEvent(ev *animation.GenerationRunEvent, mayClose bool) error {
	if ev.Seq <= s.last {
		return nil
	}
	if err := s.write(strconv.FormatInt(ev.Seq, 10), realtime.SSEEventRunEvent, ev); err != nil {
		return err
	}
	s.last = ev.Seq
	if mayClose && ev.Kind.Closes() {
		s.closed = true
	}
	return nil
}

func (s *runStream) write(id string, event realtime.SSEEvent, data any) error {
	if s.closed {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var sb strings.Builder
	if id != "" {
		sb.WriteString("id: ")
		sb.WriteString(id)
		sb.WriteByte('\n')
	}
	sb.WriteString("event: ")
	sb.WriteString(string(event))
	sb.WriteString("\ndata: ")
	sb.Write(b)
	sb.WriteString("\n\n")
	if _, err := io.WriteString(s.c.Writer, sb.String()); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}
