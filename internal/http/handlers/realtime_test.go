package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/realtime"
	"github.com/yungbote/chartmotion-backend/internal/services"
)

// ledgerGen serves a run and a ledger that the test appends to while a stream is open.
type ledgerGen struct {
	services.GenerationService

	mu     sync.Mutex
	run    *animation.GenerationRun
	events []*animation.GenerationRunEvent
}

func (g *ledgerGen) Run(context.Context, uuid.UUID) (*animation.GenerationRun, error) {
	return g.run, nil
}

func (g *ledgerGen) Events(_ context.Context, _ uuid.UUID, after int64, limit int) ([]*animation.GenerationRunEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*animation.GenerationRunEvent
	for _, ev := range g.events {
		if ev.Seq > after && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (g *ledgerGen) append(kind animation.RunEventKind, state animation.RunState) *animation.GenerationRunEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	ev := &animation.GenerationRunEvent{
		ID:        uuid.New(),
		RunID:     g.run.ID,
		Seq:       int64(len(g.events) + 1),
		Kind:      kind,
		State:     state,
		CreatedAt: time.Now(),
	}
	g.events = append(g.events, ev)
	return ev
}

func newLedger(state animation.RunState) *ledgerGen {
	return &ledgerGen{run: &animation.GenerationRun{ID: uuid.New(), State: state}}
}

func streamRouter(hub *realtime.SSEHub, gen services.GenerationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewRealtimeHandler(logger.Nop(), hub, gen, time.Minute)
	r := gin.New()
	r.GET("/api/runs/:id/events", h.RunEvents)
	return r
}

func ids(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "id: ") {
			out = append(out, strings.TrimPrefix(line, "id: "))
		}
	}
	return out
}

func TestRunEventsReplayAfterLastEventID(t *testing.T) {
	g := newLedger(animation.RunStateFailed)
	g.append(animation.RunEventTransition, animation.RunStatePreviewing)
	g.append(animation.RunEventProgress, animation.RunStatePreviewing)
	g.append(animation.RunEventTransition, animation.RunStateRendering)
	g.append(animation.RunEventFailed, animation.RunStateFailed)
	hub := realtime.NewSSEHub(logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+g.run.ID.String()+"/events", nil)
	req.Header.Set("Last-Event-ID", "2")
	rec := httptest.NewRecorder()
	streamRouter(hub, g).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{"3", "4"}, ids(rec.Body.String()))
	assert.Contains(t, rec.Body.String(), "event: run_event\n")
	assert.Zero(t, hub.Subscribers(realtime.RunChannel(g.run.ID)))
}

func TestRunEventsTerminalRunWithNothingNew(t *testing.T) {
	g := newLedger(animation.RunStateCompleted)
	g.append(animation.RunEventCompleted, animation.RunStateCompleted)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+g.run.ID.String()+"/events?after=1", nil)
	rec := httptest.NewRecorder()
	streamRouter(realtime.NewSSEHub(logger.Nop()), g).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ids(rec.Body.String()))
}

func TestRunEventsRejectsBadResumePoint(t *testing.T) {
	g := newLedger(animation.RunStateRendering)
	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+g.run.ID.String()+"/events", nil)
	req.Header.Set("Last-Event-ID", "abc")
	rec := httptest.NewRecorder()
	streamRouter(realtime.NewSSEHub(logger.Nop()), g).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// stream opens the event stream in the background and waits until it is subscribed.
func stream(t *testing.T, hub *realtime.SSEHub, g *ledgerGen) (*httptest.ResponseRecorder, context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+g.run.ID.String()+"/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	r := streamRouter(hub, g)
	go func() {
		defer close(done)
		r.ServeHTTP(rec, req)
	}()
	require.Eventually(t, func() bool {
		return hub.Subscribers(realtime.RunChannel(g.run.ID)) == 1
	}, 2*time.Second, 5*time.Millisecond)
	return rec, cancel, done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end")
	}
}

func TestRunEventsLiveExactlyOnceInOrder(t *testing.T) {
	g := newLedger(animation.RunStateRendering)
	first := g.append(animation.RunEventTransition, animation.RunStatePreviewing)
	hub := realtime.NewSSEHub(logger.Nop())
	rec, cancel, done := stream(t, hub, g)
	defer cancel()

	// Already replayed.
	hub.Broadcast(services.EventMessage(first))
	hub.Broadcast(realtime.SSEMessage{
		Channel: realtime.RunChannel(g.run.ID),
		Event:   realtime.SSEEventHeartbeat,
		Data:    map[string]any{"run_id": g.run.ID},
	})
	// Seq 3 arrives before 2 was seen live; the gap is filled from the ledger.
	g.append(animation.RunEventProgress, animation.RunStateRendering)
	third := g.append(animation.RunEventArtifact, animation.RunStateRendering)
	hub.Broadcast(services.EventMessage(third))
	last := g.append(animation.RunEventCompleted, animation.RunStateCompleted)
	hub.Broadcast(services.EventMessage(last))

	waitDone(t, done)
	body := rec.Body.String()
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(body))
	assert.Contains(t, body, "event: heartbeat\n")
	assert.Less(t, strings.Index(body, "id: 1\n"), strings.Index(body, "event: heartbeat"))
}

func TestRunEventsCompletedThenExportingStaysOpen(t *testing.T) {
	g := newLedger(animation.RunStateExporting)
	g.append(animation.RunEventCompleted, animation.RunStateCompleted)
	g.append(animation.RunEventTransition, animation.RunStateExporting)
	hub := realtime.NewSSEHub(logger.Nop())
	rec, cancel, done := stream(t, hub, g)

	cancel()
	waitDone(t, done)
	assert.Equal(t, []string{"1", "2"}, ids(rec.Body.String()))
}
