package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubOrderingAndReconnect(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := RunChannel(uuid.New())

	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventRunEvent, ID: 1})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventHeartbeat})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventRunEvent, ID: 2})

	if got := recvMessage(t, clientA.Outbound, time.Second); got.ID != 1 {
		t.Fatalf("first: want id=1 got=%d", got.ID)
	}
	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventHeartbeat {
		t.Fatalf("second: want heartbeat got=%s", got.Event)
	}
	if got := recvMessage(t, clientA.Outbound, time.Second); got.ID != 2 {
		t.Fatalf("third: want id=2 got=%d", got.ID)
	}

	hub.CloseClient(clientA)
	if _, ok := <-clientA.Outbound; ok {
		t.Fatalf("outbound should be closed after disconnect")
	}
	hub.CloseClient(clientA)
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("closed client still subscribed: %d", n)
	}

	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventRunEvent, ID: 3, Closes: true})
	if got := recvMessage(t, clientB.Outbound, time.Second); got.ID != 3 || !got.Closes {
		t.Fatalf("reconnect: %+v", got)
	}
}

func TestSSEHubMarksSlowClientLagged(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := RunChannel(uuid.New())
	slow := hub.NewSSEClient(uuid.New())
	hub.AddChannel(slow, channel)

	for i := 0; i < outboundBuffer+1; i++ {
		hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventRunEvent, ID: int64(i + 1)})
	}
	select {
	case <-slow.Lagged():
	case <-time.After(time.Second):
		t.Fatalf("slow client was not marked lagged")
	}
	if got := recvMessage(t, slow.Outbound, time.Second); got.ID != 1 {
		t.Fatalf("buffered messages keep their order: got id=%d", got.ID)
	}
}

func TestSSEHubIgnoresOtherChannels(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	c := hub.NewSSEClient(uuid.New())
	hub.AddChannel(c, RunChannel(uuid.New()))
	hub.Broadcast(SSEMessage{Channel: RunChannel(uuid.New()), Event: SSEEventRunEvent, ID: 1})
	hub.Broadcast(SSEMessage{Event: SSEEventRunEvent, ID: 2})
	select {
	case msg := <-c.Outbound:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelMessageRoundTrip(t *testing.T) {
	id := uuid.New()
	got, ok := CancelTarget(CancelMessage(id))
	if !ok || got != id {
		t.Fatalf("CancelTarget: ok=%v got=%s", ok, got)
	}
	if _, ok := CancelTarget(SSEMessage{Channel: RunChannel(id), Event: SSEEventRunCancel}); ok {
		t.Fatalf("cancel outside control channel must be ignored")
	}
}
