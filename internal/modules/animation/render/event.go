package render

import (
	"time"
	"unicode/utf8"
)

// EventKind is the closed set of signals an Engine may emit.
type EventKind string

const (
	EventHeartbeat EventKind = "heartbeat"
	EventProgress  EventKind = "progress"
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
)

// Event is implemented only by the four variants below.
type Event interface {
	Kind() EventKind
	isEvent()
}

// Heartbeat is a content-free liveness tick. It never changes run state and never counts
// as an attempt.
type Heartbeat struct {
	At      time.Time
	Elapsed time.Duration
}

// Progress reports substantive work: Step is the renderer's animation index, Percent its
// completion within that step.
type Progress struct {
	Phase   Phase
	Step    int
	Percent int
	Message string
}

type Succeeded struct {
	Phase        Phase
	ArtifactPath string
	FramePaths   []string
}

type Failed struct {
	Phase Phase
	Raw   string
}

func (Heartbeat) Kind() EventKind { return EventHeartbeat }
func (Progress) Kind() EventKind  { return EventProgress }
func (Succeeded) Kind() EventKind { return EventSucceeded }
func (Failed) Kind() EventKind    { return EventFailed }

func (Heartbeat) isEvent() {}
func (Progress) isEvent()  {}
func (Succeeded) isEvent() {}
func (Failed) isEvent()    {}

// Terminal reports whether ev ends an engine stream.
func Terminal(ev Event) bool {
	switch ev.(type) {
	case Succeeded, *Succeeded, Failed, *Failed:
		return true
	}
	return false
}

const maxMessageLen = 500

// CapMessage bounds status text forwarded to clients.
func CapMessage(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
