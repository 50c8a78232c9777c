package animation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RunEventKind string

const (
	RunEventCreated    RunEventKind = "created"
	RunEventTransition RunEventKind = "transition"
	RunEventProgress   RunEventKind = "progress"
	RunEventRetrying   RunEventKind = "retrying"
	RunEventArtifact   RunEventKind = "artifact"
	RunEventCompleted  RunEventKind = "completed"
	RunEventFailed     RunEventKind = "failed"
	RunEventCanceled   RunEventKind = "canceled"
	// Heartbeats are published live and never stored.
	RunEventHeartbeat RunEventKind = "heartbeat"
)

// Closes reports whether a stream subscriber should stop after this event.
func (k RunEventKind) Closes() bool {
	return k == RunEventCompleted || k == RunEventFailed || k == RunEventCanceled
}

// GenerationRunEvent is the append-only ledger of a run. Seq is dense per run, starting at 1.
type GenerationRunEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RunID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_run_event_seq,priority:1" json:"run_id"`
	Seq       int64          `gorm:"column:seq;not null;uniqueIndex:idx_run_event_seq,priority:2" json:"seq"`
	Kind      RunEventKind   `gorm:"column:kind;not null;index" json:"kind"`
	State     RunState       `gorm:"column:state;not null" json:"state"`
	Phase     string         `gorm:"column:phase" json:"phase,omitempty"`
	Progress  int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Message   string         `gorm:"column:message;type:text" json:"message,omitempty"`
	Data      datatypes.JSON `gorm:"column:data;type:jsonb" json:"data,omitempty"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}

func (GenerationRunEvent) TableName() string { return "generation_run_event" }

func (e *GenerationRunEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
