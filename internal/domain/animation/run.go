package animation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RunState string

const (
	RunStateStarting        RunState = "STARTING"
	RunStateAwaitingMapping RunState = "AWAITING_MAPPING"
	RunStatePreviewing      RunState = "PREVIEWING"
	RunStateRendering       RunState = "RENDERING"
	RunStateCompleted       RunState = "COMPLETED"
	RunStateExporting       RunState = "EXPORTING"
	RunStateFailed          RunState = "FAILED"
	RunStateCanceled        RunState = "CANCELED"
)

var AllRunStates = []RunState{
	RunStateStarting, RunStateAwaitingMapping, RunStatePreviewing, RunStateRendering,
	RunStateCompleted, RunStateExporting, RunStateFailed, RunStateCanceled,
}

// Terminal reports whether no further render work can happen. COMPLETED only leaves
// through an explicit export request.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateCompleted, RunStateFailed, RunStateCanceled:
		return true
	}
	return false
}

func (s RunState) Cancelable() bool {
	switch s {
	case RunStateStarting, RunStateAwaitingMapping, RunStatePreviewing, RunStateRendering, RunStateExporting:
		return true
	}
	return false
}

var transitions = map[RunState][]RunState{
	RunStateStarting:        {RunStateAwaitingMapping, RunStatePreviewing, RunStateFailed, RunStateCanceled},
	RunStateAwaitingMapping: {RunStateStarting, RunStateFailed, RunStateCanceled},
	RunStatePreviewing:      {RunStateRendering, RunStateFailed, RunStateCanceled},
	RunStateRendering:       {RunStateCompleted, RunStateFailed, RunStateCanceled},
	RunStateCompleted:       {RunStateExporting},
	RunStateExporting:       {RunStateCompleted, RunStateFailed, RunStateCanceled},
}

// CanTransition reports whether from -> to is an edge of the run lifecycle.
// Staying in the same state is always allowed (progress updates).
func CanTransition(from, to RunState) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// GenerativeFallbackTemplateID marks runs whose source came from the generative backend.
const GenerativeFallbackTemplateID = "generative_fallback"

type JobKind string

const (
	JobKindNone   JobKind = ""
	JobKindRender JobKind = "render"
	JobKindExport JobKind = "export"
)

// GenerationRun tracks one request from classification to artifact.
type GenerationRun struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_id"`
	SessionID string     `gorm:"column:session_id;index" json:"session_id,omitempty"`
	Message   string     `gorm:"column:message;type:text" json:"message"`
	DatasetID *uuid.UUID `gorm:"type:uuid;column:dataset_id;index" json:"dataset_id,omitempty"`
	Hint      string     `gorm:"column:hint" json:"hint,omitempty"`

	State         RunState       `gorm:"column:state;not null;index" json:"state"`
	Phase         string         `gorm:"column:phase" json:"phase,omitempty"`
	Progress      int            `gorm:"column:progress;not null;default:0" json:"progress"`
	StatusMessage string         `gorm:"column:status_message;type:text" json:"status_message,omitempty"`
	JobKind       JobKind        `gorm:"column:job_kind;index" json:"job_kind,omitempty"`
	Attempts      int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	RetryCount    int            `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	ExportQuality string         `gorm:"column:export_quality" json:"export_quality,omitempty"`
	TemplateID    string         `gorm:"column:template_id;index" json:"template_id,omitempty"`
	Confidence    float64        `gorm:"column:confidence" json:"confidence"`
	Mapping       datatypes.JSON `gorm:"column:mapping;type:jsonb" json:"mapping,omitempty"`
	Options       datatypes.JSON `gorm:"column:options;type:jsonb" json:"options,omitempty"`
	Negotiation   datatypes.JSON `gorm:"column:negotiation;type:jsonb" json:"negotiation,omitempty"`
	Source        string         `gorm:"column:source;type:text" json:"-"`
	EntryPoint    string         `gorm:"column:entry_point" json:"entry_point,omitempty"`
	Generative    bool           `gorm:"column:generative;not null;default:false" json:"generative"`

	SourceKey  string         `gorm:"column:source_key" json:"source_key,omitempty"`
	PreviewKey string         `gorm:"column:preview_key" json:"preview_key,omitempty"`
	VideoKey   string         `gorm:"column:video_key" json:"video_key,omitempty"`
	ExportKey  string         `gorm:"column:export_key" json:"export_key,omitempty"`
	FrameKeys  datatypes.JSON `gorm:"column:frame_keys;type:jsonb" json:"frame_keys,omitempty"`

	FailureCategory string `gorm:"column:failure_category;index" json:"failure_category,omitempty"`
	FailureSummary  string `gorm:"column:failure_summary;type:text" json:"failure_summary,omitempty"`
	FailureRaw      string `gorm:"column:failure_raw;type:text" json:"-"`

	QueuedAt    *time.Time `gorm:"column:queued_at;index" json:"queued_at,omitempty"`
	LockedAt    *time.Time `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;index" json:"updated_at"`
}

func (GenerationRun) TableName() string { return "generation_run" }

func (r *GenerationRun) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
