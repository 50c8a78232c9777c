package render_run

import (
	"context"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/render"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

// Dispatcher is the part of render.Dispatcher the handlers drive.
type Dispatcher interface {
	Run(ctx context.Context, req render.Request, sink render.Sink) (render.Outcome, error)
	Export(ctx context.Context, req render.Request, sink render.Sink) (render.Outcome, error)
}

// Pipeline runs the preview and final render phases of a queued run.
type Pipeline struct {
	log        *logger.Logger
	dispatcher Dispatcher
}

func New(log *logger.Logger, dispatcher Dispatcher) *Pipeline {
	return &Pipeline{log: log.With("job", "render"), dispatcher: dispatcher}
}

func (p *Pipeline) Kind() animation.JobKind { return animation.JobKindRender }

// ExportPipeline runs the separate high-quality pass of a completed run.
type ExportPipeline struct {
	log        *logger.Logger
	dispatcher Dispatcher
}

func NewExport(log *logger.Logger, dispatcher Dispatcher) *ExportPipeline {
	return &ExportPipeline{log: log.With("job", "export"), dispatcher: dispatcher}
}

func (p *ExportPipeline) Kind() animation.JobKind { return animation.JobKindExport }
