package render_run

import (
	"context"
	"errors"
	"fmt"

	jobrt "github.com/yungbote/chartmotion-backend/internal/jobs/runtime"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/render"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	return dispatch(jc, p.dispatcher.Run)
}

func (p *ExportPipeline) Run(jc *jobrt.Context) error {
	return dispatch(jc, p.dispatcher.Export)
}

type dispatchFunc func(ctx context.Context, req render.Request, sink render.Sink) (render.Outcome, error)

func dispatch(jc *jobrt.Context, fn dispatchFunc) error {
	if jc == nil || jc.Run == nil {
		return nil
	}
	if jc.Run.Source == "" {
		return jc.Fail(render.UnknownRuntime, "run has no generated source")
	}
	out, err := fn(jc.Ctx, jc.Request(), jc)
	switch {
	case errors.Is(err, render.ErrPoolExhausted):
		jc.Log.Info("render pool exhausted, requeueing")
		return jc.Release()
	case err != nil && jc.Ctx.Err() != nil:
		// Shut down while waiting for a renderer slot.
		return jc.Release()
	case err != nil:
		return jc.Fail(render.UnknownRuntime, fmt.Sprintf("dispatch: %v", err))
	}
	return jc.Finish(out)
}
