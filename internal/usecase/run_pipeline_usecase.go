package usecase

import (
	"context"

	"github.com/samber/do"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/pipeline"
)

// RunPipelineUsecase executes a pipeline run and waits for it to finish.
type RunPipelineUsecase interface {
	Execute(ctx context.Context, trigger entity.Trigger) (*entity.Run, error)
}

type runPipelineUsecaseImpl struct {
	runner *pipeline.Runner
}

// Execute implements RunPipelineUsecase.
func (r *runPipelineUsecaseImpl) Execute(ctx context.Context, trigger entity.Trigger) (*entity.Run, error) {
	return r.runner.Run(ctx, trigger)
}

func NewRunPipelineUsecase(injector *do.Injector) (RunPipelineUsecase, error) {
	runner, err := do.Invoke[*pipeline.Runner](injector)
	if err != nil {
		return nil, err
	}
	return &runPipelineUsecaseImpl{runner: runner}, nil
}
