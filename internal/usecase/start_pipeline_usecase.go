package usecase

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/samber/do"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/pipeline"
)

// StartPipelineUsecase starts a run in the background and returns its
// pending record. It fails with entity.ErrRunInProgress when busy.
type StartPipelineUsecase interface {
	Execute(ctx context.Context, trigger entity.Trigger) (*entity.Run, error)
}

type startPipelineUsecaseImpl struct {
	runner *pipeline.Runner
}

// Execute implements StartPipelineUsecase.
func (s *startPipelineUsecaseImpl) Execute(ctx context.Context, trigger entity.Trigger) (*entity.Run, error) {
	exec, err := s.runner.Prepare(ctx, trigger)
	if err != nil {
		return nil, err
	}
	pending := *exec.Run()
	// the run outlives the request that started it
	bg := context.WithoutCancel(ctx)
	go func() {
		if _, err := exec.Execute(bg); err != nil {
			zerolog.Ctx(bg).Debug().Err(err).Str("run", pending.UID).Msg("background run finished with error")
		}
	}()
	return &pending, nil
}

func NewStartPipelineUsecase(injector *do.Injector) (StartPipelineUsecase, error) {
	runner, err := do.Invoke[*pipeline.Runner](injector)
	if err != nil {
		return nil, err
	}
	return &startPipelineUsecaseImpl{runner: runner}, nil
}
