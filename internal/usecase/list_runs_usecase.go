package usecase

import (
	"context"

	"github.com/samber/do"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/repository"
)

type ListRunsUsecase interface {
	Execute(ctx context.Context, limit int) ([]*entity.Run, error)
}

type listRunsUsecaseImpl struct {
	runRepository repository.RunRepository
}

// Execute implements ListRunsUsecase.
func (l *listRunsUsecaseImpl) Execute(ctx context.Context, limit int) ([]*entity.Run, error) {
	return l.runRepository.List(ctx, limit)
}

func NewListRunsUsecase(injector *do.Injector) (ListRunsUsecase, error) {
	return &listRunsUsecaseImpl{
		runRepository: do.MustInvoke[repository.RunRepository](injector),
	}, nil
}
