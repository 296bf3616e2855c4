package usecase

import (
	"context"

	"github.com/samber/do"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/repository"
)

// GetRunUsecase looks a run up by database id or by run uid.
type GetRunUsecase interface {
	Execute(ctx context.Context, id string) (*entity.Run, error)
}

type getRunUsecaseImpl struct {
	runRepository repository.RunRepository
}

// Execute implements GetRunUsecase.
func (g *getRunUsecaseImpl) Execute(ctx context.Context, id string) (*entity.Run, error) {
	if eid := entity.ID(id); eid.Valid() {
		return g.runRepository.GetByID(ctx, eid)
	}
	return g.runRepository.GetByUID(ctx, id)
}

func NewGetRunUsecase(injector *do.Injector) (GetRunUsecase, error) {
	return &getRunUsecaseImpl{
		runRepository: do.MustInvoke[repository.RunRepository](injector),
	}, nil
}
