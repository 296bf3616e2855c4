package repository

import (
	"context"

	"github.com/yz4230/rolling/internal/entity"
	"gorm.io/gorm"
)

type StageRepository interface {
	Create(ctx context.Context, stage *entity.StageExecution) (*entity.StageExecution, error)
	Update(ctx context.Context, stage *entity.StageExecution) (*entity.StageExecution, error)
	ListByRun(ctx context.Context, runID entity.ID) ([]*entity.StageExecution, error)
}

type stageRepositoryImpl struct {
	db *gorm.DB
}

func NewStageRepository(db *gorm.DB) StageRepository {
	return &stageRepositoryImpl{db: db}
}

// Create a stage execution record.
func (r *stageRepositoryImpl) Create(ctx context.Context, stage *entity.StageExecution) (*entity.StageExecution, error) {
	var model StageExecution
	model.FromEntity(stage)
	if err := gorm.G[StageExecution](r.db).Create(ctx, &model); err != nil {
		return nil, translate(err)
	}
	return model.ToEntity(), nil
}

// Update status, error and finish time.
func (r *stageRepositoryImpl) Update(ctx context.Context, stage *entity.StageExecution) (*entity.StageExecution, error) {
	var model StageExecution
	model.FromEntity(stage)
	if _, err := gorm.G[StageExecution](r.db).Where("id = ?", stage.ID.Uint()).Updates(ctx, model); err != nil {
		return nil, translate(err)
	}
	found, err := gorm.G[StageExecution](r.db).Where("id = ?", stage.ID.Uint()).First(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return found.ToEntity(), nil
}

// ListByRun returns the stages of a run in execution order.
func (r *stageRepositoryImpl) ListByRun(ctx context.Context, runID entity.ID) ([]*entity.StageExecution, error) {
	founds, err := gorm.G[StageExecution](r.db).Where("run_id = ?", runID.Uint()).Order("position").Find(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]*entity.StageExecution, len(founds))
	for i, f := range founds {
		res[i] = f.ToEntity()
	}
	return res, nil
}
