package repository

import (
	"context"

	"github.com/yz4230/rolling/internal/entity"
	"gorm.io/gorm"
)

type RunRepository interface {
	Create(ctx context.Context, run *entity.Run) (*entity.Run, error)
	GetByID(ctx context.Context, id entity.ID) (*entity.Run, error)
	GetByUID(ctx context.Context, uid string) (*entity.Run, error)
	List(ctx context.Context, limit int) ([]*entity.Run, error)
	Update(ctx context.Context, run *entity.Run) (*entity.Run, error)
}

type RunRepositoryImpl struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) RunRepository {
	return &RunRepositoryImpl{db: db}
}

// Create implements RunRepository.
func (r *RunRepositoryImpl) Create(ctx context.Context, run *entity.Run) (*entity.Run, error) {
	var model Run
	model.FromEntity(run)
	if err := gorm.G[Run](r.db).Create(ctx, &model); err != nil {
		return nil, translate(err)
	}
	return model.ToEntity(), nil
}

// GetByID implements RunRepository. The run comes with its stages.
func (r *RunRepositoryImpl) GetByID(ctx context.Context, id entity.ID) (*entity.Run, error) {
	if !id.Valid() {
		return nil, entity.ErrNotFound
	}
	found, err := gorm.G[Run](r.db).Where("id = ?", id.Uint()).First(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return r.withStages(ctx, &found)
}

// GetByUID implements RunRepository.
func (r *RunRepositoryImpl) GetByUID(ctx context.Context, uid string) (*entity.Run, error) {
	found, err := gorm.G[Run](r.db).Where("uid = ?", uid).First(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return r.withStages(ctx, &found)
}

// List implements RunRepository, newest first.
func (r *RunRepositoryImpl) List(ctx context.Context, limit int) ([]*entity.Run, error) {
	q := gorm.G[Run](r.db).Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	founds, err := q.Find(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]*entity.Run, len(founds))
	for i := range founds {
		if result[i], err = r.withStages(ctx, &founds[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Update implements RunRepository.
func (r *RunRepositoryImpl) Update(ctx context.Context, run *entity.Run) (*entity.Run, error) {
	var model Run
	model.FromEntity(run)
	if _, err := gorm.G[Run](r.db).Where("id = ?", run.ID.Uint()).Updates(ctx, model); err != nil {
		return nil, translate(err)
	}
	return r.GetByID(ctx, run.ID)
}

func (r *RunRepositoryImpl) withStages(ctx context.Context, run *Run) (*entity.Run, error) {
	stages, err := gorm.G[StageExecution](r.db).Where("run_id = ?", run.ID).Order("position").Find(ctx)
	if err != nil {
		return nil, err
	}
	e := run.ToEntity()
	for _, s := range stages {
		e.Stages = append(e.Stages, s.ToEntity())
	}
	return e, nil
}
