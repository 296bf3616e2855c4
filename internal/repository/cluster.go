package repository

import (
	"context"
	"errors"

	"github.com/yz4230/rolling/internal/entity"
	"gorm.io/gorm"
)

type ClusterRepository interface {
	// Save inserts the cluster or updates the record with the same name.
	Save(ctx context.Context, cluster *entity.ClusterRef) (*entity.ClusterRef, error)
	GetByName(ctx context.Context, name string) (*entity.ClusterRef, error)
	List(ctx context.Context) ([]*entity.ClusterRef, error)
}

type clusterRepositoryImpl struct {
	db *gorm.DB
}

func NewClusterRepository(db *gorm.DB) ClusterRepository {
	return &clusterRepositoryImpl{db: db}
}

func (r *clusterRepositoryImpl) Save(ctx context.Context, cluster *entity.ClusterRef) (*entity.ClusterRef, error) {
	var model Cluster
	model.FromEntity(cluster)
	existing, err := gorm.G[Cluster](r.db).Where("name = ?", cluster.Name).First(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		model.ID = 0
		if err := gorm.G[Cluster](r.db).Create(ctx, &model); err != nil {
			return nil, translate(err)
		}
		return model.ToEntity(), nil
	case err != nil:
		return nil, err
	}
	model.ID = existing.ID
	if _, err := gorm.G[Cluster](r.db).Where("id = ?", existing.ID).Updates(ctx, model); err != nil {
		return nil, translate(err)
	}
	return r.GetByName(ctx, cluster.Name)
}

func (r *clusterRepositoryImpl) GetByName(ctx context.Context, name string) (*entity.ClusterRef, error) {
	found, err := gorm.G[Cluster](r.db).Where("name = ?", name).First(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return found.ToEntity(), nil
}

func (r *clusterRepositoryImpl) List(ctx context.Context) ([]*entity.ClusterRef, error) {
	founds, err := gorm.G[Cluster](r.db).Order("name").Find(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]*entity.ClusterRef, len(founds))
	for i, f := range founds {
		res[i] = f.ToEntity()
	}
	return res, nil
}
