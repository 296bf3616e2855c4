package usecase

import (
	"context"
	"fmt"

	"github.com/samber/do"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/provision"
	"github.com/yz4230/rolling/internal/repository"
)

// ProvisionClusterUsecase creates or converges the target environment and
// remembers it, including the deployment role later deploys assume.
type ProvisionClusterUsecase interface {
	Execute(ctx context.Context) (*entity.ClusterRef, error)
}

type provisionClusterUsecaseImpl struct {
	provisioner       *provision.Provisioner
	clusterRepository repository.ClusterRepository
}

// Execute implements ProvisionClusterUsecase.
func (p *provisionClusterUsecaseImpl) Execute(ctx context.Context) (*entity.ClusterRef, error) {
	ref, err := p.provisioner.Provision(ctx)
	if err != nil {
		return nil, err
	}
	saved, err := p.clusterRepository.Save(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("record cluster: %w", err)
	}
	return saved, nil
}

func NewProvisionClusterUsecase(injector *do.Injector) (ProvisionClusterUsecase, error) {
	provisioner, err := do.Invoke[*provision.Provisioner](injector)
	if err != nil {
		return nil, err
	}
	return &provisionClusterUsecaseImpl{
		provisioner:       provisioner,
		clusterRepository: do.MustInvoke[repository.ClusterRepository](injector),
	}, nil
}
