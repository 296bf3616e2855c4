package usecase

import (
	"context"

	"github.com/samber/do"
	"github.com/yz4230/rolling/internal/config"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/kube"
	"github.com/yz4230/rolling/internal/repository"
	"golang.org/x/sync/errgroup"
)

// DeploymentReader reads the live state of a deployment.
type DeploymentReader interface {
	Deployment(ctx context.Context, namespace, name string) (*kube.DeploymentStatus, error)
}

type PipelineStatus struct {
	LastRun    *entity.Run            `json:"last_run,omitempty"`
	Deployment *kube.DeploymentStatus `json:"deployment,omitempty"`
	// InSync reports whether the cluster runs the image of the last
	// successful run.
	InSync bool `json:"in_sync"`
}

// PipelineStatusUsecase compares the recorded history with the cluster.
type PipelineStatusUsecase interface {
	Execute(ctx context.Context) (*PipelineStatus, error)
}

type pipelineStatusUsecaseImpl struct {
	runRepository repository.RunRepository
	connect       func(ctx context.Context) (DeploymentReader, error)
	namespace     string
	apiName       string
}

// Execute implements PipelineStatusUsecase. History and cluster are queried
// concurrently.
func (p *pipelineStatusUsecaseImpl) Execute(ctx context.Context) (*PipelineStatus, error) {
	status := &PipelineStatus{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		runs, err := p.runRepository.List(gctx, 20)
		if err != nil {
			return err
		}
		for _, r := range runs {
			if r.Status == entity.RunStatusSuccess {
				status.LastRun = r
				return nil
			}
		}
		return nil
	})
	g.Go(func() error {
		reader, err := p.connect(gctx)
		if err != nil {
			return err
		}
		d, err := reader.Deployment(gctx, p.namespace, p.apiName)
		if err != nil {
			return err
		}
		status.Deployment = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	status.InSync = status.LastRun != nil && status.Deployment != nil &&
		status.LastRun.ImageURI == status.Deployment.Image
	return status, nil
}

func NewPipelineStatusUsecase(injector *do.Injector) (PipelineStatusUsecase, error) {
	cfg := do.MustInvoke[*config.Config](injector)
	connector := do.MustInvoke[*kube.Connector](injector)
	return &pipelineStatusUsecaseImpl{
		runRepository: do.MustInvoke[repository.RunRepository](injector),
		connect: func(ctx context.Context) (DeploymentReader, error) {
			return connector.Connect(ctx)
		},
		namespace: cfg.Deploy.Namespace,
		apiName:   cfg.APIName,
	}, nil
}
