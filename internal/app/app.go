// Package app assembles the dependency graph shared by the CLI commands and
// the control API.
package app

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ecr"
	"github.com/aws/aws-sdk-go/service/eks"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/rs/zerolog"
	"github.com/samber/do"
	"github.com/yz4230/rolling/internal/artifactstore"
	"github.com/yz4230/rolling/internal/builder"
	"github.com/yz4230/rolling/internal/cloud"
	"github.com/yz4230/rolling/internal/config"
	"github.com/yz4230/rolling/internal/deployer"
	"github.com/yz4230/rolling/internal/kube"
	"github.com/yz4230/rolling/internal/metrics"
	"github.com/yz4230/rolling/internal/pipeline"
	"github.com/yz4230/rolling/internal/provision"
	"github.com/yz4230/rolling/internal/registry"
	"github.com/yz4230/rolling/internal/repository"
	"github.com/yz4230/rolling/internal/secrets"
	"github.com/yz4230/rolling/internal/source"
	"github.com/yz4230/rolling/internal/usecase"
	"gorm.io/gorm"
)

// New returns an injector over cfg. Services are built lazily, so commands
// that never touch AWS or the docker engine do not need them.
func New(cfg *config.Config, logger zerolog.Logger) *do.Injector {
	injector := do.New()
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger)

	provideStorage(injector)
	provideAWS(injector)
	providePipeline(injector)

	do.Provide(injector, usecase.NewRunPipelineUsecase)
	do.Provide(injector, usecase.NewStartPipelineUsecase)
	do.Provide(injector, usecase.NewListRunsUsecase)
	do.Provide(injector, usecase.NewGetRunUsecase)
	do.Provide(injector, usecase.NewPipelineStatusUsecase)
	do.Provide(injector, usecase.NewProvisionClusterUsecase)
	return injector
}

func provideStorage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*gorm.DB, error) {
		return repository.NewSQLiteDB(do.MustInvoke[*config.Config](i).Database)
	})
	do.Provide(injector, func(i *do.Injector) (repository.RunRepository, error) {
		return repository.NewRunRepository(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(injector, func(i *do.Injector) (repository.StageRepository, error) {
		return repository.NewStageRepository(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(injector, func(i *do.Injector) (repository.ClusterRepository, error) {
		return repository.NewClusterRepository(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(injector, func(i *do.Injector) (artifactstore.Store, error) {
		cfg := do.MustInvoke[*config.Config](i)
		a := cfg.ArtifactStore
		if !a.Enabled() {
			return &artifactstore.FS{Root: filepath.Join(cfg.WorkDir, "artifacts")}, nil
		}
		return artifactstore.NewMinio(artifactstore.MinioConfig{
			Endpoint:  a.Endpoint,
			Bucket:    a.Bucket,
			AccessKey: a.AccessKey,
			SecretKey: a.SecretKey,
			Region:    cfg.Region,
			UseSSL:    a.UseSSL,
		})
	})
	do.Provide(injector, func(i *do.Injector) (*metrics.Metrics, error) {
		return metrics.New(), nil
	})
}

func provideAWS(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*session.Session, error) {
		return cloud.NewSession(do.MustInvoke[*config.Config](i).Region)
	})
	do.Provide(injector, func(i *do.Injector) (secrets.Resolver, error) {
		return secrets.NewResolver(secretsmanager.New(do.MustInvoke[*session.Session](i))), nil
	})
	do.Provide(injector, func(i *do.Injector) (*kube.Connector, error) {
		cfg := do.MustInvoke[*config.Config](i)
		sess := do.MustInvoke[*session.Session](i)
		roleARN := cfg.Deploy.RoleARN
		if roleARN == "" && cfg.Deploy.Kubeconfig == "" {
			roleARN = recordedDeploymentRole(i, cfg.Deploy.ClusterName)
		}
		deploySess := cloud.AssumeRole(sess, roleARN, "rolling-deploy")
		return &kube.Connector{
			Kubeconfig:  cfg.Deploy.Kubeconfig,
			ClusterName: cfg.Deploy.ClusterName,
			EKS:         eks.New(deploySess),
			STS:         sts.New(deploySess),
		}, nil
	})
	do.Provide(injector, func(i *do.Injector) (*provision.Provisioner, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if err := cfg.ValidateCluster(); err != nil {
			return nil, err
		}
		sess := do.MustInvoke[*session.Session](i)
		// the creator identity administers a new cluster until aws-auth is set
		admin := &kube.Connector{EKS: eks.New(sess), STS: sts.New(sess)}
		c := cfg.Cluster
		return &provision.Provisioner{
			IAM: iam.New(sess),
			EKS: eks.New(sess),
			ECR: ecr.New(sess),
			Connect: func(ctx context.Context, name string) (provision.RoleMapper, error) {
				return admin.ConnectTo(ctx, name)
			},
			Options: provision.Options{
				AccountID:          cfg.AccountID,
				Region:             cfg.Region,
				ClusterName:        c.Name,
				Version:            c.Version,
				NodeCount:          c.NodeCount,
				InstanceType:       c.InstanceType,
				SubnetIDs:          c.SubnetIDs,
				AdminRoleName:      c.AdminRoleName,
				DeploymentRoleName: c.DeploymentRoleName,
				ClusterRoleName:    c.ClusterRoleName,
				NodeRoleName:       c.NodeRoleName,
				NodegroupName:      c.NodegroupName,
				Repository:         cfg.Registry.Repository,
			},
		}, nil
	})
}

// recordedDeploymentRole returns the role provisioning created, if any.
func recordedDeploymentRole(i *do.Injector, clusterName string) string {
	clusters, err := do.Invoke[repository.ClusterRepository](i)
	if err != nil {
		return ""
	}
	ref, err := clusters.GetByName(context.Background(), clusterName)
	if err != nil {
		return ""
	}
	return ref.DeploymentRoleARN
}

func providePipeline(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (source.Fetcher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewFetcher(cfg, func() secrets.Resolver { return do.MustInvoke[secrets.Resolver](i) }), nil
	})
	do.Provide(injector, func(i *do.Injector) (*builder.Builder, error) {
		cfg := do.MustInvoke[*config.Config](i)
		docker, err := builder.NewDockerClient()
		if err != nil {
			return nil, err
		}
		sess := do.MustInvoke[*session.Session](i)
		targets := []builder.Target{{
			Repository:  cfg.PrimaryImage(),
			Credentials: registry.ECR{Svc: ecr.New(sess), AccountID: cfg.AccountID},
		}}
		if sec := cfg.Registry.Secondary; sec.Image != "" {
			targets = append(targets, builder.Target{
				Repository:  sec.Image,
				Credentials: secondaryCredentials(sec, func() secrets.Resolver { return do.MustInvoke[secrets.Resolver](i) }),
			})
		}
		return &builder.Builder{
			Docker:           docker,
			Targets:          targets,
			APIName:          cfg.APIName,
			Dockerfile:       cfg.Build.Dockerfile,
			BuildArgs:        cfg.Build.BuildArgs,
			Commands:         cfg.Build.Commands,
			WriteDefinitions: cfg.Build.ImageDefinitions,
			Verify:           registry.Digest,
		}, nil
	})
	do.Provide(injector, func(i *do.Injector) (*deployer.Deployer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		connector := do.MustInvoke[*kube.Connector](i)
		return &deployer.Deployer{
			Connect: func(ctx context.Context) (deployer.Applier, error) {
				return connector.Connect(ctx)
			},
			APIName:     cfg.APIName,
			ClusterName: cfg.Deploy.ClusterName,
			Namespace:   cfg.Deploy.Namespace,
			Templates:   deployer.Templates(cfg.Deploy.Manifests.Deployment, cfg.Deploy.Manifests.Service),
			Store:       do.MustInvoke[artifactstore.Store](i),
		}, nil
	})
	do.Provide(injector, func(i *do.Injector) (*pipeline.Runner, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &pipeline.Runner{
			Stages: pipeline.Default(
				do.MustInvoke[source.Fetcher](i),
				do.MustInvoke[*builder.Builder](i),
				do.MustInvoke[*deployer.Deployer](i),
			),
			WorkDir:      cfg.WorkDir,
			Runs:         do.MustInvoke[repository.RunRepository](i),
			StageRecords: do.MustInvoke[repository.StageRepository](i),
			Metrics:      do.MustInvoke[*metrics.Metrics](i),
			Store:        do.MustInvoke[artifactstore.Store](i),
		}, nil
	})
}

// NewFetcher picks the source fetcher: a plain git clone when a git URL is
// configured, the GitHub API otherwise. The secret store is only consulted
// when no token is configured.
func NewFetcher(cfg *config.Config, resolver func() secrets.Resolver) source.Fetcher {
	s := cfg.Source
	if s.GitURL != "" {
		return &source.GitFetcher{URL: s.GitURL, Owner: s.Owner, Repo: s.Repo, Branch: s.Branch}
	}
	token := source.StaticToken(s.Token)
	if s.Token == "" {
		token = func(ctx context.Context) (string, error) {
			if s.TokenSecret == "" {
				return "", errors.New("no github token or token secret configured")
			}
			return resolver().Value(ctx, s.TokenSecret, s.TokenField)
		}
	}
	return &source.GitHubFetcher{Owner: s.Owner, Repo: s.Repo, Branch: s.Branch, Token: token}
}

func secondaryCredentials(sec config.SecondaryRegistry, resolver func() secrets.Resolver) registry.Provider {
	if sec.Username != "" {
		return registry.Static{Creds: registry.Credentials{
			ServerAddress: sec.ServerAddress,
			Username:      sec.Username,
			Password:      sec.Password,
		}}
	}
	return lazySecret{sec: sec, resolver: resolver}
}

// lazySecret defers building the Secrets Manager client to the build stage.
type lazySecret struct {
	sec      config.SecondaryRegistry
	resolver func() secrets.Resolver
}

func (l lazySecret) Credentials(ctx context.Context) (registry.Credentials, error) {
	if l.sec.Secret == "" {
		return registry.Credentials{}, errors.New("secondary registry has neither credentials nor a secret")
	}
	return registry.FromSecret{
		Resolver:      l.resolver(),
		ServerAddress: l.sec.ServerAddress,
		SecretID:      l.sec.Secret,
		UsernameField: l.sec.UsernameField,
		PasswordField: l.sec.PasswordField,
	}.Credentials(ctx)
}
