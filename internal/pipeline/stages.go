package pipeline

import (
	"context"
	"path/filepath"

	"github.com/yz4230/rolling/internal/artifactstore"
	"github.com/yz4230/rolling/internal/builder"
	"github.com/yz4230/rolling/internal/deployer"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/image"
	"github.com/yz4230/rolling/internal/source"
)

const (
	StageSource = "Source"
	StageBuild  = "Build"
	StageDeploy = "Deploy"
)

// Default is the fixed three-stage pipeline.
func Default(f source.Fetcher, b *builder.Builder, d *deployer.Deployer) []Stage {
	return []Stage{SourceStage(f), BuildStage(b), DeployStage(d)}
}

func SourceStage(f source.Fetcher) Stage {
	return Stage{
		Name:    StageSource,
		Outputs: []string{entity.ArtifactSource},
		Action: func(ctx context.Context, env *Env) error {
			art, err := f.Fetch(ctx, filepath.Join(env.Dir, "source"), env.Ref)
			if err != nil {
				return err
			}
			env.Artifacts.Put(entity.ArtifactSource, art)
			return nil
		},
	}
}

func BuildStage(b *builder.Builder) Stage {
	return Stage{
		Name:    StageBuild,
		Inputs:  []string{entity.ArtifactSource},
		Outputs: []string{entity.ArtifactBuild},
		Action: func(ctx context.Context, env *Env) error {
			src, err := Artifact[*entity.SourceArtifact](env.Artifacts, entity.ArtifactSource)
			if err != nil {
				return err
			}
			art, err := b.Build(ctx, src, env.Dir)
			if err != nil {
				return err
			}
			if env.Store != nil && art.DefinitionsPath != "" {
				if _, err := env.Store.Put(ctx, artifactstore.Key(env.RunID, image.DefinitionsFile), art.DefinitionsPath); err != nil {
					return err
				}
			}
			env.Artifacts.Put(entity.ArtifactBuild, art)
			return nil
		},
	}
}

// DeployStage deploys the image the build stage pushed; the tag is never
// derived again here.
func DeployStage(d *deployer.Deployer) Stage {
	return Stage{
		Name:    StageDeploy,
		Inputs:  []string{entity.ArtifactSource, entity.ArtifactBuild},
		Outputs: []string{entity.ArtifactDeploy},
		Action: func(ctx context.Context, env *Env) error {
			src, err := Artifact[*entity.SourceArtifact](env.Artifacts, entity.ArtifactSource)
			if err != nil {
				return err
			}
			build, err := Artifact[*entity.BuildArtifact](env.Artifacts, entity.ArtifactBuild)
			if err != nil {
				return err
			}
			art, err := d.Deploy(ctx, deployer.Input{
				RunID:     env.RunID,
				SourceDir: src.Dir,
				OutDir:    env.Dir,
				Build:     build,
			})
			if err != nil {
				return err
			}
			env.Artifacts.Put(entity.ArtifactDeploy, art)
			return nil
		},
	}
}
