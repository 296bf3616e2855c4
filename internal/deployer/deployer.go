// Package deployer implements the deploy stage: render the manifest
// templates for this run and apply them, deployment first.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yz4230/rolling/internal/artifactstore"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/manifest"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Applier applies one object and reports what happened to it.
type Applier interface {
	Apply(ctx context.Context, obj *unstructured.Unstructured, namespace string) (string, error)
}

// Connector obtains cluster access when the stage starts, so short-lived
// credentials are fresh.
type Connector func(ctx context.Context) (Applier, error)

// Template is a manifest file and the tokens it may legitimately lack.
type Template struct {
	Path     string
	Optional []string
}

type Deployer struct {
	Connect     Connector
	APIName     string
	ClusterName string
	Namespace   string
	// Templates are applied in order.
	Templates []Template
	// Store keeps rendered manifests after the run, when set.
	Store artifactstore.Store
}

// Input is what one deploy needs from the run.
type Input struct {
	RunID     string
	SourceDir string
	OutDir    string
	Build     *entity.BuildArtifact
}

// Templates returns the deployment and service templates; the service
// carries no image.
func Templates(deployment, service string) []Template {
	return []Template{
		{Path: deployment},
		{Path: service, Optional: []string{manifest.TokenImageURI}},
	}
}

func (d *Deployer) Deploy(ctx context.Context, in Input) (*entity.DeployArtifact, error) {
	log := zerolog.Ctx(ctx)
	if in.Build == nil || in.Build.ImageURI == "" {
		return nil, fmt.Errorf("%w: %s", entity.ErrMissingArtifact, entity.ArtifactBuild)
	}
	bindings := manifest.Bindings{
		manifest.TokenAPIName:  d.APIName,
		manifest.TokenImageURI: in.Build.ImageURI,
	}

	rendered := make([]string, 0, len(d.Templates))
	for _, tpl := range d.Templates {
		src := d.resolve(in.SourceDir, tpl.Path)
		dst := filepath.Join(in.OutDir, "manifests", filepath.Base(tpl.Path))
		if err := manifest.RenderFile(src, dst, bindings, tpl.Optional...); err != nil {
			return nil, err
		}
		rendered = append(rendered, dst)
		log.Debug().Str("template", src).Str("rendered", dst).Msg("manifest rendered")
	}

	var objects [][]*unstructured.Unstructured
	for _, path := range rendered {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if left := manifest.Remaining(string(b)); len(left) > 0 {
			return nil, fmt.Errorf("%s: unbound placeholders %s", path, strings.Join(left, ", "))
		}
		objs, err := manifest.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		objects = append(objects, objs)
	}

	if d.Store != nil {
		for _, path := range rendered {
			if _, err := d.Store.Put(ctx, artifactstore.Key(in.RunID, "manifests/"+filepath.Base(path)), path); err != nil {
				return nil, err
			}
		}
	}

	if d.Connect == nil {
		return nil, errors.New("no cluster connector configured")
	}
	cluster, err := d.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to cluster %s: %w", d.ClusterName, err)
	}

	art := &entity.DeployArtifact{
		Cluster:   d.ClusterName,
		Namespace: d.Namespace,
		ImageURI:  in.Build.ImageURI,
		Manifests: rendered,
	}
	for i, objs := range objects {
		for _, obj := range objs {
			action, err := cluster.Apply(ctx, obj, d.Namespace)
			if err != nil {
				return art, fmt.Errorf("apply %s: %w", rendered[i], err)
			}
			art.Applied = append(art.Applied, strings.ToLower(obj.GetKind())+"/"+obj.GetName()+" "+action)
		}
	}
	log.Info().Str("cluster", d.ClusterName).Str("image", in.Build.ImageURI).Strs("applied", art.Applied).Msg("deployed")
	return art, nil
}

// resolve prefers the template shipped in the source tree.
func (d *Deployer) resolve(sourceDir, path string) string {
	if filepath.IsAbs(path) || sourceDir == "" {
		return path
	}
	candidate := filepath.Join(sourceDir, path)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}
