// Package builder implements the image build stage: log in to every target
// registry, build the source tree once, tag it and push it everywhere.
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/moby/go-archive"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/yz4230/rolling/internal/entity"
	imgutil "github.com/yz4230/rolling/internal/image"
	"github.com/yz4230/rolling/internal/registry"
)

var ErrNoDockerfile = errors.New("dockerfile not found in source")

// Target is a registry repository the image is pushed to.
type Target struct {
	Repository  string // reference without tag
	Credentials registry.Provider
}

type Builder struct {
	Docker DockerAPI
	// Targets lists the primary registry first. The primary reference is the
	// one handed to the deploy stage.
	Targets    []Target
	APIName    string
	Dockerfile string
	BuildArgs  map[string]string
	// Commands run in the source tree before the image build.
	Commands []string
	// WriteDefinitions exports imagedefinitions.json into the output dir.
	WriteDefinitions bool
	// Verify, when set, reads back the digest the primary registry serves.
	Verify func(ctx context.Context, ref string, creds registry.Credentials) (string, error)
}

type login struct {
	target Target
	creds  registry.Credentials
	auth   string
}

// Build turns a source artifact into pushed images. outDir receives build
// outputs.
func (b *Builder) Build(ctx context.Context, src *entity.SourceArtifact, outDir string) (*entity.BuildArtifact, error) {
	log := zerolog.Ctx(ctx)
	if len(b.Targets) == 0 {
		return nil, errors.New("no registry targets configured")
	}

	ping, err := b.Docker.Ping(ctx)
	if err != nil {
		return nil, fmt.Errorf("container runtime unavailable: %w", err)
	}
	log.Info().Str("api_version", ping.APIVersion).Str("os", ping.OSType).Msg("container runtime ready")

	logins, err := b.login(ctx)
	if err != nil {
		return nil, err
	}

	tag := imgutil.DeriveTag(src.Commit)
	log.Info().Str("commit", src.Commit).Str("tag", tag).Msg("derived image tag")

	if err := b.runCommands(ctx, src.Dir); err != nil {
		return nil, err
	}

	primary := b.Targets[0].Repository
	latest := imgutil.WithTag(primary, imgutil.LatestTag)
	if err := b.build(ctx, src, latest); err != nil {
		return nil, err
	}

	var pushed []string
	for _, l := range logins {
		refs := lo.Uniq([]string{
			imgutil.WithTag(l.target.Repository, imgutil.LatestTag),
			imgutil.WithTag(l.target.Repository, tag),
		})
		for _, ref := range refs {
			if ref != latest {
				if err := b.Docker.ImageTag(ctx, latest, ref); err != nil {
					return nil, fmt.Errorf("tag %s: %w", ref, err)
				}
			}
		}
		for _, ref := range refs {
			if err := b.push(ctx, ref, l.auth); err != nil {
				return nil, err
			}
			pushed = append(pushed, ref)
		}
	}

	uri := imgutil.WithTag(primary, tag)
	art := &entity.BuildArtifact{
		Tag:              tag,
		ImageURI:         uri,
		Images:           pushed,
		ImageDefinitions: imgutil.Definitions(b.APIName, uri),
	}
	if b.Verify != nil {
		digest, err := b.Verify(ctx, uri, logins[0].creds)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", uri, err)
		}
		art.Digest = digest
		log.Info().Str("image", uri).Str("digest", digest).Msg("registry serves pushed image")
	}
	if b.WriteDefinitions {
		path, err := imgutil.WriteDefinitions(outDir, art.ImageDefinitions)
		if err != nil {
			return nil, err
		}
		art.DefinitionsPath = path
	}
	log.Info().Str("image", uri).Strs("pushed", pushed).Msg("build complete")
	return art, nil
}

func (b *Builder) login(ctx context.Context) ([]login, error) {
	log := zerolog.Ctx(ctx)
	logins := make([]login, 0, len(b.Targets))
	for _, t := range b.Targets {
		creds, err := t.Credentials.Credentials(ctx)
		if err != nil {
			return nil, fmt.Errorf("credentials for %s: %w", t.Repository, err)
		}
		if _, err := b.Docker.RegistryLogin(ctx, creds.AuthConfig()); err != nil {
			return nil, fmt.Errorf("login to %s: %w", creds.ServerAddress, err)
		}
		auth, err := creds.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode credentials for %s: %w", creds.ServerAddress, err)
		}
		log.Info().Str("registry", creds.ServerAddress).Str("via", creds.Provenance).Msg("logged in")
		logins = append(logins, login{target: t, creds: creds, auth: auth})
	}
	return logins, nil
}

func (b *Builder) runCommands(ctx context.Context, dir string) error {
	log := zerolog.Ctx(ctx)
	for _, c := range b.Commands {
		log.Info().Str("command", c).Msg("running pre-build command")
		cmd := exec.CommandContext(ctx, "sh", "-c", c)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("pre-build command %q: %w: %s", c, err, out)
		}
		log.Debug().Str("command", c).Msg(string(out))
	}
	return nil
}

func (b *Builder) dockerfile() string {
	if b.Dockerfile == "" {
		return "Dockerfile"
	}
	return b.Dockerfile
}

func (b *Builder) build(ctx context.Context, src *entity.SourceArtifact, ref string) error {
	log := zerolog.Ctx(ctx)
	if _, err := os.Stat(filepath.Join(src.Dir, b.dockerfile())); err != nil {
		return fmt.Errorf("%w: %s", ErrNoDockerfile, b.dockerfile())
	}

	buildContext, err := archive.TarWithOptions(src.Dir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("failed to create tar archive: %w", err)
	}
	defer buildContext.Close()

	args := make(map[string]*string, len(b.BuildArgs))
	for k, v := range b.BuildArgs {
		args[k] = lo.ToPtr(v)
	}
	resp, err := b.Docker.ImageBuild(ctx, buildContext, build.ImageBuildOptions{
		Tags:       []string{ref},
		Dockerfile: b.dockerfile(),
		BuildArgs:  args,
		Labels: map[string]string{
			"rolling.api":    b.APIName,
			"rolling.commit": src.Commit,
		},
		Remove: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	imageID, err := readStream(ctx, resp.Body)
	if err != nil {
		return fmt.Errorf("build %s: %w", ref, err)
	}
	log.Info().Str("image", ref).Str("id", imageID).Msg("built image")
	return nil
}

func (b *Builder) push(ctx context.Context, ref, auth string) error {
	log := zerolog.Ctx(ctx)
	log.Info().Str("image", ref).Msg("pushing image")
	rc, err := b.Docker.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: auth})
	if err != nil {
		return fmt.Errorf("push %s: %w", ref, err)
	}
	defer rc.Close()
	if _, err := readStream(ctx, rc); err != nil {
		return fmt.Errorf("push %s: %w", ref, err)
	}
	log.Info().Str("image", ref).Msg("pushed image")
	return nil
}
