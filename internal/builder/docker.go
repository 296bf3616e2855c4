package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/rs/zerolog"
)

// DockerAPI is the part of the engine client the build stage talks to.
type DockerAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	RegistryLogin(ctx context.Context, auth registry.AuthConfig) (registry.AuthenticateOKBody, error)
	ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error)
	ImageTag(ctx context.Context, source, target string) error
	ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error)
	Close() error
}

var _ DockerAPI = (*client.Client)(nil)

// NewDockerClient connects to the engine configured by the environment.
func NewDockerClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return cli, nil
}

// readStream drains an engine progress stream, logging build output, and
// returns the built image ID when the stream carries one.
func readStream(ctx context.Context, r io.Reader) (string, error) {
	log := zerolog.Ctx(ctx)
	imageID := ""
	dec := json.NewDecoder(r)
	for {
		var jm jsonmessage.JSONMessage
		if err := dec.Decode(&jm); err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("failed to decode json message: %w", err)
		}
		if jm.Error != nil {
			return "", jm.Error
		}
		if stream := strings.TrimSpace(jm.Stream); stream != "" {
			log.Info().Msg(stream)
		}
		if jm.Status != "" && jm.Progress == nil {
			log.Debug().Str("id", jm.ID).Msg(jm.Status)
		}
		if jm.Aux != nil {
			var result build.Result
			if err := json.Unmarshal(*jm.Aux, &result); err == nil && result.ID != "" {
				imageID = result.ID
			}
		}
	}
	return imageID, nil
}
