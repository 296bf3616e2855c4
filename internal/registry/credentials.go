package registry

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/registry"
	"github.com/yz4230/rolling/internal/secrets"
)

// Credentials authenticate against one registry host.
type Credentials struct {
	ServerAddress string
	Username      string
	Password      string
	// Provenance says where the credentials came from, for logging.
	Provenance string
}

// AuthConfig converts to the docker engine representation.
func (c Credentials) AuthConfig() registry.AuthConfig {
	return registry.AuthConfig{
		Username:      c.Username,
		Password:      c.Password,
		ServerAddress: c.ServerAddress,
	}
}

// Encode returns the X-Registry-Auth header value the engine expects on push.
func (c Credentials) Encode() (string, error) {
	return registry.EncodeAuthConfig(c.AuthConfig())
}

// Provider yields credentials for a registry, fetched at the start of a run.
type Provider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// Static credentials, as configured.
type Static struct {
	Creds Credentials
}

func (s Static) Credentials(context.Context) (Credentials, error) {
	c := s.Creds
	if c.Provenance == "" {
		c.Provenance = "config"
	}
	return c, nil
}

// FromSecret reads username and password fields from a Secrets Manager secret.
type FromSecret struct {
	Resolver      secrets.Resolver
	ServerAddress string
	SecretID      string
	UsernameField string
	PasswordField string
}

func (s FromSecret) Credentials(ctx context.Context) (Credentials, error) {
	user, err := s.Resolver.Value(ctx, s.SecretID, s.UsernameField)
	if err != nil {
		return Credentials{}, fmt.Errorf("registry username: %w", err)
	}
	pass, err := s.Resolver.Value(ctx, s.SecretID, s.PasswordField)
	if err != nil {
		return Credentials{}, fmt.Errorf("registry password: %w", err)
	}
	return Credentials{
		ServerAddress: s.ServerAddress,
		Username:      user,
		Password:      pass,
		Provenance:    "secret " + s.SecretID,
	}, nil
}

func parseAuth(auth string) (string, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(auth)
	if err != nil {
		return "", "", err
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("decoded credential has wrong number of fields (expected 2, got %d)", len(parts))
	}
	return parts[0], parts[1], nil
}
