// Package secrets resolves credentials kept in AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/rs/zerolog"
)

var ErrFieldNotFound = errors.New("secret field not found")

type Resolver interface {
	// Value returns the secret string, or one field of it when field is set and
	// the secret holds a JSON object.
	Value(ctx context.Context, secretID, field string) (string, error)
}

type ResolverImpl struct {
	svc secretsmanageriface.SecretsManagerAPI
}

func NewResolver(svc secretsmanageriface.SecretsManagerAPI) Resolver {
	return &ResolverImpl{svc: svc}
}

// Value implements Resolver.
func (r *ResolverImpl) Value(ctx context.Context, secretID, field string) (string, error) {
	log := zerolog.Ctx(ctx)
	out, err := r.svc.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", secretID, err)
	}
	raw := aws.StringValue(out.SecretString)
	log.Debug().Str("secret", secretID).Str("field", field).Msg("resolved secret")
	if field == "" {
		return raw, nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return "", fmt.Errorf("secret %s is not a JSON object: %w", secretID, err)
	}
	v, ok := fields[field]
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrFieldNotFound, field, secretID)
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %s in %s is empty or not a string", ErrFieldNotFound, field, secretID)
	}
	return s, nil
}
