package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsManager struct {
	secretsmanageriface.SecretsManagerAPI
	values map[string]string
}

func (f *fakeSecretsManager) GetSecretValueWithContext(_ aws.Context, in *secretsmanager.GetSecretValueInput, _ ...request.Option) (*secretsmanager.GetSecretValueOutput, error) {
	v, ok := f.values[aws.StringValue(in.SecretId)]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestValue(t *testing.T) {
	r := NewResolver(&fakeSecretsManager{values: map[string]string{
		"/github.com/sekibomazic": `{"token":"ghp_abc","other":1}`,
		"plain":                   "s3cr3t",
	}})
	ctx := context.Background()

	got, err := r.Value(ctx, "/github.com/sekibomazic", "token")
	require.NoError(t, err)
	assert.Equal(t, "ghp_abc", got)

	got, err = r.Value(ctx, "plain", "")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", got)

	_, err = r.Value(ctx, "/github.com/sekibomazic", "missing")
	assert.ErrorIs(t, err, ErrFieldNotFound)

	_, err = r.Value(ctx, "/github.com/sekibomazic", "other")
	assert.ErrorIs(t, err, ErrFieldNotFound)

	_, err = r.Value(ctx, "plain", "token")
	assert.Error(t, err)

	_, err = r.Value(ctx, "absent", "")
	assert.Error(t, err)
}
