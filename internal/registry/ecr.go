package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ecr"
	"github.com/aws/aws-sdk-go/service/ecr/ecriface"
	"github.com/rs/zerolog"
)

// ECR exchanges the caller's AWS identity for a registry token.
type ECR struct {
	Svc       ecriface.ECRAPI
	AccountID string
}

func (e ECR) Credentials(ctx context.Context) (Credentials, error) {
	log := zerolog.Ctx(ctx)
	out, err := e.Svc.GetAuthorizationTokenWithContext(ctx, &ecr.GetAuthorizationTokenInput{
		RegistryIds: aws.StringSlice([]string{e.AccountID}),
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("get ecr authorization token: %w", err)
	}
	if len(out.AuthorizationData) == 0 {
		return Credentials{}, fmt.Errorf("ecr returned no authorization data for account %s", e.AccountID)
	}
	data := out.AuthorizationData[0]
	user, pass, err := parseAuth(aws.StringValue(data.AuthorizationToken))
	if err != nil {
		return Credentials{}, fmt.Errorf("parse ecr token: %w", err)
	}
	host := strings.TrimPrefix(aws.StringValue(data.ProxyEndpoint), "https://")
	log.Debug().Str("registry", host).Time("expires", aws.TimeValue(data.ExpiresAt)).Msg("obtained ecr token")
	return Credentials{
		ServerAddress: host,
		Username:      user,
		Password:      pass,
		Provenance:    "AWS API",
	}, nil
}
