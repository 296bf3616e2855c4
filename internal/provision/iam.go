package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/rs/zerolog"
)

const managedPolicyPrefix = "arn:aws:iam::aws:policy/"

type policyDocument struct {
	Version   string      `json:"Version"`
	Statement []statement `json:"Statement"`
}

type statement struct {
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal,omitempty"`
	Action    any               `json:"Action"`
	Resource  string            `json:"Resource,omitempty"`
}

func trustService(service string) string {
	return mustJSON(policyDocument{
		Version: "2012-10-17",
		Statement: []statement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": service},
			Action:    "sts:AssumeRole",
		}},
	})
}

func trustAccount(accountID string) string {
	return mustJSON(policyDocument{
		Version: "2012-10-17",
		Statement: []statement{{
			Effect:    "Allow",
			Principal: map[string]string{"AWS": fmt.Sprintf("arn:aws:iam::%s:root", accountID)},
			Action:    "sts:AssumeRole",
		}},
	})
}

// describeClusterPolicy lets a deployer fetch cluster endpoint and certificate.
func describeClusterPolicy() string {
	return mustJSON(policyDocument{
		Version: "2012-10-17",
		Statement: []statement{{
			Effect:   "Allow",
			Action:   []string{"eks:DescribeCluster"},
			Resource: "*",
		}},
	})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

type roleSpec struct {
	name            string
	trust           string
	managedPolicies []string
	inline          map[string]string
}

// ensureRole creates the role when absent and attaches its policies; both
// steps are idempotent.
func (p *Provisioner) ensureRole(ctx context.Context, spec roleSpec) (string, error) {
	log := zerolog.Ctx(ctx)
	var arn string
	out, err := p.IAM.GetRoleWithContext(ctx, &iam.GetRoleInput{RoleName: aws.String(spec.name)})
	switch {
	case isCode(err, iam.ErrCodeNoSuchEntityException):
		created, err := p.IAM.CreateRoleWithContext(ctx, &iam.CreateRoleInput{
			RoleName:                 aws.String(spec.name),
			AssumeRolePolicyDocument: aws.String(spec.trust),
			Tags:                     []*iam.Tag{{Key: aws.String(tagKey), Value: aws.String(p.Options.ClusterName)}},
		})
		if err != nil {
			return "", fmt.Errorf("create role %s: %w", spec.name, err)
		}
		arn = aws.StringValue(created.Role.Arn)
		log.Info().Str("role", spec.name).Str("arn", arn).Msg("role created")
	case err != nil:
		return "", fmt.Errorf("get role %s: %w", spec.name, err)
	default:
		arn = aws.StringValue(out.Role.Arn)
		log.Debug().Str("role", spec.name).Msg("role exists")
	}

	for _, policy := range spec.managedPolicies {
		if _, err := p.IAM.AttachRolePolicyWithContext(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(spec.name),
			PolicyArn: aws.String(managedPolicyPrefix + policy),
		}); err != nil {
			return "", fmt.Errorf("attach %s to %s: %w", policy, spec.name, err)
		}
	}
	for name, doc := range spec.inline {
		if _, err := p.IAM.PutRolePolicyWithContext(ctx, &iam.PutRolePolicyInput{
			RoleName:       aws.String(spec.name),
			PolicyName:     aws.String(name),
			PolicyDocument: aws.String(doc),
		}); err != nil {
			return "", fmt.Errorf("put policy %s on %s: %w", name, spec.name, err)
		}
	}
	return arn, nil
}

func isCode(err error, code string) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == code
}
