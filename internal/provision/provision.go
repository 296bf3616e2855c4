// Package provision creates the long-lived target environment: IAM roles,
// the EKS cluster and its node group, the aws-auth mapping and the ECR
// repository. Every step checks for existing resources first, so running it
// again converges instead of failing.
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ecr"
	"github.com/aws/aws-sdk-go/service/ecr/ecriface"
	"github.com/aws/aws-sdk-go/service/eks"
	"github.com/aws/aws-sdk-go/service/eks/eksiface"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	"github.com/rs/zerolog"
	"github.com/yz4230/rolling/internal/entity"
)

const tagKey = "rolling.cluster"

// RoleMapper grants IAM roles cluster-admin inside the cluster.
type RoleMapper interface {
	AddMasters(ctx context.Context, roleARNs ...string) error
}

// Connector opens a RoleMapper on a freshly created cluster.
type Connector func(ctx context.Context, clusterName string) (RoleMapper, error)

type Options struct {
	AccountID          string
	Region             string
	ClusterName        string
	Version            string
	NodeCount          int64
	InstanceType       string
	SubnetIDs          []string
	AdminRoleName      string
	DeploymentRoleName string
	ClusterRoleName    string
	NodeRoleName       string
	NodegroupName      string
	Repository         string
}

type Provisioner struct {
	IAM     iamiface.IAMAPI
	EKS     eksiface.EKSAPI
	ECR     ecriface.ECRAPI
	Connect Connector
	Options Options
	// WaitDelay between readiness polls; zero keeps the SDK default.
	WaitDelay time.Duration
}

func (p *Provisioner) Provision(ctx context.Context) (*entity.ClusterRef, error) {
	log := zerolog.Ctx(ctx).With().Str("cluster", p.Options.ClusterName).Logger()
	ctx = log.WithContext(ctx)
	o := p.Options
	if o.ClusterName == "" || o.AccountID == "" {
		return nil, fmt.Errorf("%w: cluster name and account are required", entity.ErrInvalid)
	}
	if p.Connect == nil {
		return nil, errors.New("no cluster connector configured")
	}

	adminARN, err := p.ensureRole(ctx, roleSpec{name: o.AdminRoleName, trust: trustAccount(o.AccountID)})
	if err != nil {
		return nil, err
	}
	clusterRoleARN, err := p.ensureRole(ctx, roleSpec{
		name:            o.ClusterRoleName,
		trust:           trustService("eks.amazonaws.com"),
		managedPolicies: []string{"AmazonEKSClusterPolicy"},
	})
	if err != nil {
		return nil, err
	}
	nodeRoleARN, err := p.ensureRole(ctx, roleSpec{
		name:  o.NodeRoleName,
		trust: trustService("ec2.amazonaws.com"),
		managedPolicies: []string{
			"AmazonEKSWorkerNodePolicy",
			"AmazonEKS_CNI_Policy",
			"AmazonEC2ContainerRegistryReadOnly",
		},
	})
	if err != nil {
		return nil, err
	}

	cluster, err := p.ensureCluster(ctx, clusterRoleARN)
	if err != nil {
		return nil, err
	}
	if err := p.ensureNodegroup(ctx, nodeRoleARN); err != nil {
		return nil, err
	}

	deploymentARN, err := p.ensureRole(ctx, roleSpec{
		name:   o.DeploymentRoleName,
		trust:  trustAccount(o.AccountID),
		inline: map[string]string{"describe-cluster": describeClusterPolicy()},
	})
	if err != nil {
		return nil, err
	}

	mapper, err := p.Connect(ctx, o.ClusterName)
	if err != nil {
		return nil, fmt.Errorf("connect to cluster: %w", err)
	}
	if err := mapper.AddMasters(ctx, adminARN, deploymentARN); err != nil {
		return nil, err
	}

	repoURI, err := p.ensureRepository(ctx)
	if err != nil {
		return nil, err
	}

	ref := &entity.ClusterRef{
		Name:              o.ClusterName,
		Region:            o.Region,
		Version:           aws.StringValue(cluster.Version),
		Endpoint:          aws.StringValue(cluster.Endpoint),
		AdminRoleARN:      adminARN,
		DeploymentRoleARN: deploymentARN,
		RepositoryURI:     repoURI,
	}
	log.Info().Str("endpoint", ref.Endpoint).Str("deployment_role", deploymentARN).Msg("cluster provisioned")
	return ref, nil
}

func (p *Provisioner) waiterOptions() []request.WaiterOption {
	if p.WaitDelay <= 0 {
		return nil
	}
	return []request.WaiterOption{request.WithWaiterDelay(request.ConstantWaiterDelay(p.WaitDelay))}
}

func (p *Provisioner) ensureCluster(ctx context.Context, roleARN string) (*eks.Cluster, error) {
	log := zerolog.Ctx(ctx)
	o := p.Options
	input := &eks.DescribeClusterInput{Name: aws.String(o.ClusterName)}
	out, err := p.EKS.DescribeClusterWithContext(ctx, input)
	switch {
	case isCode(err, eks.ErrCodeResourceNotFoundException):
		log.Info().Str("version", o.Version).Msg("creating cluster")
		if _, err := p.EKS.CreateClusterWithContext(ctx, &eks.CreateClusterInput{
			Name:    aws.String(o.ClusterName),
			Version: aws.String(o.Version),
			RoleArn: aws.String(roleARN),
			ResourcesVpcConfig: &eks.VpcConfigRequest{
				SubnetIds:            aws.StringSlice(o.SubnetIDs),
				EndpointPublicAccess: aws.Bool(true),
			},
			Tags: map[string]*string{tagKey: aws.String(o.ClusterName)},
		}); err != nil {
			return nil, fmt.Errorf("create cluster: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("describe cluster: %w", err)
	default:
		if status := aws.StringValue(out.Cluster.Status); status == eks.ClusterStatusActive {
			return out.Cluster, nil
		}
	}

	log.Info().Msg("waiting for cluster to become active")
	if err := p.EKS.WaitUntilClusterActiveWithContext(ctx, input, p.waiterOptions()...); err != nil {
		return nil, fmt.Errorf("wait for cluster: %w", err)
	}
	out, err = p.EKS.DescribeClusterWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("describe cluster: %w", err)
	}
	return out.Cluster, nil
}

func (p *Provisioner) ensureNodegroup(ctx context.Context, nodeRoleARN string) error {
	log := zerolog.Ctx(ctx)
	o := p.Options
	input := &eks.DescribeNodegroupInput{
		ClusterName:   aws.String(o.ClusterName),
		NodegroupName: aws.String(o.NodegroupName),
	}
	out, err := p.EKS.DescribeNodegroupWithContext(ctx, input)
	switch {
	case isCode(err, eks.ErrCodeResourceNotFoundException):
		log.Info().Int64("nodes", o.NodeCount).Str("instance_type", o.InstanceType).Msg("creating node group")
		if _, err := p.EKS.CreateNodegroupWithContext(ctx, &eks.CreateNodegroupInput{
			ClusterName:   aws.String(o.ClusterName),
			NodegroupName: aws.String(o.NodegroupName),
			NodeRole:      aws.String(nodeRoleARN),
			Subnets:       aws.StringSlice(o.SubnetIDs),
			InstanceTypes: aws.StringSlice([]string{o.InstanceType}),
			ScalingConfig: &eks.NodegroupScalingConfig{
				DesiredSize: aws.Int64(o.NodeCount),
				MinSize:     aws.Int64(o.NodeCount),
				MaxSize:     aws.Int64(o.NodeCount),
			},
			Tags: map[string]*string{tagKey: aws.String(o.ClusterName)},
		}); err != nil {
			return fmt.Errorf("create node group: %w", err)
		}
	case err != nil:
		return fmt.Errorf("describe node group: %w", err)
	default:
		if aws.StringValue(out.Nodegroup.Status) == eks.NodegroupStatusActive {
			return nil
		}
	}

	log.Info().Msg("waiting for node group to become active")
	if err := p.EKS.WaitUntilNodegroupActiveWithContext(ctx, input, p.waiterOptions()...); err != nil {
		return fmt.Errorf("wait for node group: %w", err)
	}
	return nil
}

func (p *Provisioner) ensureRepository(ctx context.Context) (string, error) {
	log := zerolog.Ctx(ctx)
	name := p.Options.Repository
	out, err := p.ECR.DescribeRepositoriesWithContext(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: aws.StringSlice([]string{name}),
	})
	switch {
	case isCode(err, ecr.ErrCodeRepositoryNotFoundException):
		created, err := p.ECR.CreateRepositoryWithContext(ctx, &ecr.CreateRepositoryInput{
			RepositoryName:             aws.String(name),
			ImageScanningConfiguration: &ecr.ImageScanningConfiguration{ScanOnPush: aws.Bool(true)},
		})
		if err != nil {
			return "", fmt.Errorf("create repository %s: %w", name, err)
		}
		uri := aws.StringValue(created.Repository.RepositoryUri)
		log.Info().Str("repository", uri).Msg("repository created")
		return uri, nil
	case err != nil:
		return "", fmt.Errorf("describe repository %s: %w", name, err)
	}
	if len(out.Repositories) == 0 {
		return "", fmt.Errorf("repository %s: %w", name, entity.ErrNotFound)
	}
	return aws.StringValue(out.Repositories[0].RepositoryUri), nil
}
