package kube

import (
	"context"

	"github.com/aws/aws-sdk-go/service/eks/eksiface"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	"k8s.io/client-go/rest"
)

// Connector opens clients on demand, so every connection gets a fresh token.
// A kubeconfig path takes precedence over EKS discovery.
type Connector struct {
	Kubeconfig  string
	ClusterName string
	EKS         eksiface.EKSAPI
	STS         stsiface.STSAPI
}

func (c *Connector) Config(ctx context.Context, clusterName string) (*rest.Config, error) {
	if c.Kubeconfig != "" {
		return KubeconfigConfig(c.Kubeconfig)
	}
	return EKSConfig(ctx, c.EKS, c.STS, clusterName)
}

// Connect opens a client on the configured cluster.
func (c *Connector) Connect(ctx context.Context) (*Client, error) {
	return c.ConnectTo(ctx, c.ClusterName)
}

func (c *Connector) ConnectTo(ctx context.Context, clusterName string) (*Client, error) {
	config, err := c.Config(ctx, clusterName)
	if err != nil {
		return nil, err
	}
	return NewClient(config)
}
