package kube

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/eks"
	"github.com/aws/aws-sdk-go/service/eks/eksiface"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	tokenPrefix     = "k8s-aws-v1."
	clusterIDHeader = "x-k8s-aws-id"
	tokenExpiry     = 60 * time.Second
)

// Token builds an EKS bearer token: a presigned sts:GetCallerIdentity URL
// bound to the cluster name.
func Token(svc stsiface.STSAPI, clusterName string) (string, error) {
	req, _ := svc.GetCallerIdentityRequest(&sts.GetCallerIdentityInput{})
	req.HTTPRequest.Header.Add(clusterIDHeader, clusterName)
	url, err := req.Presign(tokenExpiry)
	if err != nil {
		return "", fmt.Errorf("presign caller identity: %w", err)
	}
	return tokenPrefix + base64.RawURLEncoding.EncodeToString([]byte(url)), nil
}

// EKSConfig describes the cluster and returns a rest config authenticated as
// the caller of stsSvc.
func EKSConfig(ctx context.Context, eksSvc eksiface.EKSAPI, stsSvc stsiface.STSAPI, clusterName string) (*rest.Config, error) {
	out, err := eksSvc.DescribeClusterWithContext(ctx, &eks.DescribeClusterInput{Name: aws.String(clusterName)})
	if err != nil {
		return nil, fmt.Errorf("describe cluster %s: %w", clusterName, err)
	}
	cluster := out.Cluster
	if cluster == nil || aws.StringValue(cluster.Endpoint) == "" {
		return nil, fmt.Errorf("cluster %s has no endpoint yet", clusterName)
	}
	var caData []byte
	if cluster.CertificateAuthority != nil {
		caData, err = base64.StdEncoding.DecodeString(aws.StringValue(cluster.CertificateAuthority.Data))
		if err != nil {
			return nil, fmt.Errorf("decode cluster certificate: %w", err)
		}
	}
	token, err := Token(stsSvc, clusterName)
	if err != nil {
		return nil, err
	}
	return &rest.Config{
		Host:            aws.StringValue(cluster.Endpoint),
		BearerToken:     token,
		TLSClientConfig: rest.TLSClientConfig{CAData: caData},
	}, nil
}

// KubeconfigConfig loads a rest config from a kubeconfig file.
func KubeconfigConfig(path string) (*rest.Config, error) {
	config, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return nil, fmt.Errorf("cannot create k8s config: %w", err)
	}
	return config, nil
}
