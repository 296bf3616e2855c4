// Package kube applies manifests to a cluster and maintains the identity
// mapping that grants roles cluster access.
package kube

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const DefaultNamespace = "default"

type Client struct {
	c client.Client
}

// Scheme holds the built-in kinds.
func Scheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		panic(err)
	}
	return scheme
}

func NewClient(config *rest.Config) (*Client, error) {
	c, err := client.New(config, client.Options{Scheme: Scheme()})
	if err != nil {
		return nil, fmt.Errorf("cannot create k8s client: %w", err)
	}
	return &Client{c: c}, nil
}

// NewFromClient wraps an existing controller-runtime client.
func NewFromClient(c client.Client) *Client {
	return &Client{c: c}
}

// Apply creates obj, or updates it in place when it already exists. It
// returns the action taken.
func (c *Client) Apply(ctx context.Context, obj *unstructured.Unstructured, namespace string) (string, error) {
	log := zerolog.Ctx(ctx)
	if obj.GetNamespace() == "" {
		namespaced, err := c.c.IsObjectNamespaced(obj)
		if err != nil || namespaced {
			obj.SetNamespace(namespace)
		}
	}

	existing := &unstructured.Unstructured{}
	existing.SetGroupVersionKind(obj.GroupVersionKind())
	err := c.c.Get(ctx, client.ObjectKeyFromObject(obj), existing)
	action := "configured"
	switch {
	case apierrors.IsNotFound(err):
		if err := c.c.Create(ctx, obj); err != nil {
			return "", fmt.Errorf("create %s/%s: %w", obj.GetKind(), obj.GetName(), err)
		}
		action = "created"
	case err != nil:
		return "", fmt.Errorf("get %s/%s: %w", obj.GetKind(), obj.GetName(), err)
	default:
		obj.SetResourceVersion(existing.GetResourceVersion())
		if obj.GetKind() == "Service" {
			keepClusterIP(obj, existing)
		}
		if err := c.c.Update(ctx, obj); err != nil {
			return "", fmt.Errorf("update %s/%s: %w", obj.GetKind(), obj.GetName(), err)
		}
	}
	log.Info().Str("kind", obj.GetKind()).Str("name", obj.GetName()).Str("namespace", obj.GetNamespace()).Msg(action)
	return action, nil
}

// keepClusterIP carries the allocated cluster IP over, since it is immutable.
func keepClusterIP(obj, existing *unstructured.Unstructured) {
	if _, found, _ := unstructured.NestedString(obj.Object, "spec", "clusterIP"); found {
		return
	}
	if ip, found, _ := unstructured.NestedString(existing.Object, "spec", "clusterIP"); found {
		_ = unstructured.SetNestedField(obj.Object, ip, "spec", "clusterIP")
	}
	if ips, found, _ := unstructured.NestedStringSlice(existing.Object, "spec", "clusterIPs"); found {
		_ = unstructured.SetNestedStringSlice(obj.Object, ips, "spec", "clusterIPs")
	}
}

type DeploymentStatus struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Image     string `json:"image"`
	Replicas  int32  `json:"replicas"`
	Updated   int32  `json:"updated"`
	Ready     int32  `json:"ready"`
}

// Deployment reports the image and rollout progress of a deployment.
func (c *Client) Deployment(ctx context.Context, namespace, name string) (*DeploymentStatus, error) {
	d := &appsv1.Deployment{}
	if err := c.c.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, d); err != nil {
		return nil, fmt.Errorf("get deployment %s/%s: %w", namespace, name, err)
	}
	st := &DeploymentStatus{
		Name:      name,
		Namespace: namespace,
		Replicas:  d.Status.Replicas,
		Updated:   d.Status.UpdatedReplicas,
		Ready:     d.Status.ReadyReplicas,
	}
	if len(d.Spec.Template.Spec.Containers) > 0 {
		st.Image = d.Spec.Template.Spec.Containers[0].Image
	}
	return st, nil
}
