package kube

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/yaml"
)

const (
	awsAuthNamespace = "kube-system"
	awsAuthName      = "aws-auth"
	mapRolesKey      = "mapRoles"
	MastersGroup     = "system:masters"
)

// MapRole is one entry of the aws-auth mapRoles list.
type MapRole struct {
	RoleARN  string   `json:"rolearn"`
	Username string   `json:"username"`
	Groups   []string `json:"groups"`
}

// MapRoles merges roles into kube-system/aws-auth, replacing entries with the
// same role ARN and keeping the rest (node roles in particular).
func (c *Client) MapRoles(ctx context.Context, roles ...MapRole) error {
	log := zerolog.Ctx(ctx)
	cm := &corev1.ConfigMap{}
	key := types.NamespacedName{Namespace: awsAuthNamespace, Name: awsAuthName}
	err := c.c.Get(ctx, key, cm)
	create := apierrors.IsNotFound(err)
	if err != nil && !create {
		return fmt.Errorf("get aws-auth: %w", err)
	}

	var current []MapRole
	if raw := cm.Data[mapRolesKey]; raw != "" {
		if err := yaml.Unmarshal([]byte(raw), &current); err != nil {
			return fmt.Errorf("parse aws-auth mapRoles: %w", err)
		}
	}
	merged := mergeRoles(current, roles)
	b, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal aws-auth mapRoles: %w", err)
	}

	if create {
		cm = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Namespace: awsAuthNamespace, Name: awsAuthName},
			Data:       map[string]string{mapRolesKey: string(b)},
		}
		if err := c.c.Create(ctx, cm); err != nil {
			return fmt.Errorf("create aws-auth: %w", err)
		}
	} else {
		if cm.Data == nil {
			cm.Data = map[string]string{}
		}
		cm.Data[mapRolesKey] = string(b)
		if err := c.c.Update(ctx, cm); err != nil {
			return fmt.Errorf("update aws-auth: %w", err)
		}
	}
	log.Info().Int("roles", len(merged)).Msg("aws-auth updated")
	return nil
}

// AddMasters grants each role ARN cluster-admin through system:masters.
func (c *Client) AddMasters(ctx context.Context, roleARNs ...string) error {
	roles := make([]MapRole, 0, len(roleARNs))
	for _, arn := range roleARNs {
		roles = append(roles, MapRole{RoleARN: arn, Username: arn, Groups: []string{MastersGroup}})
	}
	return c.MapRoles(ctx, roles...)
}

func mergeRoles(current, add []MapRole) []MapRole {
	out := make([]MapRole, 0, len(current)+len(add))
	index := map[string]int{}
	for _, r := range current {
		index[r.RoleARN] = len(out)
		out = append(out, r)
	}
	for _, r := range add {
		if i, ok := index[r.RoleARN]; ok {
			out[i] = r
			continue
		}
		index[r.RoleARN] = len(out)
		out = append(out, r)
	}
	return out
}
