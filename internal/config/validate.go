package config

import (
	"fmt"
	"strings"
)

// ValidationError lists every invalid field found by Validate.
type ValidationError struct {
	Fields []FieldError
}

type FieldError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Reason
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// Validate checks everything the pipeline needs before any stage runs.
func (c *Config) Validate() error {
	v := &ValidationError{}
	required := []struct{ field, value string }{
		{"account", c.AccountID},
		{"region", c.Region},
		{"apiName", c.APIName},
		{"source.owner", c.Source.Owner},
		{"source.repo", c.Source.Repo},
		{"source.branch", c.Source.Branch},
		{"registry.repository", c.Registry.Repository},
		{"deploy.clusterName", c.Deploy.ClusterName},
		{"deploy.manifests.deployment", c.Deploy.Manifests.Deployment},
		{"deploy.manifests.service", c.Deploy.Manifests.Service},
		{"workDir", c.WorkDir},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			v.add(r.field, "required")
		}
	}
	if c.AccountID != "" && !isDigits(c.AccountID) {
		v.add("account", fmt.Sprintf("must be a numeric AWS account id, got %q", c.AccountID))
	}

	sec := c.Registry.Secondary
	if (sec.Username == "") != (sec.Password == "") {
		v.add("registry.secondary", "username and password must be set together")
	}
	if sec.Image == "" && (sec.Username != "" || sec.Secret != "") {
		v.add("registry.secondary.image", "required when secondary registry credentials are set")
	}

	if c.ArtifactStore.Endpoint != "" && c.ArtifactStore.Bucket == "" {
		v.add("artifactStore.bucket", "required when endpoint is set")
	}

	if len(v.Fields) > 0 {
		return v
	}
	return nil
}

// ValidateCluster checks the provisioning settings.
func (c *Config) ValidateCluster() error {
	v := &ValidationError{}
	if c.AccountID == "" {
		v.add("account", "required")
	}
	if c.Region == "" {
		v.add("region", "required")
	}
	if c.Cluster.Name == "" {
		v.add("cluster.name", "required")
	}
	if c.Cluster.Version == "" {
		v.add("cluster.version", "required")
	}
	if c.Cluster.NodeCount <= 0 {
		v.add("cluster.nodeCount", "must be positive")
	}
	if c.Cluster.InstanceType == "" {
		v.add("cluster.instanceType", "required")
	}
	if len(c.Cluster.SubnetIDs) < 2 {
		v.add("cluster.subnetIds", "at least two subnets in different availability zones are required")
	}
	if len(v.Fields) > 0 {
		return v
	}
	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
