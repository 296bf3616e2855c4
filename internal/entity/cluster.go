package entity

import "time"

// ClusterRef is the long-lived target environment created by provisioning.
type ClusterRef struct {
	ID                ID        `json:"id"`
	Name              string    `json:"name"`
	Region            string    `json:"region"`
	Version           string    `json:"version"`
	Endpoint          string    `json:"endpoint"`
	AdminRoleARN      string    `json:"admin_role_arn"`
	DeploymentRoleARN string    `json:"deployment_role_arn"`
	RepositoryURI     string    `json:"repository_uri"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
