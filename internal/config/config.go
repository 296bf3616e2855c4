package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultRegion      = "us-east-1"
	DefaultBranch      = "main"
	DefaultTokenSecret = "/github.com/sekibomazic"
	DefaultClusterName = "sample-eks-cluster"
	DefaultPipeline    = "deploy-to-eks-rolling"
)

type Config struct {
	Pipeline  string `yaml:"pipeline"`
	AccountID string `yaml:"account"`
	Region    string `yaml:"region"`
	APIName   string `yaml:"apiName"`
	WorkDir   string `yaml:"workDir"`
	Database  string `yaml:"database"`

	Source        SourceConfig        `yaml:"source"`
	Build         BuildConfig         `yaml:"build"`
	Registry      RegistryConfig      `yaml:"registry"`
	Deploy        DeployConfig        `yaml:"deploy"`
	Cluster       ClusterConfig       `yaml:"cluster"`
	ArtifactStore ArtifactStoreConfig `yaml:"artifactStore"`
}

type SourceConfig struct {
	Owner       string `yaml:"owner"`
	Repo        string `yaml:"repo"`
	Branch      string `yaml:"branch"`
	Token       string `yaml:"token"`
	TokenSecret string `yaml:"tokenSecret"`
	TokenField  string `yaml:"tokenField"`
	// GitURL switches source fetch to a plain git clone (local bare repositories).
	GitURL string `yaml:"gitUrl"`
}

type BuildConfig struct {
	Dockerfile       string            `yaml:"dockerfile"`
	Commands         []string          `yaml:"commands"`
	BuildArgs        map[string]string `yaml:"buildArgs"`
	ImageDefinitions bool              `yaml:"imageDefinitions"`
}

type RegistryConfig struct {
	// Repository is the ECR repository name; defaults to the source repository name.
	Repository string            `yaml:"repository"`
	Secondary  SecondaryRegistry `yaml:"secondary"`
}

type SecondaryRegistry struct {
	Image         string `yaml:"image"` // e.g. docker.io/someone/deploy-on-eks
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	Secret        string `yaml:"secret"`
	UsernameField string `yaml:"usernameField"`
	PasswordField string `yaml:"passwordField"`
	ServerAddress string `yaml:"serverAddress"`
}

type DeployConfig struct {
	ClusterName string        `yaml:"clusterName"`
	RoleARN     string        `yaml:"roleArn"`
	Namespace   string        `yaml:"namespace"`
	Kubeconfig  string        `yaml:"kubeconfig"`
	Manifests   ManifestPaths `yaml:"manifests"`
}

type ManifestPaths struct {
	Deployment string `yaml:"deployment"`
	Service    string `yaml:"service"`
}

type ClusterConfig struct {
	Name               string   `yaml:"name"`
	Version            string   `yaml:"version"`
	NodeCount          int64    `yaml:"nodeCount"`
	InstanceType       string   `yaml:"instanceType"`
	SubnetIDs          []string `yaml:"subnetIds"`
	AdminRoleName      string   `yaml:"adminRoleName"`
	DeploymentRoleName string   `yaml:"deploymentRoleName"`
	ClusterRoleName    string   `yaml:"clusterRoleName"`
	NodeRoleName       string   `yaml:"nodeRoleName"`
	NodegroupName      string   `yaml:"nodegroupName"`
}

type ArtifactStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
}

// Enabled reports whether an S3-compatible store is configured.
func (a ArtifactStoreConfig) Enabled() bool {
	return a.Endpoint != "" && a.Bucket != ""
}

// Default returns the configuration with every optional field filled.
func Default() *Config {
	return &Config{
		Pipeline: DefaultPipeline,
		Region:   DefaultRegion,
		WorkDir:  ".rolling",
		Source: SourceConfig{
			Branch:      DefaultBranch,
			TokenSecret: DefaultTokenSecret,
			TokenField:  "token",
		},
		Build: BuildConfig{
			Dockerfile:       "Dockerfile",
			ImageDefinitions: true,
		},
		Registry: RegistryConfig{
			Secondary: SecondaryRegistry{
				UsernameField: "username",
				PasswordField: "password",
			},
		},
		Deploy: DeployConfig{
			ClusterName: DefaultClusterName,
			Namespace:   "default",
			Manifests: ManifestPaths{
				Deployment: "deploy/kubernetes/deploy.yaml",
				Service:    "deploy/kubernetes/service.yaml",
			},
		},
		Cluster: ClusterConfig{
			Name:               DefaultClusterName,
			Version:            "1.30",
			NodeCount:          2,
			InstanceType:       "t3.medium",
			AdminRoleName:      "rolling-cluster-admin",
			DeploymentRoleName: "rolling-deployment",
			ClusterRoleName:    "rolling-eks-cluster",
			NodeRoleName:       "rolling-eks-node",
			NodegroupName:      "default",
		},
	}
}

// Load reads the optional YAML file at path over the defaults, then applies
// environment overrides. It does not validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillDerived()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	overrideString(&c.AccountID, "AWS_ACCOUNT_ID", "CDK_DEFAULT_ACCOUNT")
	overrideString(&c.Region, "AWS_REGION", "CDK_DEFAULT_REGION")
	overrideString(&c.APIName, "API_NAME")
	overrideString(&c.WorkDir, "ROLLING_WORKDIR")
	overrideString(&c.Database, "ROLLING_DATABASE")

	overrideString(&c.Source.Owner, "GITHUB_REPO_OWNER")
	overrideString(&c.Source.Repo, "GITHUB_REPO_NAME")
	overrideString(&c.Source.Branch, "GITHUB_BRANCH")
	overrideString(&c.Source.Token, "GITHUB_TOKEN")
	overrideString(&c.Source.TokenSecret, "GITHUB_TOKEN_SECRET")

	overrideString(&c.Registry.Secondary.Username, "DOCKERHUB_USERNAME")
	overrideString(&c.Registry.Secondary.Password, "DOCKERHUB_PASSWORD")
	overrideString(&c.Registry.Secondary.Secret, "DOCKERHUB_SECRET")

	overrideString(&c.Deploy.ClusterName, "CLUSTER_NAME")
	overrideString(&c.Deploy.RoleARN, "DEPLOYMENT_ROLE_ARN")
	overrideString(&c.Deploy.Kubeconfig, "KUBECONFIG")

	overrideString(&c.ArtifactStore.Endpoint, "ARTIFACT_STORE_ENDPOINT")
	overrideString(&c.ArtifactStore.Bucket, "ARTIFACT_STORE_BUCKET")
	overrideString(&c.ArtifactStore.AccessKey, "ARTIFACT_STORE_ACCESS_KEY")
	overrideString(&c.ArtifactStore.SecretKey, "ARTIFACT_STORE_SECRET_KEY")
	if err := overrideBool(&c.ArtifactStore.UseSSL, "ARTIFACT_STORE_USE_SSL"); err != nil {
		return err
	}
	return overrideInt(&c.Cluster.NodeCount, "CLUSTER_NODE_COUNT")
}

func (c *Config) fillDerived() {
	if c.Registry.Repository == "" {
		c.Registry.Repository = c.Source.Repo
	}
	if c.Database == "" {
		c.Database = filepath.Join(c.WorkDir, "rolling.db")
	}
	if c.Registry.Secondary.Image != "" && c.Registry.Secondary.ServerAddress == "" {
		c.Registry.Secondary.ServerAddress = registryHost(c.Registry.Secondary.Image)
	}
}

// PrimaryImage is the ECR repository URI, without tag.
func (c *Config) PrimaryImage() string {
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/%s", c.AccountID, c.Region, c.Registry.Repository)
}

// PrimaryRegistry is the ECR registry host.
func (c *Config) PrimaryRegistry() string {
	return registryHost(c.PrimaryImage())
}

func registryHost(image string) string {
	host, _, found := strings.Cut(image, "/")
	if !found || !strings.ContainsAny(host, ".:") {
		return "docker.io"
	}
	return host
}
