package entity

// Artifact names handed between stages.
const (
	ArtifactSource = "SourceArtifact"
	ArtifactBuild  = "BuildArtifact"
	ArtifactDeploy = "DeployArtifact"
)

// SourceArtifact is a checked-out repository tree.
type SourceArtifact struct {
	Owner  string
	Repo   string
	Branch string
	Commit string
	Dir    string
}

// ImageDefinition is one entry of imagedefinitions.json.
type ImageDefinition struct {
	Name     string `json:"name"`
	ImageURI string `json:"imageUri"`
}

// BuildArtifact is what the build stage hands to the deploy stage.
type BuildArtifact struct {
	Tag              string
	ImageURI         string   // primary registry reference carrying Tag
	Digest           string   // manifest digest, when verified
	Images           []string // every reference pushed, all registries and tags
	ImageDefinitions []ImageDefinition
	DefinitionsPath  string
}

// DeployArtifact records what was applied to the cluster.
type DeployArtifact struct {
	Cluster   string
	Namespace string
	ImageURI  string
	Manifests []string // rendered files, in apply order
	Applied   []string // kind/name of every applied object
}
