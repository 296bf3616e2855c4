package image

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yz4230/rolling/internal/entity"
)

const DefinitionsFile = "imagedefinitions.json"

// Definitions returns the single-entry descriptor naming the service and its image.
func Definitions(name, imageURI string) []entity.ImageDefinition {
	return []entity.ImageDefinition{{Name: name, ImageURI: imageURI}}
}

// WriteDefinitions writes imagedefinitions.json into dir and returns its path.
func WriteDefinitions(dir string, defs []entity.ImageDefinition) (string, error) {
	b, err := json.Marshal(defs)
	if err != nil {
		return "", fmt.Errorf("marshal image definitions: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, DefinitionsFile)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", DefinitionsFile, err)
	}
	return path, nil
}
