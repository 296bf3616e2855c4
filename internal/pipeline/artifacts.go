package pipeline

import (
	"fmt"
	"sync"

	"github.com/yz4230/rolling/internal/entity"
)

// Artifacts holds the named outputs stages hand to each other.
type Artifacts struct {
	mu sync.RWMutex
	m  map[string]any
}

func NewArtifacts() *Artifacts {
	return &Artifacts{m: map[string]any{}}
}

func (a *Artifacts) Put(name string, v any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m[name] = v
}

func (a *Artifacts) Has(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.m[name]
	return ok && v != nil
}

// Artifact fetches a typed artifact.
func Artifact[T any](a *Artifacts, name string) (T, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var zero T
	v, ok := a.m[name]
	if !ok {
		return zero, fmt.Errorf("%w: %s", entity.ErrMissingArtifact, name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("artifact %s has type %T", name, v)
	}
	return t, nil
}
