package pipeline

import (
	"context"
	"fmt"

	"github.com/yz4230/rolling/internal/artifactstore"
)

// Env is what a stage action sees of its run.
type Env struct {
	RunID     string
	Dir       string // fresh per run
	Ref       string // requested commit, empty for branch head
	Artifacts *Artifacts
	Store     artifactstore.Store
}

// Stage is one step of the pipeline. Inputs must exist before Action runs
// and Outputs must exist after it succeeds.
type Stage struct {
	Name    string
	Inputs  []string
	Outputs []string
	Action  func(ctx context.Context, env *Env) error
}

// StageError is the error a failed run reports.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
