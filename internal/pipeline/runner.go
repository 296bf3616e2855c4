// Package pipeline runs the ordered stages of a deployment. One run executes
// at a time; every run works in its own directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/yz4230/rolling/internal/artifactstore"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/metrics"
	"github.com/yz4230/rolling/internal/repository"
)

type Runner struct {
	Stages  []Stage
	WorkDir string
	// Runs and StageRecords persist history when set.
	Runs         repository.RunRepository
	StageRecords repository.StageRepository
	Metrics      *metrics.Metrics
	Store        artifactstore.Store

	mu sync.Mutex
}

// Execution is a run that holds the pipeline lock and has not executed yet.
type Execution struct {
	runner    *Runner
	run       *entity.Run
	env       *Env
	lock      *fileLock
	startOnce sync.Once
}

// Run starts and executes a run synchronously.
func (r *Runner) Run(ctx context.Context, trigger entity.Trigger) (*entity.Run, error) {
	exec, err := r.Prepare(ctx, trigger)
	if err != nil {
		return nil, err
	}
	return exec.Execute(ctx)
}

// Prepare takes the pipeline lock and records a pending run. Callers must
// call Execute, which releases the lock.
func (r *Runner) Prepare(ctx context.Context, trigger entity.Trigger) (*Execution, error) {
	if !r.mu.TryLock() {
		return nil, entity.ErrRunInProgress
	}
	lock, err := acquireFileLock(r.WorkDir)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	uid := uuid.NewString()
	dir := filepath.Join(r.WorkDir, "runs", uid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		lock.release()
		r.mu.Unlock()
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	run := &entity.Run{
		UID:       uid,
		Trigger:   trigger.Source,
		Ref:       trigger.Ref,
		Status:    entity.RunStatusPending,
		StartedAt: time.Now().UTC(),
	}
	if r.Runs != nil {
		created, err := r.Runs.Create(ctx, run)
		if err != nil {
			lock.release()
			r.mu.Unlock()
			return nil, fmt.Errorf("record run: %w", err)
		}
		run = created
	}

	return &Execution{
		runner: r,
		run:    run,
		lock:   lock,
		env: &Env{
			RunID:     uid,
			Dir:       dir,
			Ref:       trigger.Ref,
			Artifacts: NewArtifacts(),
			Store:     r.Store,
		},
	}, nil
}

// Run is the pending run record.
func (e *Execution) Run() *entity.Run {
	return e.run
}

// Execute runs every stage in order and stops at the first failure. The
// returned error is a *StageError when a stage failed.
func (e *Execution) Execute(ctx context.Context) (*entity.Run, error) {
	var (
		run *entity.Run
		err error
	)
	ran := false
	e.startOnce.Do(func() {
		ran = true
		defer e.runner.mu.Unlock()
		defer e.lock.release()
		run, err = e.execute(ctx)
	})
	if !ran {
		return nil, errors.New("execution already started")
	}
	return run, err
}

func (e *Execution) execute(ctx context.Context) (*entity.Run, error) {
	r := e.runner
	run := e.run
	log := zerolog.Ctx(ctx).With().Str("run", run.UID).Logger()
	ctx = log.WithContext(ctx)

	run.Status = entity.RunStatusRunning
	e.save(ctx)
	log.Info().Str("trigger", run.Trigger).Str("ref", run.Ref).Int("stages", len(r.Stages)).Msg("pipeline started")

	var failure *StageError
	for i, stage := range r.Stages {
		if err := e.runStage(ctx, i, stage); err != nil {
			failure = &StageError{Stage: stage.Name, Err: err}
			break
		}
	}

	e.collect()
	run.FinishedAt = time.Now().UTC()
	if failure != nil {
		run.Status = entity.RunStatusFailed
		run.Error = failure.Error()
		log.Error().Err(failure.Err).Str("stage", failure.Stage).Msg("pipeline failed")
	} else {
		run.Status = entity.RunStatusSuccess
		log.Info().Str("image", run.ImageURI).Dur("elapsed", run.FinishedAt.Sub(run.StartedAt)).Msg("pipeline succeeded")
	}
	if r.Metrics != nil {
		r.Metrics.RunFinished(string(run.Status))
	}
	e.save(ctx)
	if failure != nil {
		return run, failure
	}
	return run, nil
}

func (e *Execution) runStage(ctx context.Context, position int, stage Stage) error {
	r := e.runner
	log := zerolog.Ctx(ctx).With().Str("stage", stage.Name).Logger()
	ctx = log.WithContext(ctx)

	exec := &entity.StageExecution{
		RunID:     e.run.ID,
		Name:      stage.Name,
		Position:  position,
		Status:    entity.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if r.StageRecords != nil && e.run.ID.Valid() {
		if created, err := r.StageRecords.Create(ctx, exec); err != nil {
			log.Warn().Err(err).Msg("failed to record stage")
		} else {
			exec = created
		}
	}
	e.run.Stages = append(e.run.Stages, exec)

	log.Info().Msg("stage started")
	err := ctx.Err()
	if err == nil {
		err = e.checkArtifacts(stage.Inputs, "input")
	}
	if err == nil {
		err = stage.Action(ctx, e.env)
	}
	if err == nil {
		err = e.checkArtifacts(stage.Outputs, "output")
	}

	exec.FinishedAt = time.Now().UTC()
	exec.Status = entity.RunStatusSuccess
	if err != nil {
		exec.Status = entity.RunStatusFailed
		exec.Error = err.Error()
	}
	if r.StageRecords != nil && exec.ID.Valid() {
		if _, uerr := r.StageRecords.Update(ctx, exec); uerr != nil {
			log.Warn().Err(uerr).Msg("failed to record stage")
		}
	}
	if r.Metrics != nil {
		r.Metrics.StageFinished(stage.Name, string(exec.Status), exec.Duration())
	}
	if err != nil {
		return err
	}
	log.Info().Dur("elapsed", exec.Duration()).Msg("stage succeeded")
	return nil
}

func (e *Execution) checkArtifacts(names []string, kind string) error {
	for _, name := range names {
		if !e.env.Artifacts.Has(name) {
			return fmt.Errorf("%w: %s %s", entity.ErrMissingArtifact, kind, name)
		}
	}
	return nil
}

// collect copies artifact facts onto the run record.
func (e *Execution) collect() {
	if src, err := Artifact[*entity.SourceArtifact](e.env.Artifacts, entity.ArtifactSource); err == nil {
		e.run.CommitSHA = src.Commit
	}
	if b, err := Artifact[*entity.BuildArtifact](e.env.Artifacts, entity.ArtifactBuild); err == nil {
		e.run.ImageTag = b.Tag
		e.run.ImageURI = b.ImageURI
	}
}

func (e *Execution) save(ctx context.Context) {
	r := e.runner
	if r.Runs == nil || !e.run.ID.Valid() {
		return
	}
	if _, err := r.Runs.Update(ctx, e.run); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to record run")
	}
}
