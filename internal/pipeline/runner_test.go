package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/metrics"
	"github.com/yz4230/rolling/internal/repository"
)

func producer(name string, calls *[]string, outputs ...string) Stage {
	return Stage{
		Name:    name,
		Outputs: outputs,
		Action: func(_ context.Context, env *Env) error {
			*calls = append(*calls, name)
			for _, o := range outputs {
				env.Artifacts.Put(o, o)
			}
			return nil
		},
	}
}

func newRecordingRunner(t *testing.T, stages ...Stage) *Runner {
	t.Helper()
	db, err := repository.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	return &Runner{
		Stages:       stages,
		WorkDir:      t.TempDir(),
		Runs:         repository.NewRunRepository(db),
		StageRecords: repository.NewStageRepository(db),
		Metrics:      metrics.New(),
	}
}

func TestRunnerExecutesInOrder(t *testing.T) {
	var calls []string
	r := newRecordingRunner(t,
		producer("A", &calls, "a"),
		Stage{Name: "B", Inputs: []string{"a"}, Outputs: []string{"b"}, Action: func(_ context.Context, env *Env) error {
			calls = append(calls, "B")
			env.Artifacts.Put("b", 1)
			return nil
		}},
		producer("C", &calls),
	)

	run, err := r.Run(context.Background(), entity.Trigger{Source: "cli"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, calls)
	assert.Equal(t, entity.RunStatusSuccess, run.Status)
	assert.DirExists(t, filepath.Join(r.WorkDir, "runs", run.UID))

	stored, err := r.Runs.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusSuccess, stored.Status)
	require.Len(t, stored.Stages, 3)
	for i, name := range []string{"A", "B", "C"} {
		assert.Equal(t, name, stored.Stages[i].Name)
		assert.Equal(t, entity.RunStatusSuccess, stored.Stages[i].Status)
	}
}

func TestRunnerStopsAtFirstFailure(t *testing.T) {
	var calls []string
	boom := errors.New("push rejected")
	r := newRecordingRunner(t,
		producer("Source", &calls, entity.ArtifactSource),
		Stage{Name: "Build", Action: func(context.Context, *Env) error {
			calls = append(calls, "Build")
			return boom
		}},
		producer("Deploy", &calls),
	)

	run, err := r.Run(context.Background(), entity.Trigger{Source: "cli"})
	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "Build", stageErr.Stage)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"Source", "Build"}, calls)

	assert.Equal(t, entity.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "push rejected")
	stored, err := r.Runs.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusFailed, stored.Status)
	require.Len(t, stored.Stages, 2)
	assert.Equal(t, entity.RunStatusFailed, stored.Stages[1].Status)
}

func TestRunnerChecksArtifacts(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		called := false
		r := &Runner{WorkDir: t.TempDir(), Stages: []Stage{{
			Name:   "Deploy",
			Inputs: []string{entity.ArtifactBuild},
			Action: func(context.Context, *Env) error { called = true; return nil },
		}}}
		_, err := r.Run(context.Background(), entity.Trigger{Source: "cli"})
		assert.ErrorIs(t, err, entity.ErrMissingArtifact)
		assert.False(t, called)
	})

	t.Run("missing output", func(t *testing.T) {
		r := &Runner{WorkDir: t.TempDir(), Stages: []Stage{{
			Name:    "Source",
			Outputs: []string{entity.ArtifactSource},
			Action:  func(context.Context, *Env) error { return nil },
		}}}
		_, err := r.Run(context.Background(), entity.Trigger{Source: "cli"})
		assert.ErrorIs(t, err, entity.ErrMissingArtifact)
	})
}

func TestRunnerSingleRun(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{WorkDir: dir}

	exec, err := r.Prepare(context.Background(), entity.Trigger{Source: "api"})
	require.NoError(t, err)

	_, err = r.Prepare(context.Background(), entity.Trigger{Source: "api"})
	assert.ErrorIs(t, err, entity.ErrRunInProgress)

	other := &Runner{WorkDir: dir}
	_, err = other.Prepare(context.Background(), entity.Trigger{Source: "hook"})
	assert.ErrorIs(t, err, entity.ErrRunInProgress)

	_, err = exec.Execute(context.Background())
	require.NoError(t, err)
	_, err = exec.Execute(context.Background())
	assert.Error(t, err)

	next, err := other.Prepare(context.Background(), entity.Trigger{Source: "hook"})
	require.NoError(t, err)
	_, err = next.Execute(context.Background())
	require.NoError(t, err)
}

func TestRunnerFreshDirPerRun(t *testing.T) {
	var dirs []string
	r := &Runner{WorkDir: t.TempDir(), Stages: []Stage{{
		Name: "Source",
		Action: func(_ context.Context, env *Env) error {
			dirs = append(dirs, env.Dir)
			return os.WriteFile(filepath.Join(env.Dir, "marker"), nil, 0o644)
		},
	}}}
	for range 2 {
		_, err := r.Run(context.Background(), entity.Trigger{Source: "cli"})
		require.NoError(t, err)
	}
	require.Len(t, dirs, 2)
	assert.NotEqual(t, dirs[0], dirs[1])
}
