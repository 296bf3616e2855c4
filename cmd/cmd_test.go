package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yz4230/rolling/internal/config"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/repository"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seedHistory writes one successful and one failed run and returns a config
// file pointing at them.
func seedHistory(t *testing.T) string {
	t.Helper()
	t.Setenv("ROLLING_DATABASE", "")
	t.Setenv("ROLLING_WORKDIR", "")
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "rolling.db")

	db, err := repository.NewSQLiteDB(dbPath)
	require.NoError(t, err)
	runs := repository.NewRunRepository(db)
	stages := repository.NewStageRepository(db)
	started := time.Now().UTC()

	_, err = runs.Create(ctx, &entity.Run{
		UID:       "first",
		Trigger:   "cli",
		CommitSHA: "abcdef1234567",
		ImageTag:  "abcdef1",
		Status:    entity.RunStatusSuccess,
		StartedAt: started,
	})
	require.NoError(t, err)

	failed, err := runs.Create(ctx, &entity.Run{
		UID:       "second",
		Trigger:   "hook",
		Status:    entity.RunStatusFailed,
		StartedAt: started,
	})
	require.NoError(t, err)
	for i, status := range []entity.RunStatus{entity.RunStatusSuccess, entity.RunStatusFailed} {
		_, err := stages.Create(ctx, &entity.StageExecution{
			RunID:     failed.ID,
			Name:      []string{"Source", "Build"}[i],
			Position:  i,
			Status:    status,
			StartedAt: started,
		})
		require.NoError(t, err)
	}

	cfgPath := filepath.Join(dir, "rolling.yaml")
	body := "workDir: " + dir + "\ndatabase: " + dbPath + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	return cfgPath
}

func TestPipelineHistoryTable(t *testing.T) {
	cfgPath := seedHistory(t)

	out, err := execute(t, "pipeline", "history", "--config", cfgPath, "--json=false")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3, out)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[0], "FAILED STAGE")

	newest := strings.Fields(lines[1])
	assert.Equal(t, "2", newest[0])
	assert.Equal(t, "failed", newest[1])
	assert.Equal(t, "Build", newest[len(newest)-1])

	oldest := strings.Fields(lines[2])
	assert.Equal(t, "1", oldest[0])
	assert.Equal(t, "success", oldest[1])
	assert.Contains(t, oldest, "abcdef1")
	assert.Equal(t, "-", oldest[len(oldest)-1])
	assert.NotContains(t, out, "%!")
}

func TestPipelineHistoryJSON(t *testing.T) {
	cfgPath := seedHistory(t)

	out, err := execute(t, "pipeline", "history", "--config", cfgPath, "--json")
	require.NoError(t, err)

	var runs []*entity.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "second", runs[0].UID)
	require.Len(t, runs[0].Stages, 2)
	assert.Equal(t, entity.RunStatusFailed, runs[0].Stages[1].Status)
}

func TestPipelineServeRejectsInvalidConfig(t *testing.T) {
	for _, key := range []string{"AWS_ACCOUNT_ID", "CDK_DEFAULT_ACCOUNT", "API_NAME", "GITHUB_REPO_OWNER", "GITHUB_REPO_NAME"} {
		t.Setenv(key, "")
	}
	t.Setenv("ROLLING_WORKDIR", t.TempDir())

	_, err := execute(t, "pipeline", "serve", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--port", "0")
	var verr *config.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "account: required")
	assert.Contains(t, err.Error(), "apiName: required")
}

func TestDemoColor(t *testing.T) {
	t.Run("env over default", func(t *testing.T) {
		t.Setenv("COLOR", "green")
		assert.Equal(t, "green", demoColor("cornflowerblue", false))
	})
	t.Run("explicit flag over env", func(t *testing.T) {
		t.Setenv("COLOR", "green")
		assert.Equal(t, "red", demoColor("red", true))
	})
	t.Run("default without env", func(t *testing.T) {
		t.Setenv("COLOR", "")
		assert.Equal(t, "cornflowerblue", demoColor("cornflowerblue", false))
	})
}

func TestWriteRunsEmpty(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, writeRuns(&b, nil))
	assert.Equal(t, "ID", strings.Fields(b.String())[0])
	assert.Len(t, strings.Split(strings.TrimSpace(b.String()), "\n"), 1)
}
