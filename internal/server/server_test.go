package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yz4230/rolling/internal/config"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/metrics"
	"github.com/yz4230/rolling/internal/pipeline"
	"github.com/yz4230/rolling/internal/repository"
	"github.com/yz4230/rolling/internal/usecase"
)

func newTestServer(t *testing.T, stages ...pipeline.Stage) *Server {
	t.Helper()
	db, err := repository.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	injector := do.New()
	m := metrics.New()
	do.ProvideValue(injector, m)
	do.ProvideValue(injector, repository.NewRunRepository(db))
	do.ProvideValue(injector, &pipeline.Runner{
		Stages:       stages,
		WorkDir:      t.TempDir(),
		Runs:         repository.NewRunRepository(db),
		StageRecords: repository.NewStageRepository(db),
		Metrics:      m,
	})
	do.Provide(injector, usecase.NewStartPipelineUsecase)
	do.Provide(injector, usecase.NewListRunsUsecase)
	do.Provide(injector, usecase.NewGetRunUsecase)
	return New(&Config{Logger: zerolog.Nop(), Injector: injector})
}

func request(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := request(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestTriggerAndInspectRuns(t *testing.T) {
	release := make(chan struct{})
	s := newTestServer(t, pipeline.Stage{Name: "Source", Action: func(context.Context, *pipeline.Env) error {
		<-release
		return nil
	}})

	rec := request(t, s, http.MethodPost, "/api/runs", `{"ref":"abcdef1234567"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var run entity.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "abcdef1234567", run.Ref)

	rec = request(t, s, http.MethodPost, "/api/runs", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	assert.Eventually(t, func() bool {
		rec := request(t, s, http.MethodGet, "/api/runs/"+run.UID, "")
		var got entity.Run
		return rec.Code == http.StatusOK && json.Unmarshal(rec.Body.Bytes(), &got) == nil && got.Status == entity.RunStatusSuccess
	}, 5*time.Second, 10*time.Millisecond)

	rec = request(t, s, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs []*entity.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Runs, 1)

	assert.Equal(t, http.StatusNotFound, request(t, s, http.MethodGet, "/api/runs/999", "").Code)
	assert.Equal(t, http.StatusBadRequest, request(t, s, http.MethodGet, "/api/runs?limit=x", "").Code)

	rec = request(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `rolling_pipeline_runs_total{status="success"} 1`)
}

func TestTriggerWithInvalidConfig(t *testing.T) {
	db, err := repository.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	injector := do.New()
	do.ProvideValue(injector, metrics.New())
	do.ProvideValue(injector, repository.NewRunRepository(db))
	do.Provide(injector, func(i *do.Injector) (*pipeline.Runner, error) {
		return nil, config.Default().Validate()
	})
	do.Provide(injector, usecase.NewStartPipelineUsecase)
	s := New(&Config{Logger: zerolog.Nop(), Injector: injector})

	rec := request(t, s, http.MethodPost, "/api/runs", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "account: required")
	assert.Contains(t, body["error"], "apiName: required")
}
