package artifactstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "deploy.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestKey(t *testing.T) {
	assert.Equal(t, "runs/abc/manifests/deploy.yaml", Key("abc", "manifests/deploy.yaml"))
}

func TestFSPut(t *testing.T) {
	root := t.TempDir()
	s := &FS{Root: root}
	src := writeFile(t, "kind: Deployment\n")

	loc, err := s.Put(context.Background(), Key("abc", "deploy.yaml"), src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "runs", "abc", "deploy.yaml"), loc)
	b, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "kind: Deployment\n", string(b))

	again, err := s.Put(context.Background(), Key("abc", "deploy.yaml"), loc)
	require.NoError(t, err)
	assert.Equal(t, loc, again)
}

func TestMinioConfigValidate(t *testing.T) {
	valid := MinioConfig{Endpoint: "localhost:9000", Bucket: "artifacts"}
	assert.NoError(t, valid.Validate())

	invalid := valid
	invalid.Endpoint = "http://localhost:9000"
	assert.Error(t, invalid.Validate())

	invalid = valid
	invalid.Bucket = ""
	assert.Error(t, invalid.Validate())
}

func TestMinioPut(t *testing.T) {
	var mu sync.Mutex
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusNotImplemented)
			return
		}
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath, gotBody = r.URL.Path, string(b)
		mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewMinio(MinioConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		Bucket:    "artifacts",
		AccessKey: "a",
		SecretKey: "b",
		Region:    "us-east-1",
	})
	require.NoError(t, err)

	loc, err := s.Put(context.Background(), Key("abc", "deploy.yaml"), writeFile(t, "kind: Deployment\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3://artifacts/runs/abc/deploy.yaml", loc)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/artifacts/runs/abc/deploy.yaml", gotPath)
	assert.Contains(t, gotBody, "kind: Deployment")
}
