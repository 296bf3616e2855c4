package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const deployTemplate = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: <API_NAME>
spec:
  template:
    spec:
      containers:
        - name: <API_NAME>
          image: <IMAGE_URI>
`

func TestRender(t *testing.T) {
	out, err := Render(deployTemplate, Bindings{
		TokenAPIName:  "simple-api",
		TokenImageURI: "1234.dkr.ecr.us-east-1.amazonaws.com/api:abcdef1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(out, "simple-api") != 2 {
		t.Fatalf("expected both API_NAME occurrences replaced:\n%s", out)
	}
	if !strings.Contains(out, "image: 1234.dkr.ecr.us-east-1.amazonaws.com/api:abcdef1") {
		t.Fatalf("image not substituted:\n%s", out)
	}
	if rem := Remaining(out); len(rem) != 0 {
		t.Fatalf("tokens left after render: %v", rem)
	}
}

func TestRenderTwiceFails(t *testing.T) {
	bindings := Bindings{TokenAPIName: "simple-api", TokenImageURI: "repo:abcdef1"}
	once, err := Render(deployTemplate, bindings)
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	_, err = Render(once, Bindings{TokenAPIName: "other-api", TokenImageURI: "repo:1234567"})
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound on stale input, got %v", err)
	}
}

func TestRenderOptionalToken(t *testing.T) {
	svc := "metadata:\n  name: <API_NAME>\n"
	out, err := Render(svc, Bindings{TokenAPIName: "simple-api", TokenImageURI: "repo:abcdef1"}, TokenImageURI)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "metadata:\n  name: simple-api\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRenderIsPlainText(t *testing.T) {
	// every literal occurrence is replaced, comments included
	out, err := Render("# <API_NAME>\nname: <API_NAME>\n", Bindings{TokenAPIName: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "# x\nname: x\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRenderFileLeavesTemplateUntouched(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "deploy.yaml")
	if err := os.WriteFile(src, []byte(deployTemplate), 0o644); err != nil {
		t.Fatal(err)
	}
	bindings := Bindings{TokenAPIName: "simple-api", TokenImageURI: "repo:abcdef1"}

	for _, run := range []string{"run-1", "run-2"} {
		dst := filepath.Join(dir, run, "deploy.yaml")
		if err := RenderFile(src, dst, bindings); err != nil {
			t.Fatalf("%s: RenderFile error: %v", run, err)
		}
	}

	b, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != deployTemplate {
		t.Fatalf("template was modified:\n%s", b)
	}
}

func TestRenderFileRefusesInPlace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "deploy.yaml")
	if err := os.WriteFile(src, []byte(deployTemplate), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := RenderFile(src, src, Bindings{TokenAPIName: "x", TokenImageURI: "y"}); err == nil {
		t.Fatal("expected in-place render to fail")
	}
}

func TestRemaining(t *testing.T) {
	got := Remaining("a <API_NAME> b <not-a-token> <IMAGE_URI> <>")
	if len(got) != 2 || got[0] != TokenAPIName || got[1] != TokenImageURI {
		t.Fatalf("unexpected tokens %v", got)
	}
}

func TestDecode(t *testing.T) {
	doc := `apiVersion: apps/v1
kind: Deployment
metadata:
  name: api
---
---
apiVersion: v1
kind: Service
metadata:
  name: api
`
	objs, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(objs))
	}
	if objs[0].GetKind() != "Deployment" || objs[1].GetKind() != "Service" {
		t.Fatalf("unexpected kinds %s, %s", objs[0].GetKind(), objs[1].GetKind())
	}
}
