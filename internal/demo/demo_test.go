package demo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T, color string) *Server {
	t.Helper()
	s, err := New(&Config{Color: color, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/health", "Healthy!"},
		{http.MethodGet, "/nope", "Ooops, no such route"},
		{http.MethodGet, "/a/b/c", "Ooops, no such route"},
		{http.MethodPost, "/", "Ooops, no such route"},
		{http.MethodDelete, "/health", "Ooops, no such route"},
		{http.MethodPut, "/anything", "Ooops, no such route"},
		{http.MethodGet, "/health/", "Ooops, no such route"},
		{http.MethodGet, "/HEALTH", "Ooops, no such route"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := serve(s, tt.method, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d; want 200", rec.Code)
			}
			if rec.Body.String() != tt.body {
				t.Fatalf("body = %q; want %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestIndex(t *testing.T) {
	rec := serve(newTestServer(t, ""), http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q; want text/html", ct)
	}
	if !strings.Contains(rec.Body.String(), "background-color: cornflowerblue;") {
		t.Fatalf("page does not carry the color: %s", rec.Body.String())
	}
}

func TestColor(t *testing.T) {
	for _, tt := range []struct {
		color  string
		method string
		path   string
		want   string
	}{
		{"", http.MethodGet, "/color", "cornflowerblue"},
		{"green", http.MethodGet, "/color", "green"},
		{"red", http.MethodPost, "/color/anything", "red"},
	} {
		rec := serve(newTestServer(t, tt.color), tt.method, tt.path)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s %s: status = %d", tt.method, tt.path, rec.Code)
		}
		var got map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got["color"] != tt.want {
			t.Fatalf("color = %q; want %q", got["color"], tt.want)
		}
	}
}
