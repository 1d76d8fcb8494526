package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORSExplicitOrigin(t *testing.T) {
	h := CORS([]string{"https://lab.example.org"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/worlds", nil)
	r.Header.Set("Origin", "https://lab.example.org")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://lab.example.org" {
		t.Errorf("unexpected allow-origin %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected credentials for explicit origin")
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "X-Device-ID") {
		t.Error("expected device header to be allowed")
	}
}

func TestCORSWildcardHasNoCredentials(t *testing.T) {
	h := CORS([]string{"*"})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	r := httptest.NewRequest(http.MethodOptions, "/api/command", nil)
	r.Header.Set("Origin", "https://elsewhere.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("expected preflight 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("wildcard must not allow credentials")
	}
}

func TestMaxBodySize(t *testing.T) {
	var readErr error
	h := MaxBodySize(8)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("this body is too long"))
	h.ServeHTTP(httptest.NewRecorder(), r)
	if readErr == nil {
		t.Fatal("expected read past the limit to fail")
	}
}
