// Package testutil provides a scriptable fake Slope API for package tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// APIPrefix is the path prefix of API routes on the fake server.
const APIPrefix = "/api/v1"

// Token is the bearer token issued by the fake /Authorize route.
const Token = "test-token"

// Request is a request seen by the fake server.
type Request struct {
	Method string
	Path   string // API-relative for API routes, absolute for storage routes
	Query  string
	Auth   string
	Body   []byte
}

// JSON decodes the request body into v.
func (r Request) JSON(tb testing.TB, v any) {
	tb.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		tb.Fatalf("decode %s %s body: %v", r.Method, r.Path, err)
	}
}

// FakeAPI is an httptest server that serves both API routes (under APIPrefix)
// and storage routes (everything else) from registered handlers. Unregistered
// routes answer 404.
type FakeAPI struct {
	Server *httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []Request
}

// NewFakeAPI starts a fake server with /Authorize already registered. The
// server is closed when the test ends.
func NewFakeAPI(tb testing.TB) *FakeAPI {
	tb.Helper()
	f := &FakeAPI{routes: map[string]http.HandlerFunc{}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	tb.Cleanup(f.Server.Close)

	f.JSON(http.MethodPost, "/Authorize", http.StatusOK, map[string]string{"accessToken": Token})
	return f
}

// BaseURL is the API base URL to pass to the client.
func (f *FakeAPI) BaseURL() string {
	return f.Server.URL + APIPrefix
}

// StorageURL returns an absolute URL for a storage route.
func (f *FakeAPI) StorageURL(path string) string {
	return f.Server.URL + path
}

// Handle registers h for method and path. API paths omit APIPrefix.
func (f *FakeAPI) Handle(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = h
}

// JSON registers a fixed JSON response.
func (f *FakeAPI) JSON(method, path string, status int, body any) {
	f.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, body)
	})
}

// Sequence registers JSON 200 responses served in order. The last one repeats.
func (f *FakeAPI) Sequence(method, path string, bodies ...any) {
	var (
		mu sync.Mutex
		n  int
	)
	f.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		i := min(n, len(bodies)-1)
		n++
		mu.Unlock()
		WriteJSON(w, http.StatusOK, bodies[i])
	})
}

// Bytes registers a storage route that serves data.
func (f *FakeAPI) Bytes(method, path string, data []byte) {
	f.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	})
}

// Requests returns the requests seen for method and path, in arrival order.
func (f *FakeAPI) Requests(method, path string) []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Request
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Count returns how many requests were seen for method and path.
func (f *FakeAPI) Count(method, path string) int {
	return len(f.Requests(method, path))
}

// All returns every request seen, in arrival order.
func (f *FakeAPI) All() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// WaitForCount polls until at least n requests were seen for method and path.
// It fails the test after timeout.
func (f *FakeAPI) WaitForCount(tb testing.TB, method, path string, n int, timeout time.Duration) {
	tb.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if f.Count(method, path) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	tb.Fatalf("timed out waiting for %d %s %s requests (seen: %d)", n, method, path, f.Count(method, path))
}

func (f *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	path := r.URL.Path
	if rest, ok := strings.CutPrefix(path, APIPrefix); ok {
		path = rest
	}

	f.mu.Lock()
	f.requests = append(f.requests, Request{
		Method: r.Method,
		Path:   path,
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
		Body:   body,
	})
	h, ok := f.routes[r.Method+" "+path]
	f.mu.Unlock()

	if !ok {
		http.Error(w, "no route for "+r.Method+" "+path, http.StatusNotFound)
		return
	}
	h(w, r)
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
