package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeUpstream is an httptest server standing in for the Spotify Web API and its token endpoint.
//
// API routes are registered by path relative to [FakeUpstream.APIBaseURL], without the query string.
// Unregistered paths answer 404.
type FakeUpstream struct {
	Server *httptest.Server

	mu            sync.Mutex
	routes        map[string]http.HandlerFunc
	hits          map[string]int
	tokenRequests int
	tokenStatus   int
	lastAuth      string
}

// NewFakeUpstream starts a FakeUpstream that is closed when t finishes.
func NewFakeUpstream(t *testing.T) *FakeUpstream {
	t.Helper()

	f := &FakeUpstream{
		routes:      make(map[string]http.HandlerFunc),
		hits:        make(map[string]int),
		tokenStatus: http.StatusOK,
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// APIBaseURL is the base URL to configure as the upstream API.
func (f *FakeUpstream) APIBaseURL() string { return f.Server.URL + "/v1" }

// TokenURL is the refresh-token grant endpoint.
func (f *FakeUpstream) TokenURL() string { return f.Server.URL + "/api/token" }

// Handle registers h for an API path such as "/me/playlists".
func (f *FakeUpstream) Handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = h
}

// JSON registers a fixed JSON response for path.
func (f *FakeUpstream) JSON(path string, status int, body any) {
	f.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, body)
	})
}

// FailTokens makes the token endpoint answer status.
func (f *FakeUpstream) FailTokens(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenStatus = status
}

// Hits returns how many requests reached path.
func (f *FakeUpstream) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

// TotalHits returns the number of API requests served, excluding token grants.
func (f *FakeUpstream) TotalHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.hits {
		total += n
	}
	return total
}

// TokenRequests returns how many refresh grants were attempted.
func (f *FakeUpstream) TokenRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenRequests
}

// LastAuthorization returns the Authorization header of the latest API request.
func (f *FakeUpstream) LastAuthorization() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

func (f *FakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/token" {
		f.serveToken(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1")

	f.mu.Lock()
	f.hits[path]++
	f.lastAuth = r.Header.Get("Authorization")
	h, ok := f.routes[path]
	f.mu.Unlock()

	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404, "message": "not found"}})
		return
	}
	h(w, r)
}

func (f *FakeUpstream) serveToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.tokenRequests++
	n := f.tokenRequests
	status := f.tokenStatus
	f.mu.Unlock()

	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	if status != http.StatusOK {
		WriteJSON(w, status, map[string]string{"error": "invalid_grant"})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": fmt.Sprintf("fresh-token-%d", n),
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

// WriteJSON writes body as JSON with status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Page builds a paging object in the upstream's shape. next is left null when there is no next page.
func Page(items []any, next string) map[string]any {
	page := map[string]any{"items": items, "total": len(items), "next": nil}
	if next != "" {
		page["next"] = next
	}
	return page
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// UnreachableTransport fails every request before it leaves the process, as a refused connection
// would.
func UnreachableTransport() http.RoundTripper {
	return roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, ErrInjected
	})
}

// TruncatedTransport answers 200 to every request with a body that fails on read.
func TruncatedTransport() http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(failingReader{}),
			Request:    r,
		}, nil
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, ErrInjected }
