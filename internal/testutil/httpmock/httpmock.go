package httpmock

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// BaseURL is the canonical URL used by HTTP mocks. Tests should point their clients at this URL.
const BaseURL = "https://backend.tgimport.test"

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// New constructs an HTTP client and transport that route requests to the supplied handler without opening network
// sockets.
func New(handler http.Handler) (*http.Client, http.RoundTripper) {
	client, rec := NewRecording(handler)
	return client, rec.transport
}

// Recorder remembers the requests routed through a mock client.
type Recorder struct {
	transport http.RoundTripper

	mu    sync.Mutex
	calls []string
}

// NewRecording is like New but also records every request as "METHOD /path".
func NewRecording(handler http.Handler) (*http.Client, *Recorder) {
	if handler == nil {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
	}

	rec := &Recorder{}
	rec.transport = roundTripFunc(func(req *http.Request) (*http.Response, error) {
		rec.mu.Lock()
		rec.calls = append(rec.calls, req.Method+" "+req.URL.Path)
		rec.mu.Unlock()

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		resp := w.Result()
		resp.Request = req
		return resp, nil
	})

	return &http.Client{Transport: rec.transport}, rec
}

// Calls returns the recorded requests in order.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// Count returns how many requests hit path.
func (r *Recorder) Count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, call := range r.calls {
		if strings.HasSuffix(call, " "+path) {
			n++
		}
	}
	return n
}
